// Package offline is the offline-queued state store of the registry client.
//
// Dispatching an optimistic action (one carrying an Effect) applies it to
// State at once and appends an Entry to a durable FIFO queue. A single
// worker (Run) executes the head entry's effect whenever the network is
// reachable, then resolves it:
//
//	success                    -> commit action, entry removed
//	status 1..499              -> rollback action, entry removed
//	other failure, under cap   -> retry after Base*2^attempt
//	other failure, over cap    -> parked until reconnect or Resume
//
// Later entries wait behind the head. When a resolved entry and a later one
// write the same record, the later entry's optimistic value stays visible
// and its rollback is re-based onto the resolved outcome. State and queue
// are saved through a KV after every transition.
package offline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/choirsync/internal/logging"
	"github.com/dmitrijs2005/choirsync/internal/netx"
)

// Entry is a queued optimistic action with its effect and resolutions.
type Entry struct {
	ID            uuid.UUID
	Action        Action
	Effect        Effect
	Commit        Action
	Rollback      Action
	Attempts      int
	Parked        bool
	EnqueuedAt    time.Time
	NextAttemptAt time.Time
}

// Outcome is the kind of transition reported to subscribers.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeEnqueued  Outcome = "enqueued"
	OutcomeCommitted Outcome = "committed"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeParked    Outcome = "parked"
	OutcomeResumed   Outcome = "resumed"
	OutcomeReset     Outcome = "reset"
)

// Event describes one transition.
type Event struct {
	Outcome  Outcome
	Kind     Kind
	EntryID  uuid.UUID
	Attempts int
	Delay    time.Duration
	Err      string
	// Action is the action applied by the transition, if any.
	Action Action
}

var ErrClosed = errors.New("offline store closed")

type subscriber interface {
	Subscribe() <-chan bool
}

type Option func(*Store)

// WithExecutor sets the effect executor. Required before Run.
func WithExecutor(x Executor) Option {
	return func(s *Store) { s.exec = x }
}

// WithKV sets the snapshot storage. Without it nothing is persisted.
func WithKV(kv KV) Option {
	return func(s *Store) { s.kv = kv }
}

// WithReporter gates effects on connectivity. If r also has
// Subscribe() <-chan bool, an offline to online transition resumes parked
// entries.
func WithReporter(r netx.Reporter) Option {
	return func(s *Store) { s.conn = r }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Store) { s.policy = p }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSchemaVersion overrides SchemaVersion.
func WithSchemaVersion(v int) Option {
	return func(s *Store) { s.version = v }
}

// WithPollInterval sets how often an offline worker re-checks a reporter
// that cannot notify (default 1s).
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.poll = d }
}

type Store struct {
	exec    Executor
	kv      KV
	conn    netx.Reporter
	connCh  <-chan bool
	policy  RetryPolicy
	logger  logging.Logger
	now     func() time.Time
	version int
	poll    time.Duration

	mu         sync.Mutex
	state      State
	queue      []*Entry
	rehydrated bool
	subs       []chan Event
	closed     bool

	wake chan struct{}
	done chan struct{}
}

func New(opts ...Option) *Store {
	s := &Store{
		conn:    netx.Static(true),
		policy:  DefaultRetryPolicy(),
		logger:  logging.Nop(),
		now:     time.Now,
		version: SchemaVersion,
		poll:    time.Second,
		state:   NewState(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "offline")
	if sub, ok := s.conn.(subscriber); ok {
		s.connCh = sub.Subscribe()
	}
	return s
}

// Load restores the snapshot. A snapshot of another schema version, or one
// that cannot be decoded, is replaced by empty defaults.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rehydrated = true
	if s.kv == nil {
		return nil
	}

	b, err := s.kv.Get(ctx, PersistKey)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}

	st, queue, err := decodeSnapshot(b, s.version)
	if err != nil {
		s.logger.Warn(ctx, "persisted state discarded", "error", err)
		s.state = NewState()
		s.queue = nil
		s.persistLocked(ctx)
		s.notifyLocked(Event{Outcome: OutcomeReset, Err: err.Error()})
		return nil
	}

	s.state = st
	s.queue = queue
	s.logger.Info(ctx, "state restored", "users", len(st.Users), "queued", len(queue))
	s.signal()
	return nil
}

// Dispatch applies a. Optimistic actions are also queued for their effect.
// It never fails; problems are logged.
func (s *Store) Dispatch(ctx context.Context, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn(ctx, "dispatch after close ignored", "kind", a.Kind())
		return
	}

	opt, ok := a.(optimistic)
	if !ok {
		reduce(&s.state, a)
		s.persistLocked(ctx)
		s.notifyLocked(Event{Outcome: OutcomeApplied, Kind: a.Kind(), Action: a})
		return
	}

	opt, commit, rollback := prepare(&s.state, opt)
	reduce(&s.state, opt)

	now := s.now()
	e := &Entry{
		ID:            uuid.New(),
		Action:        opt,
		Effect:        opt.effect(),
		Commit:        commit,
		Rollback:      rollback,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}
	s.queue = append(s.queue, e)
	s.logger.Debug(ctx, "action enqueued", "kind", opt.Kind(), "entry", e.ID, "queued", len(s.queue))

	s.persistLocked(ctx)
	s.notifyLocked(Event{Outcome: OutcomeEnqueued, Kind: opt.Kind(), EntryID: e.ID, Action: opt})
	s.signal()
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Pending returns copies of the queued entries in execution order.
func (s *Store) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.queue))
	for i, e := range s.queue {
		out[i] = *e
	}
	return out
}

// Rehydrated reports whether Load has run.
func (s *Store) Rehydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rehydrated
}

// Resume makes parked entries eligible again. Each gets one more attempt
// before the policy parks it again.
func (s *Store) Resume(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeLocked(ctx)
}

func (s *Store) resumeLocked(ctx context.Context) int {
	n := 0
	now := s.now()
	for _, e := range s.queue {
		if !e.Parked {
			continue
		}
		e.Parked = false
		e.NextAttemptAt = now
		n++
		s.notifyLocked(Event{Outcome: OutcomeResumed, Kind: e.Action.Kind(), EntryID: e.ID, Attempts: e.Attempts})
	}
	if n > 0 {
		s.logger.Info(ctx, "parked entries resumed", "count", n)
		s.persistLocked(ctx)
		s.signal()
	}
	return n
}

// Subscribe returns a channel of transitions. Events are dropped for a
// subscriber whose buffer is full. The channel is closed by Close.
func (s *Store) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Close stops Run and closes subscriber channels. Queued entries stay in
// the snapshot.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	return nil
}

// Run executes queued effects one at a time, head first, until ctx is done
// or the store is closed.
func (s *Store) Run(ctx context.Context) error {
	if s.exec == nil {
		return errors.New("offline: no executor configured")
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		e, wait := s.next()
		if e != nil {
			s.attempt(ctx, e)
			continue
		}

		var timer *time.Timer
		var tick <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case <-s.done:
			stopTimer(timer)
			return ErrClosed
		case <-s.wake:
		case online := <-s.connCh:
			if online {
				s.mu.Lock()
				s.resumeLocked(ctx)
				s.mu.Unlock()
			}
		case <-tick:
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// next returns the head entry if it may run now. Otherwise it returns how
// long to wait, where 0 means until woken.
func (s *Store) next() (*Entry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.queue) == 0 {
		return nil, 0
	}
	if !s.conn.Online() {
		if s.connCh != nil {
			return nil, 0
		}
		return nil, s.poll
	}
	head := s.queue[0]
	if head.Parked {
		return nil, 0
	}
	if d := head.NextAttemptAt.Sub(s.now()); d > 0 {
		return nil, d
	}
	return head, 0
}

func (s *Store) attempt(ctx context.Context, e *Entry) {
	s.logger.Debug(ctx, "executing effect", "entry", e.ID, "method", e.Effect.Method, "url", e.Effect.URL, "attempt", e.Attempts)
	res, err := s.exec.Execute(ctx, e.Effect)
	if err != nil && ctx.Err() != nil {
		// shutting down mid-flight; the entry stays as it was
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.queue[0] != e {
		return
	}

	if err == nil {
		commit := e.Commit.(committer).withResult(res)
		reduce(&s.state, commit)
		s.queue = s.queue[1:]
		settle(&s.state, commit, s.queue)
		s.logger.Info(ctx, "effect committed", "kind", e.Action.Kind(), "entry", e.ID)
		s.persistLocked(ctx)
		s.notifyLocked(Event{Outcome: OutcomeCommitted, Kind: e.Action.Kind(), EntryID: e.ID, Attempts: e.Attempts + 1, Action: commit})
		return
	}

	d := s.policy.Next(e.Attempts, err)
	e.Attempts++
	ev := Event{Kind: e.Action.Kind(), EntryID: e.ID, Attempts: e.Attempts, Err: err.Error()}

	switch d.Verdict {
	case Discard:
		rb := e.Rollback.(rollbacker).withFailure(err.Error(), StatusOf(err))
		s.queue = s.queue[1:]
		if !supersede(rb, s.queue) {
			reduce(&s.state, rb)
		}
		s.logger.Warn(ctx, "effect rejected, rolled back", "kind", e.Action.Kind(), "entry", e.ID, "error", err)
		ev.Outcome, ev.Action = OutcomeDiscarded, rb

	case Retry:
		e.NextAttemptAt = s.now().Add(d.Delay)
		s.logger.Info(ctx, "effect failed, retry scheduled", "kind", e.Action.Kind(), "entry", e.ID, "delay", d.Delay, "error", err)
		ev.Outcome, ev.Delay = OutcomeRetrying, d.Delay

	case Park:
		e.Parked = true
		s.logger.Warn(ctx, "effect failed, retries exhausted; parked", "kind", e.Action.Kind(), "entry", e.ID, "attempts", e.Attempts, "error", err)
		ev.Outcome = OutcomeParked

	default:
		panic("offline: unknown verdict " + d.Verdict.String())
	}

	s.persistLocked(ctx)
	s.notifyLocked(ev)
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	b, err := encodeSnapshot(s.state, s.queue, s.version)
	if err != nil {
		s.logger.Error(ctx, "encode snapshot failed", "error", err)
		return
	}
	if err := s.kv.Set(context.WithoutCancel(ctx), PersistKey, b); err != nil {
		s.logger.Error(ctx, "persist snapshot failed", "error", err)
	}
}

func (s *Store) notifyLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
