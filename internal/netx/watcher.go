// Package netx holds small networking helpers: a connectivity watcher and
// Content-Disposition parsing.
package netx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/logging"
)

// Reporter answers whether the network is currently reachable.
type Reporter interface {
	Online() bool
}

// Static is a Reporter with a fixed answer.
type Static bool

func (s Static) Online() bool { return bool(s) }

// ProbeFunc returns nil when the remote side is reachable.
type ProbeFunc func(ctx context.Context) error

// HTTPProbe checks reachability with a GET to url. Any answer below 500
// counts as online, unless it is a synthesized offline response.
func HTTPProbe(c *http.Client, url string) ProbeFunc {
	if c == nil {
		c = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError || resp.Header.Get(common.OfflineHeaderName) != "" {
			return &ProbeError{Status: resp.StatusCode}
		}
		return nil
	}
}

type ProbeError struct {
	Status int
}

func (e *ProbeError) Error() string {
	return "probe failed: " + http.StatusText(e.Status)
}

type WatcherOption func(*Watcher)

// WithInterval sets the probe period (default 5s).
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithTimeout bounds a single probe (default 3s).
func WithTimeout(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.timeout = d }
}

// WithInitial sets the state reported before the first probe (default online).
func WithInitial(online bool) WatcherOption {
	return func(w *Watcher) { w.online = online }
}

func WithLogger(l logging.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher tracks connectivity by probing on a ticker and fans transitions
// out to subscribers.
type Watcher struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu     sync.RWMutex
	online bool
	subs   []chan bool
}

func NewWatcher(probe ProbeFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		probe:    probe,
		interval: 5 * time.Second,
		timeout:  3 * time.Second,
		logger:   logging.Nop(),
		online:   true,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Watcher) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

// Subscribe returns a channel receiving the new state on every transition.
// Only the latest state is buffered; a slow reader never blocks the watcher.
func (w *Watcher) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Set records the state and notifies subscribers if it changed.
func (w *Watcher) Set(online bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.online == online {
		return
	}
	w.online = online
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Check probes once and records the outcome.
func (w *Watcher) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.probe(ctx)
	cancel()

	online := err == nil
	if online != w.Online() {
		if online {
			w.logger.Info(ctx, "switched to online mode")
		} else {
			w.logger.Warn(ctx, "switched to offline mode", "error", err)
		}
	}
	w.Set(online)
	return online
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
