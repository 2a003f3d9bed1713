package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/client/config"
	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/choirsync/internal/client/services"
	"github.com/dmitrijs2005/choirsync/internal/download"
	"github.com/dmitrijs2005/choirsync/internal/logging"
	"github.com/dmitrijs2005/choirsync/internal/netx"
	"github.com/dmitrijs2005/choirsync/internal/offline"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// registryService is the part of services.RegistryService the commands use.
type registryService interface {
	RefreshUsers(ctx context.Context) ([]models.User, error)
	RefreshAttendance(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	RefreshTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	MarkAttendance(ctx context.Context, userID, date, status, note string) error
	RecordTransaction(ctx context.Context, tx models.Transaction) error
	SaveUser(ctx context.Context, u models.User) error
	ExportAttendance(ctx context.Context, from, to string) error
}

// stateStore is the read side of offline.Store.
type stateStore interface {
	State() offline.State
	Pending() []offline.Entry
	Resume(ctx context.Context) int
	Subscribe() <-chan offline.Event
}

type App struct {
	config      *config.Config
	authService services.AuthService
	registry    registryService
	store       stateStore
	logger      logging.Logger
	reader      *bufio.Reader
	out         io.Writer
	now         func() time.Time

	// background workers started by Run; nil in tests
	watcher *netx.Watcher
	runner  *offline.Store
	db      *sql.DB

	mu      sync.Mutex
	mode    Mode
	session *models.Session
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	meta := metadata.NewSQLiteRepository(db)

	a := &App{
		config: c,
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
		db:     db,
		mode:   ModeOnline,
	}

	apiClient, err := client.NewHTTPClient(c.ServerURL,
		client.WithTokenStore(services.NewTokenStore(meta)),
		client.WithUnauthorizedHandler(a.onUnauthorized),
		client.WithLogger(logger),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a.watcher = netx.NewWatcher(apiClient.Ping,
		netx.WithInterval(c.OnlineCheckInterval),
		netx.WithLogger(logger.With("module", "watcher")),
	)

	sink, err := newSink(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := offline.New(
		offline.WithExecutor(offline.NewHTTPExecutor(apiClient, sink)),
		offline.WithKV(meta),
		offline.WithReporter(a.watcher),
		offline.WithRetryPolicy(offline.RetryPolicy{Base: c.RetryBase, Max: c.RetryMax}),
		offline.WithLogger(logger),
	)
	if err := store.Load(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load offline state: %w", err)
	}

	a.runner = store
	a.store = store
	a.authService = services.NewAuthService(apiClient, db)
	a.registry = services.NewRegistryService(apiClient, store)
	return a, nil
}

// newSink picks S3 when a bucket is configured, else the download directory.
func newSink(ctx context.Context, c *config.Config) (download.Sink, error) {
	if c.S3.Bucket == "" {
		return download.NewDirSink(c.DownloadDir), nil
	}
	return download.NewS3Sink(ctx, download.S3Config{
		Bucket:       c.S3.Bucket,
		Prefix:       c.S3.Prefix,
		Region:       c.S3.Region,
		BaseEndpoint: c.S3.Endpoint,
		AccessKey:    c.S3.AccessKey,
		SecretKey:    c.S3.SecretKey,
	})
}

// Run starts the background workers, restores the saved session and runs
// the REPL on stdin until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close(ctx)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); a.watcher.Run(ctx) }()
	go func() { defer wg.Done(); a.trackConnectivity(ctx, a.watcher.Subscribe()) }()
	go func() { defer wg.Done(); a.printEvents(ctx, a.store.Subscribe()) }()
	go func() {
		defer wg.Done()
		if err := a.runner.Run(ctx); err != nil && !errors.Is(err, offline.ErrClosed) {
			a.logger.Error(ctx, "offline worker stopped", "error", err)
		}
	}()

	a.restoreSession(ctx)
	fmt.Fprintln(a.out, "Welcome to the choir registry CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)

	cancel()
	_ = a.runner.Close()
	wg.Wait()
}

func (a *App) close(ctx context.Context) {
	if a.authService != nil {
		_ = a.authService.Close(ctx)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) restoreSession(ctx context.Context) {
	sess, err := a.authService.Session(ctx)
	switch {
	case err == nil:
		a.setSession(&sess)
		fmt.Fprintf(a.out, "Signed in as %s\n", sess.Email)
	case errors.Is(err, services.ErrNotLoggedIn):
	default:
		fmt.Fprintf(a.out, "Stored session unusable (%v), please log in\n", err)
	}
}

func (a *App) trackConnectivity(ctx context.Context, ch <-chan bool) {
	for {
		select {
		case online := <-ch:
			if online {
				a.setMode(ModeOnline)
			} else {
				a.setMode(ModeOffline)
			}
		case <-ctx.Done():
			return
		}
	}
}

// onUnauthorized runs after the HTTP client purged a rejected token.
func (a *App) onUnauthorized(ctx context.Context) {
	a.setSession(nil)
	fmt.Fprintln(a.out, "Session expired, please log in again")
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()
	if changed {
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) setSession(s *models.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

func (a *App) currentSession() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *App) isLoggedIn() bool {
	return a.currentSession() != nil
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.session != nil {
		s = a.session.Email + " "
	}
	if a.mode != "" {
		s = s + string(a.mode)
	}
	if n := len(a.pendingLocked()); n > 0 {
		s = fmt.Sprintf("%s, %d queued", s, n)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) pendingLocked() []offline.Entry {
	if a.store == nil {
		return nil
	}
	return a.store.Pending()
}
