// Package edge wires the edge proxy daemon: cache storage on the configured
// backend, the interceptor in front of the origin, an origin connectivity
// watcher and the gRPC health service.
package edge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/provider/bigcache"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/provider/redis"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/provider/ristretto"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/provider/sqlstore"
	"github.com/dmitrijs2005/choirsync/internal/edge/config"
	"github.com/dmitrijs2005/choirsync/internal/interceptor"
	"github.com/dmitrijs2005/choirsync/internal/logging"
	"github.com/dmitrijs2005/choirsync/internal/netx"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	storage     *cachestorage.Storage
	interceptor *interceptor.Interceptor
	watcher     *netx.Watcher
	health      *HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, err
	}

	origin, err := url.Parse(c.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", c.Origin)
	}

	p, err := newProvider(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("cache backend %s: %w", c.CacheBackend, err)
	}
	codec, err := cachestorage.NewCodec(c.CacheCodec)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	storage, err := cachestorage.New(p, cachestorage.WithCodec(codec))
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	watcher := netx.NewWatcher(netx.HTTPProbe(nil, origin.JoinPath(c.ProbePath).String()),
		netx.WithInterval(c.ProbeInterval),
		netx.WithLogger(logger.With("module", "watcher")),
	)

	icfg := interceptor.DefaultConfig()
	icfg.OfflineFlag = c.OfflineFlag
	if c.OfflineMessage != "" {
		icfg.OfflineMessage = c.OfflineMessage
	}
	if len(c.BypassPrefixes) > 0 {
		icfg.BypassPrefixes = c.BypassPrefixes
	}
	icfg.BuildAssetPrefix = c.BuildAssetPrefix

	ic, err := interceptor.New(ctx, storage,
		interceptor.WithConfig(icfg),
		interceptor.WithOrigin(origin),
		interceptor.WithReporter(watcher),
		interceptor.WithLogger(logger),
	)
	if err != nil {
		_ = storage.Close(ctx)
		return nil, err
	}

	app := &App{
		config:      c,
		logger:      logger,
		storage:     storage,
		interceptor: ic,
		watcher:     watcher,
	}
	if c.HealthAddr != "" {
		app.health = NewHealthServer(c.HealthAddr, logger)
	}
	return app, nil
}

// newProvider opens the cache backend named in the config.
func newProvider(ctx context.Context, c *config.Config) (cachestorage.Provider, error) {
	switch c.CacheBackend {
	case config.BackendSQLite:
		return sqlstore.Open(ctx, sqlstore.SQLite, c.CacheDSN)
	case config.BackendPostgres:
		return sqlstore.Open(ctx, sqlstore.Postgres, c.CacheDSN)
	case config.BackendRedis:
		return redis.Dial(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	case config.BackendRistretto:
		rc := ristretto.DefaultConfig()
		if c.MemoryMB > 0 {
			rc.MaxCost = int64(c.MemoryMB) << 20
		}
		return ristretto.New(rc)
	case config.BackendBigcache:
		return bigcache.New(ctx, bigcache.Config{HardMaxCacheSizeMB: c.MemoryMB})
	}
	return nil, fmt.Errorf("unknown backend %q", c.CacheBackend)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Handler is the proxy handler, exposed for embedding and tests.
func (app *App) Handler() http.Handler {
	return app.interceptor
}

// Run warms and activates the cache, then serves until ctx is done or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	app.watcher.Check(ctx)
	app.interceptor.Install(ctx)
	if removed, err := app.interceptor.Activate(ctx); err != nil {
		app.logger.Warn(ctx, "cache activation failed", "error", err)
	} else if len(removed) > 0 {
		app.logger.Info(ctx, "old caches removed", "caches", removed)
	}

	ln, err := net.Listen("tcp", app.config.ListenAddr)
	if err != nil {
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	srv := &http.Server{Handler: app.interceptor}
	errs := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.watcher.Run(ctx)
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.health.Run(ctx); err != nil {
				errs <- fmt.Errorf("health server: %w", err)
				cancelFunc()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.logger.Info(ctx, "Starting edge proxy", "address", ln.Addr().String(), "origin", app.config.Origin)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			cancelFunc()
		}
	}()

	<-ctx.Done()
	app.logger.Info(ctx, "Stopping edge proxy...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "shutdown incomplete", "error", err)
	}
	wg.Wait()

	if err := app.storage.Close(shutdownCtx); err != nil {
		app.logger.Warn(shutdownCtx, "cache close failed", "error", err)
	}

	close(errs)
	return <-errs
}
