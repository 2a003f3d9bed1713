// Package interceptor is the network interception layer of the edge proxy.
//
// Every request from the client passes through an Interceptor, which picks
// a route for it (see Classify) and then either forwards it untouched,
// forwards it without caching, or goes network-first with a cache partition
// as fallback. When neither the network nor the cache can answer, a
// synthesized 503 JSON response is returned instead of an error.
//
// An Interceptor is an http.RoundTripper, so it can be installed as the
// transport of any http.Client, and an http.Handler that reverse-proxies
// inbound requests to a fixed origin.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
	"github.com/dmitrijs2005/choirsync/internal/logging"
	"github.com/dmitrijs2005/choirsync/internal/netx"
)

// Partition names of the current cache version.
const (
	GeneralCacheName = "choir-registry-v1"
	AuthCacheName    = "choir-registry-auth-v1"
)

var ErrNoOrigin = errors.New("interceptor: origin is not configured")

// Config holds the tunables of an Interceptor.
type Config struct {
	// OfflineFlag is the value of the "offline" field and the X-Is-Offline
	// header in synthesized responses.
	OfflineFlag    bool
	OfflineMessage string
	// BypassPrefixes are path prefixes forwarded without any cache access.
	BypassPrefixes []string
	// BuildAssetPrefix is a path prefix never written to the general cache.
	BuildAssetPrefix string
}

func DefaultConfig() Config {
	return Config{
		OfflineFlag:      true,
		OfflineMessage:   DefaultOfflineMessage,
		BypassPrefixes:   append([]string(nil), DefaultBypassPrefixes...),
		BuildAssetPrefix: DefaultBuildAssetPrefix,
	}
}

type Option func(*Interceptor)

// WithTransport sets the transport used for network attempts
// (http.DefaultTransport by default).
func WithTransport(rt http.RoundTripper) Option {
	return func(i *Interceptor) { i.next = rt }
}

// WithReporter sets the connectivity source consulted by the login route.
func WithReporter(r netx.Reporter) Option {
	return func(i *Interceptor) { i.conn = r }
}

func WithLogger(l logging.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

func WithConfig(c Config) Option {
	return func(i *Interceptor) { i.cfg = c }
}

// WithOrigin sets the upstream served by ServeHTTP and warmed by Install.
func WithOrigin(u *url.URL) Option {
	return func(i *Interceptor) { i.origin = u }
}

func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) { i.now = now }
}

type Interceptor struct {
	next    http.RoundTripper
	storage *cachestorage.Storage
	general *cachestorage.Cache
	auth    *cachestorage.Cache
	conn    netx.Reporter
	logger  logging.Logger
	cfg     Config
	origin  *url.URL
	now     func() time.Time
	proxy   *httputil.ReverseProxy
}

var (
	_ http.RoundTripper = (*Interceptor)(nil)
	_ http.Handler      = (*Interceptor)(nil)
)

// New opens both current partitions in storage and builds an Interceptor.
func New(ctx context.Context, storage *cachestorage.Storage, opts ...Option) (*Interceptor, error) {
	i := &Interceptor{
		next:    http.DefaultTransport,
		storage: storage,
		conn:    netx.Static(true),
		logger:  logging.Nop(),
		cfg:     DefaultConfig(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	i.logger = i.logger.With("module", "interceptor")
	if i.cfg.OfflineMessage == "" {
		i.cfg.OfflineMessage = DefaultOfflineMessage
	}

	var err error
	if i.general, err = storage.Open(ctx, GeneralCacheName); err != nil {
		return nil, fmt.Errorf("open general cache: %w", err)
	}
	if i.auth, err = storage.Open(ctx, AuthCacheName); err != nil {
		return nil, fmt.Errorf("open auth cache: %w", err)
	}

	if i.origin != nil {
		i.proxy = i.newReverseProxy()
	}
	return i, nil
}

// RoundTrip routes req. Except for bypassed requests, whose outcome is
// passed through as is, the returned error is always nil.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	route := i.Classify(req)
	ctx := req.Context()

	switch route {
	case RouteBypass:
		return i.next.RoundTrip(req)

	case RouteAPI:
		resp, err := i.next.RoundTrip(req)
		if err != nil {
			i.logger.Debug(ctx, "api request failed, answering offline", "url", req.URL.String(), "error", err)
			return i.offlineResponse(req), nil
		}
		return resp, nil

	case RouteLogin:
		if !i.conn.Online() {
			i.logger.Debug(ctx, "offline, login short-circuited", "url", req.URL.String())
			return i.offlineResponse(req), nil
		}
		resp, err := i.fetchAndStore(req, i.auth)
		if err != nil {
			return i.offlineResponse(req), nil
		}
		return resp, nil

	case RouteAuth:
		if !replayable(req) {
			return i.networkFirstFallback(req, nil, nil), nil
		}
		return i.networkFirst(req, i.auth), nil

	case RouteGeneral:
		if !replayable(req) {
			return i.networkFirstFallback(req, nil, nil), nil
		}
		target := i.general
		if !i.cacheable(req) {
			target = nil
		}
		return i.networkFirstFallback(req, target, i.general), nil
	}

	panic(fmt.Sprintf("interceptor: unhandled route %d", route))
}

func (i *Interceptor) networkFirst(req *http.Request, c *cachestorage.Cache) *http.Response {
	return i.networkFirstFallback(req, c, c)
}

// networkFirstFallback tries the network once, storing ok responses in
// store (if non-nil). On failure it serves the fallback entry for req (if
// fallback is non-nil), or the synthesized offline response.
func (i *Interceptor) networkFirstFallback(req *http.Request, store, fallback *cachestorage.Cache) *http.Response {
	resp, err := i.fetchAndStore(req, store)
	if err == nil {
		return resp
	}

	ctx := context.WithoutCancel(req.Context())
	if fallback == nil {
		i.logger.Debug(ctx, "network failed, request not replayable", "method", req.Method, "url", req.URL.String(), "error", err)
		return i.offlineResponse(req)
	}
	cached, found, mErr := fallback.Match(ctx, req)
	if mErr != nil {
		i.logger.Warn(ctx, "cache lookup failed", "cache", fallback.Name(), "url", req.URL.String(), "error", mErr)
	}
	if found {
		i.logger.Debug(ctx, "network failed, served from cache", "cache", fallback.Name(), "url", req.URL.String())
		return cached
	}
	i.logger.Debug(ctx, "network failed, no cached copy", "cache", fallback.Name(), "url", req.URL.String(), "error", err)
	return i.offlineResponse(req)
}

// fetchAndStore makes the single network attempt for req. An ok response is
// written to c (when non-nil) before it is returned; a failed write is only
// logged. A non-nil error means the network attempt failed.
func (i *Interceptor) fetchAndStore(req *http.Request, c *cachestorage.Cache) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if c == nil || !ok(resp) {
		return resp, nil
	}

	ctx := context.WithoutCancel(req.Context())
	entry, err := cachestorage.Capture(resp, i.now())
	if err != nil {
		// the body broke mid-read; treat as a failed fetch
		return nil, err
	}
	if err := c.Put(ctx, req, entry); err != nil {
		i.logger.Warn(ctx, "cache write failed", "cache", c.Name(), "url", req.URL.String(), "error", err)
	}
	return resp, nil
}
