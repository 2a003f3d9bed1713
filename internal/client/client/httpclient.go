package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/logging"
)

// TokenStore supplies and purges the access token. The auth service's
// metadata-backed store is the production implementation.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

type HTTPClient struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenStore
	onUnauthorized func(ctx context.Context)
	logger         logging.Logger
}

var _ Client = (*HTTPClient)(nil)

type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

func WithTokenStore(ts TokenStore) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

// WithUnauthorizedHandler registers the hook fired after a 401 purged the
// stored credentials; the CLI uses it to demand a new login.
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *HTTPClient) { c.onUnauthorized = fn }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "http_client")
	return c, nil
}

// Do sends req with the stored bearer token.
//
// Transport failures wrap ErrUnavailable. Statuses >= 400 return *StatusError.
// A 401 first purges the stored token and fires the unauthorized hook.
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	return c.do(ctx, req, true)
}

func (c *HTTPClient) do(ctx context.Context, req Request, authenticated bool) (*Response, error) {
	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if authenticated && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read access token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < http.StatusBadRequest {
		return out, nil
	}

	statusErr := &StatusError{
		Status:  resp.StatusCode,
		Body:    data,
		Offline: resp.Header.Get(common.OfflineHeaderName) != "",
	}

	if resp.StatusCode == http.StatusUnauthorized && authenticated {
		c.handleUnauthorized(ctx)
	}

	return nil, statusErr
}

// handleUnauthorized purges credentials and fires the hook. Queued offline
// work is not touched here.
func (c *HTTPClient) handleUnauthorized(ctx context.Context) {
	c.logger.Warn(ctx, "received 401, purging stored credentials")
	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			c.logger.Error(ctx, "purge credentials", "error", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
}

func (c *HTTPClient) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty request path")
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse request path: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for an access token. A rejected login returns
// ErrUnauthorized without firing the unauthorized hook.
func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (string, error) {
	resp, err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: string(password)},
	}, false)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	var lr loginResponse
	if err := resp.Decode(&lr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	token := lr.Token
	if token == "" {
		token = lr.AccessToken
	}
	if token == "" {
		return "", errors.New("login response carries no token")
	}
	return token, nil
}

// Ping checks that the backend answers through the proxy. A synthesized
// offline response counts as unavailable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, Request{Method: http.MethodGet, Path: "/api/health"}, false)
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && !se.Offline && se.Status < http.StatusInternalServerError {
		// the server answered; only the health route is missing or guarded
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
