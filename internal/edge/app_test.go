package edge

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/edge/config"
	"github.com/dmitrijs2005/choirsync/internal/interceptor"
)

func testConfig(t *testing.T, origin string) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.Origin = origin
	c.CacheDSN = filepath.Join(t.TempDir(), "edge.db")
	c.HealthAddr = ""
	c.ProbeInterval = time.Hour
	c.ShutdownTimeout = time.Second
	c.LogLevel = "error"
	return c
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestApp_ServesFromCacheWhenOriginIsDown(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = io.WriteString(w, "home")
		case "/members":
			_, _ = io.WriteString(w, "member list")
		default:
			http.NotFound(w, r)
		}
	}))

	app, err := NewApp(context.Background(), testConfig(t, origin.URL))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	proxy := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	app.interceptor.Install(ctx)

	resp, body := get(t, proxy+"/members")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "member list", body)

	origin.Close()

	resp, body = get(t, proxy+"/members")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "member list", body)

	resp, body = get(t, proxy+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "home", body)

	resp, body = get(t, proxy+"/never-seen")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(common.OfflineHeaderName))
	assert.Contains(t, body, `"offline":true`)

	resp, _ = get(t, proxy+"/api/users")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestApp_ActivateDropsOldPartitions(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, "http://127.0.0.1:1"))
	require.NoError(t, err)
	ctx := context.Background()
	t.Cleanup(func() { _ = app.storage.Close(ctx) })

	_, err = app.storage.Open(ctx, "choir-registry-v0")
	require.NoError(t, err)

	removed, err := app.interceptor.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"choir-registry-v0"}, removed)

	names, err := app.storage.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{interceptor.GeneralCacheName, interceptor.AuthCacheName}, names)
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "bad origin", modify: func(c *config.Config) { c.Origin = "not a url" }},
		{name: "unknown backend", modify: func(c *config.Config) { c.CacheBackend = "memcached" }},
		{name: "unknown codec", modify: func(c *config.Config) { c.CacheCodec = "gob" }},
		{name: "bad log level", modify: func(c *config.Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t, "http://127.0.0.1:1")
			tt.modify(c)
			_, err := NewApp(context.Background(), c)
			assert.Error(t, err)
		})
	}
}

func TestNewProvider_MemoryBackends(t *testing.T) {
	for _, backend := range []string{config.BackendRistretto, config.BackendBigcache} {
		t.Run(backend, func(t *testing.T) {
			c := testConfig(t, "http://127.0.0.1:1")
			c.CacheBackend = backend
			c.MemoryMB = 8

			p, err := newProvider(context.Background(), c)
			require.NoError(t, err)
			t.Cleanup(func() { _ = p.Close(context.Background()) })

			require.NoError(t, p.Set(context.Background(), "k", []byte("v")))
		})
	}
}
