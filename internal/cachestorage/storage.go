// Package cachestorage is a named-partition response cache over a pluggable
// byte store.
//
// A Storage holds any number of partitions (Cache). Each partition maps a
// request (method plus absolute URL) to the last stored response for it.
// Entries have no TTL; they live until their partition is deleted or the
// backing Provider evicts them.
package cachestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// RegistryPrefix namespaces the partition registry keys. Providers that
// evict must keep these keys.
const RegistryPrefix = "partitions:"

const entryPrefix = "entry:"

// CachedResponse is the stored form of an HTTP response.
type CachedResponse struct {
	URL      string      `cbor:"url" msgpack:"url"`
	Method   string      `cbor:"method" msgpack:"method"`
	Status   int         `cbor:"status" msgpack:"status"`
	Header   http.Header `cbor:"header" msgpack:"header"`
	Body     []byte      `cbor:"body" msgpack:"body"`
	StoredAt time.Time   `cbor:"stored_at" msgpack:"stored_at"`
}

// OK reports whether the stored status is 2xx.
func (c CachedResponse) OK() bool {
	return c.Status >= 200 && c.Status < 300
}

// Response rebuilds an *http.Response for req. Every call returns a fresh
// body reader, so a single entry can be served any number of times.
func (c CachedResponse) Response(req *http.Request) *http.Response {
	h := c.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.Status, http.StatusText(c.Status)),
		StatusCode:    c.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}

// Capture reads resp's body into a CachedResponse and replaces resp.Body
// with an unread copy, leaving resp usable by the caller.
func Capture(resp *http.Response, now time.Time) (CachedResponse, error) {
	var body []byte
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return CachedResponse{}, fmt.Errorf("read response body: %w", err)
		}
		body = b
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	cr := CachedResponse{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: now.UTC(),
	}
	if resp.Request != nil {
		cr.Method = resp.Request.Method
		cr.URL = resp.Request.URL.String()
	}
	return cr, nil
}

// RequestKey identifies a request within a partition.
func RequestKey(req *http.Request) string {
	m := req.Method
	if m == "" {
		m = http.MethodGet
	}
	return m + " " + req.URL.String()
}

type Option func(*Storage)

// WithCodec overrides the entry codec (CBOR by default).
func WithCodec(c Codec[CachedResponse]) Option {
	return func(s *Storage) { s.codec = c }
}

// WithClock overrides the time source used for StoredAt.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// Storage is the set of named partitions kept in one Provider.
type Storage struct {
	p     Provider
	codec Codec[CachedResponse]
	now   func() time.Time
}

func New(p Provider, opts ...Option) (*Storage, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	s := &Storage{p: p, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.codec == nil {
		c, err := NewCBOR[CachedResponse]()
		if err != nil {
			return nil, fmt.Errorf("cbor codec: %w", err)
		}
		s.codec = c
	}
	return s, nil
}

// Open returns the partition called name, registering it if needed.
func (s *Storage) Open(ctx context.Context, name string) (*Cache, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := s.p.Set(ctx, RegistryPrefix+name, []byte(name)); err != nil {
		return nil, fmt.Errorf("register partition %q: %w", name, err)
	}
	return &Cache{name: name, s: s}, nil
}

// Has reports whether the partition is registered.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.p.Get(ctx, RegistryPrefix+name)
	if err != nil {
		return false, fmt.Errorf("lookup partition %q: %w", name, err)
	}
	return ok, nil
}

// Delete drops a partition and all of its entries. It reports whether the
// partition existed.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := s.Has(ctx, name)
	if err != nil {
		return false, err
	}
	if err := s.p.DelPrefix(ctx, partitionPrefix(name)); err != nil {
		return false, fmt.Errorf("delete entries of %q: %w", name, err)
	}
	if err := s.p.Del(ctx, RegistryPrefix+name); err != nil {
		return false, fmt.Errorf("unregister partition %q: %w", name, err)
	}
	return ok, nil
}

// Keys lists the registered partition names, sorted.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.p.Keys(ctx, RegistryPrefix)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, RegistryPrefix))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.p.Close(ctx)
}

func partitionPrefix(name string) string {
	return entryPrefix + name + ":"
}

// Cache is one named partition.
type Cache struct {
	name string
	s    *Storage
}

func (c *Cache) Name() string { return c.name }

// Match looks up the stored response for req.
func (c *Cache) Match(ctx context.Context, req *http.Request) (*http.Response, bool, error) {
	cr, err := c.Get(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return cr.Response(req), true, nil
}

// Get returns the stored entry for req or ErrNotFound.
func (c *Cache) Get(ctx context.Context, req *http.Request) (CachedResponse, error) {
	b, ok, err := c.s.p.Get(ctx, c.key(req))
	if err != nil {
		return CachedResponse{}, fmt.Errorf("get %s: %w", c.key(req), err)
	}
	if !ok {
		return CachedResponse{}, ErrNotFound
	}
	cr, err := c.s.codec.Decode(b)
	if err != nil {
		return CachedResponse{}, fmt.Errorf("decode %s: %w", c.key(req), err)
	}
	return cr, nil
}

// Put stores resp for req, replacing any previous entry.
// Only ok (2xx) responses are accepted.
func (c *Cache) Put(ctx context.Context, req *http.Request, resp CachedResponse) error {
	if !resp.OK() {
		return fmt.Errorf("%w: status %d", ErrInvalidEntry, resp.Status)
	}
	if resp.Method == "" {
		resp.Method = req.Method
	}
	if resp.URL == "" {
		resp.URL = req.URL.String()
	}
	if resp.StoredAt.IsZero() {
		resp.StoredAt = c.s.now().UTC()
	}
	b, err := c.s.codec.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key(req), err)
	}
	if err := c.s.p.Set(ctx, c.key(req), b); err != nil {
		return fmt.Errorf("set %s: %w", c.key(req), err)
	}
	return nil
}

// Delete removes the entry for req, reporting whether one existed.
func (c *Cache) Delete(ctx context.Context, req *http.Request) (bool, error) {
	key := c.key(req)
	_, ok, err := c.s.p.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := c.s.p.Del(ctx, key); err != nil {
		return false, fmt.Errorf("del %s: %w", key, err)
	}
	return ok, nil
}

// Keys lists the request keys stored in this partition, sorted.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	prefix := partitionPrefix(c.name)
	keys, err := c.s.p.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(out)
	return out, nil
}

func (c *Cache) key(req *http.Request) string {
	return partitionPrefix(c.name) + RequestKey(req)
}
