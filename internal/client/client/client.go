package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// Client is the transport contract the registry client needs from the backend.
type Client interface {
	Close() error
	Do(ctx context.Context, req Request) (*Response, error)
	Login(ctx context.Context, email string, password []byte) (string, error)
	Ping(ctx context.Context) error
}

// Request describes one call against the registry API.
//
// Path is resolved against the client's base URL; an absolute URL is used
// as-is. A non-nil Body is sent as JSON.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response is a fully-read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}
