package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/download"
	"github.com/dmitrijs2005/choirsync/internal/netx"
)

// ResponseBlob marks an effect whose response is a file to save.
const ResponseBlob = "blob"

// Effect describes the network request behind an optimistic action.
type Effect struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Body         json.RawMessage   `json:"body,omitempty"`
	ResponseType string            `json:"responseType,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// NewEffect builds an effect with body marshaled to JSON. A nil body is
// left out.
func NewEffect(method, url string, body any) (Effect, error) {
	e := Effect{URL: url, Method: method}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Effect{}, fmt.Errorf("marshal effect body: %w", err)
		}
		e.Body = b
	}
	return e, nil
}

// Result is what a successful effect produced: the JSON body, or for blob
// effects the place the file was saved.
type Result struct {
	Body     json.RawMessage
	Location string
}

// Executor performs effects. A returned error exposing StatusCode() int
// is classified by its status; any other error counts as a network failure.
type Executor interface {
	Execute(ctx context.Context, e Effect) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, e Effect) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, e Effect) (Result, error) { return f(ctx, e) }

// HTTPExecutor sends effects through the registry API client.
type HTTPExecutor struct {
	client client.Client
	sink   download.Sink
}

// NewHTTPExecutor builds an executor. sink may be nil when no blob effects
// are dispatched.
func NewHTTPExecutor(c client.Client, sink download.Sink) *HTTPExecutor {
	return &HTTPExecutor{client: c, sink: sink}
}

func (x *HTTPExecutor) Execute(ctx context.Context, e Effect) (Result, error) {
	req := client.Request{Method: e.Method, Path: e.URL, Headers: e.Headers}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if len(e.Body) > 0 {
		req.Body = e.Body
	}

	resp, err := x.client.Do(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if e.ResponseType != ResponseBlob {
		return Result{Body: json.RawMessage(resp.Body)}, nil
	}

	if x.sink == nil {
		return Result{}, fmt.Errorf("blob effect %s %s: no download sink configured", e.Method, e.URL)
	}
	name := netx.FilenameFromDisposition(resp.Header.Get("Content-Disposition"))
	loc, err := x.sink.Save(ctx, name, resp.Header.Get("Content-Type"), bytes.NewReader(resp.Body))
	if err != nil {
		return Result{}, fmt.Errorf("save %s: %w", name, err)
	}
	return Result{Location: loc}, nil
}
