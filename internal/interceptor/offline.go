package interceptor

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/choirsync/internal/common"
)

// DefaultOfflineMessage is the error text of the synthesized response.
const DefaultOfflineMessage = "Network unavailable: you are offline and no cached copy exists"

// OfflineBody is the JSON body of the synthesized offline response.
type OfflineBody struct {
	Error   string `json:"error"`
	Offline bool   `json:"offline"`
	Status  int    `json:"status"`
}

func (i *Interceptor) offlineBody() []byte {
	b, err := json.Marshal(OfflineBody{
		Error:   i.cfg.OfflineMessage,
		Offline: i.cfg.OfflineFlag,
		Status:  http.StatusServiceUnavailable,
	})
	if err != nil {
		// plain struct of string, bool and int
		panic(err)
	}
	return b
}

func (i *Interceptor) offlineHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(common.OfflineHeaderName, strconv.FormatBool(i.cfg.OfflineFlag))
	return h
}

// offlineResponse synthesizes the 503 answer used when neither the network
// nor the cache can serve req.
func (i *Interceptor) offlineResponse(req *http.Request) *http.Response {
	body := i.offlineBody()
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        i.offlineHeader(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// IsOffline reports whether resp is a synthesized offline response.
func IsOffline(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusServiceUnavailable &&
		resp.Header.Get(common.OfflineHeaderName) != ""
}
