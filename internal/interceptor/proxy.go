package interceptor

import (
	"net/http"
	"net/http/httputil"
)

// ServeHTTP reverse-proxies r to the configured origin through RoundTrip.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if i.proxy == nil {
		i.logger.Error(r.Context(), "request received without origin", "path", r.URL.Path)
		http.Error(w, ErrNoOrigin.Error(), http.StatusBadGateway)
		return
	}
	i.proxy.ServeHTTP(w, r)
}

func (i *Interceptor) newReverseProxy() *httputil.ReverseProxy {
	origin := i.origin
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		Transport: i,
		// only bypassed requests can fail here
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			i.logger.Debug(r.Context(), "bypassed request failed", "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
