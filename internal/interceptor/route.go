package interceptor

import (
	"net/http"
	"strings"
)

// Route is the handling class of an intercepted request.
type Route int

const (
	// RouteBypass requests go straight to the network; the cache is not touched.
	RouteBypass Route = iota
	// RouteAPI requests get one network attempt and are never cached.
	RouteAPI
	// RouteLogin is network-only and short-circuits when offline.
	RouteLogin
	// RouteAuth is network-first with the auth partition as fallback.
	RouteAuth
	// RouteGeneral is network-first with the general partition as fallback.
	RouteGeneral
)

func (r Route) String() string {
	switch r {
	case RouteBypass:
		return "bypass"
	case RouteAPI:
		return "api"
	case RouteLogin:
		return "login"
	case RouteAuth:
		return "auth"
	case RouteGeneral:
		return "general"
	}
	return "unknown"
}

const (
	apiPrefix       = "/api/"
	authSegment     = "/auth/"
	loginSuffix     = "/auth/login"
	hotUpdateMarker = ".hot-update."
)

// DefaultBypassPrefixes are the dev-server live-reload paths left alone.
var DefaultBypassPrefixes = []string{
	"/_next/webpack-hmr",
	"/__nextjs",
	"/_next/static/webpack/",
	"/__webpack_hmr",
	"/@vite/",
	"/@react-refresh",
}

// DefaultBuildAssetPrefix is the build-output namespace that is never cached.
const DefaultBuildAssetPrefix = "/_next/"

// Classify picks the route for req. The checks run in order: bypass, API,
// auth, general.
func (i *Interceptor) Classify(req *http.Request) Route {
	switch req.URL.Scheme {
	case "http", "https":
	default:
		return RouteBypass
	}

	p := req.URL.Path
	if strings.Contains(p, hotUpdateMarker) {
		return RouteBypass
	}
	for _, prefix := range i.cfg.BypassPrefixes {
		if strings.HasPrefix(p, prefix) {
			return RouteBypass
		}
	}

	if strings.HasPrefix(p, apiPrefix) {
		return RouteAPI
	}
	if strings.Contains(p, authSegment) {
		if strings.HasSuffix(strings.TrimSuffix(p, "/"), loginSuffix) {
			return RouteLogin
		}
		return RouteAuth
	}
	return RouteGeneral
}

func (i *Interceptor) cacheable(req *http.Request) bool {
	return i.cfg.BuildAssetPrefix == "" || !strings.HasPrefix(req.URL.Path, i.cfg.BuildAssetPrefix)
}

// replayable reports whether req may be stored in or served from a
// partition. Writes never are.
func replayable(req *http.Request) bool {
	switch req.Method {
	case "", http.MethodGet, http.MethodHead:
		return true
	}
	return false
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
