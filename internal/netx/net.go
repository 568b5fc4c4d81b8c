// Package netx contains HTTP request helpers shared by the worker and its tests.
package netx

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/storyqueue/internal/common"
)

// IsNavigation reports whether r is a top-level page load. Browsers mark
// those with Sec-Fetch-Mode: navigate; clients that don't send fetch metadata
// are classified by an Accept header asking for HTML.
func IsNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if mode := r.Header.Get(common.FetchModeHeader); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// CacheKey returns the key a request is cached under: the path plus the raw
// query, so "/a?x=1" and "/a?x=2" are distinct entries.
func CacheKey(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		return p + "?" + u.RawQuery
	}
	return p
}

// IsSuccess reports a 2xx status.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// hopHeaders are connection-scoped and must not be forwarded or cached.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// StripHopHeaders removes hop-by-hop headers in place.
func StripHopHeaders(h http.Header) {
	for _, k := range hopHeaders {
		h.Del(k)
	}
}

// CopyHeader adds every value of src to dst.
func CopyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
