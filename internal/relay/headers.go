package relay

import (
	"net/http"
	"strings"
)

// hopByHopHeaders belong to a single connection and are never forwarded.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// stripHopByHop removes hop-by-hop headers, including those named in the
// Connection header.
func stripHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for k := range hopByHopHeaders {
		h.Del(k)
	}
}

// CopyResponseHeaders copies upstream headers to dst minus hop-by-hop ones.
// Access-Control-* headers are dropped; the relay's own CORS middleware owns
// them.
func CopyResponseHeaders(dst, src http.Header) {
	named := make(map[string]bool)
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			named[http.CanonicalHeaderKey(strings.TrimSpace(name))] = true
		}
	}

	for key, values := range src {
		canonical := http.CanonicalHeaderKey(key)
		if hopByHopHeaders[canonical] || named[canonical] {
			continue
		}
		if strings.HasPrefix(canonical, "Access-Control-") {
			continue
		}
		for _, v := range values {
			dst.Add(canonical, v)
		}
	}
}
