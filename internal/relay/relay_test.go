package relay

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainServer answers /r/{n} with a redirect to /r/{n+1} until n reaches
// redirects, then with 200 and the body "final".
func chainServer(t *testing.T, redirects int) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/r/%d", &n); err != nil {
			http.NotFound(w, r)
			return
		}
		if n < redirects {
			w.Header().Set("Location", fmt.Sprintf("%s/r/%d", server.URL, n+1))
			w.WriteHeader(http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "final")
	}))
	t.Cleanup(server.Close)
	return server
}

func relayRequest(method, target string, extra url.Values) *http.Request {
	q := url.Values{"url": {target}}
	for k, v := range extra {
		q[k] = v
	}
	return httptest.NewRequest(method, "/proxy?"+q.Encode(), nil)
}

func serve(r *Relay, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRelayFollowsThreeRedirects(t *testing.T) {
	upstream := chainServer(t, 3)
	relay := New(DefaultOptions(), nil)

	rec := serve(relay, relayRequest(http.MethodGet, upstream.URL+"/r/0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "final", rec.Body.String())
	require.Empty(t, rec.Header().Get("Location"))
	require.Empty(t, rec.Header().Get(HeaderDisabledLocation))
}

func TestRelayDisablesFourthRedirect(t *testing.T) {
	upstream := chainServer(t, 4)
	relay := New(DefaultOptions(), nil)

	rec := serve(relay, relayRequest(http.MethodGet, upstream.URL+"/r/0", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, upstream.URL+"/r/4", rec.Header().Get(HeaderDisabledLocation))
	_, hasLocation := rec.Header()["Location"]
	require.False(t, hasLocation)
}

func TestRelayRenamesSetCookie(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "a=b")
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	rec := serve(New(DefaultOptions(), nil), relayRequest(http.MethodGet, upstream.URL, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "a=b", rec.Header().Get(HeaderSetCookie))
	require.Empty(t, rec.Header().Values("Set-Cookie"))
}

func TestRelayJoinsMultipleSetCookies(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "a=b")
		w.Header().Add("Set-Cookie", "c=d; Path=/")
	}))
	defer upstream.Close()

	resp, err := New(DefaultOptions(), nil).Do(t.Context(), relayRequest(http.MethodGet, upstream.URL, nil))
	require.NoError(t, err)
	defer closeBody(resp)

	require.Equal(t, "a=b, c=d; Path=/", resp.Header.Get(HeaderSetCookie))
	require.Empty(t, resp.Header.Values("Set-Cookie"))
}

func TestRelayRewritesOriginRefererCookie(t *testing.T) {
	var seen http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer upstream.Close()

	target := upstream.URL + "/iiif/abc/info.json?x=1"
	req := relayRequest(http.MethodGet, target, url.Values{"cookies": {"session=42; lang=fr"}})
	req.Header.Set("Origin", "https://viewer.example.net")
	req.Header.Set("Referer", "https://viewer.example.net/page")
	req.Header.Set("Cookie", "viewer=1")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Connection", "keep-alive, X-Private")
	req.Header.Set("X-Private", "secret")

	rec := serve(New(DefaultOptions(), nil), req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, upstream.URL, seen.Get("Origin"))
	require.Equal(t, target, seen.Get("Referer"))
	require.Equal(t, "session=42; lang=fr", seen.Get("Cookie"))
	require.Equal(t, "application/json", seen.Get("Accept"))
	require.Empty(t, seen.Get("X-Private"))
}

func TestRelayKeepsCallerCookieWithoutOverride(t *testing.T) {
	var cookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
	}))
	defer upstream.Close()

	req := relayRequest(http.MethodGet, upstream.URL, nil)
	req.Header.Set("Cookie", "viewer=1")
	serve(New(DefaultOptions(), nil), req)

	require.Equal(t, "viewer=1", cookie)
}

func TestRelayReplaysHeadersAndBodyOnEveryHop(t *testing.T) {
	type hit struct {
		method, referer, cookie, body string
	}
	var hits []hit
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		hits = append(hits, hit{r.Method, r.Header.Get("Referer"), r.Header.Get("Cookie"), string(body)})
		if r.URL.Path == "/start" {
			// relative redirect on a different path
			w.Header().Set("Location", "/next")
			w.WriteHeader(http.StatusTemporaryRedirect)
			return
		}
		_, _ = io.WriteString(w, "done")
	}))
	defer server.Close()

	q := url.Values{"url": {server.URL + "/start"}, "cookies": {"k=v"}}
	req := httptest.NewRequest(http.MethodPost, "/proxy?"+q.Encode(), strings.NewReader("payload"))
	rec := serve(New(DefaultOptions(), nil), req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "done", rec.Body.String())
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, http.MethodPost, h.method)
		assert.Equal(t, server.URL+"/start", h.referer)
		assert.Equal(t, "k=v", h.cookie)
		assert.Equal(t, "payload", h.body)
	}
}

func TestRelayDropsUpstreamCORSHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "https://only.example.org")
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = io.WriteString(w, "jpeg")
	}))
	defer upstream.Close()

	rec := serve(New(DefaultOptions(), nil), relayRequest(http.MethodGet, upstream.URL, nil))
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRelayFailuresBecome500(t *testing.T) {
	relay := New(DefaultOptions(), nil)

	rec := serve(relay, httptest.NewRequest(http.MethodGet, "/proxy", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, ErrMissingTarget.Error(), rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = serve(relay, relayRequest(http.MethodGet, "not a url", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotEmpty(t, rec.Body.String())

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	rec = serve(relay, relayRequest(http.MethodGet, closedURL, nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRelayZeroHopBudget(t *testing.T) {
	upstream := chainServer(t, 1)
	opts := DefaultOptions()
	opts.MaxHops = 0

	rec := serve(New(opts, nil), relayRequest(http.MethodGet, upstream.URL+"/r/0", nil))
	require.Equal(t, upstream.URL+"/r/1", rec.Header().Get(HeaderDisabledLocation))
}

func TestRelayRejectsOversizedBody(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBodyBytes = 4

	q := url.Values{"url": {"http://127.0.0.1:1/"}}
	req := httptest.NewRequest(http.MethodPost, "/proxy?"+q.Encode(), strings.NewReader("too large"))
	rec := serve(New(opts, nil), req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "exceeds 4 bytes")
}

func TestOriginOf(t *testing.T) {
	origin, err := originOf("https://iiif.example.org:8443/a/b?c=d")
	require.NoError(t, err)
	require.Equal(t, "https://iiif.example.org:8443", origin)

	_, err = originOf("relative/path")
	require.Error(t, err)
}

func TestOriginOfSerializesLikeABrowser(t *testing.T) {
	cases := map[string]string{
		"https://Example.ORG:443/a":         "https://example.org",
		"http://example.org:80/a":           "http://example.org",
		"HTTP://IIIF.Example.org:8080/x":    "http://iiif.example.org:8080",
		"https://example.org:80/a":          "https://example.org:80",
		"http://[::1]:80/info.json":         "http://[::1]",
		"http://[::1]:8182/info.json":       "http://[::1]:8182",
		"https://user:pw@example.org/a?b=c": "https://example.org",
	}
	for raw, want := range cases {
		got, err := originOf(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestRelaySendsSerializedOrigin(t *testing.T) {
	var origin string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = r.Header.Get("Origin")
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	target := "HTTP://" + strings.ToUpper(u.Hostname()) + ":" + u.Port() + "/img/info.json"

	rec := serve(New(DefaultOptions(), nil), relayRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://"+u.Host, origin)
}
