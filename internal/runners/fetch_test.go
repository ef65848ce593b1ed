package runners

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/seaquell/outpost/pkg/protocol"
)

func runFetch(t *testing.T, f *FetchRunner, payload string) protocol.ResultFrame {
	t.Helper()
	rec := &recorder{}
	rep := NewReporter("f1", rec)
	f.Run(context.Background(), rep, json.RawMessage(payload))
	results := rec.results()
	if len(results) != 1 {
		t.Fatalf("got %d result frames, want 1", len(results))
	}
	return results[0]
}

func TestFetch_Direct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("x", 2000))
	}))
	defer srv.Close()

	f := NewFetchRunner(FetchOptions{})
	res := runFetch(t, f, fmt.Sprintf(`{"url":%q}`, srv.URL))
	if !res.OK {
		t.Fatalf("result not ok: %v", res.Error)
	}
	out := res.Result.(protocol.FetchResult)
	if out.Status != 200 {
		t.Errorf("status = %d, want 200", out.Status)
	}
	if out.Size != 2000 {
		t.Errorf("size = %d, want 2000", out.Size)
	}
	if len(out.Body) != 1024 {
		t.Errorf("body preview = %d bytes, want 1024", len(out.Body))
	}
	if out.Via != "direct" {
		t.Errorf("via = %q, want direct", out.Via)
	}
}

func TestFetch_NonSuccessStatusMirroredIntoOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetchRunner(FetchOptions{})
	res := runFetch(t, f, fmt.Sprintf(`{"url":%q}`, srv.URL))
	if res.OK {
		t.Error("result ok for 404 response")
	}
	if res.Error != "" {
		t.Errorf("unexpected error text %q, status failures carry no error", res.Error)
	}
	out := res.Result.(protocol.FetchResult)
	if out.Status != 404 {
		t.Errorf("status = %d, want 404", out.Status)
	}
}

func TestFetch_ProxyFallback(t *testing.T) {
	proxied := false
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/proxy") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("url") == "" {
			t.Error("proxy called without url parameter")
		}
		proxied = true
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":200,"size":5,"body":"hello"}`)
	}))
	defer proxy.Close()

	f := NewFetchRunner(FetchOptions{HTTPBase: proxy.URL, Timeout: 2 * time.Second})
	// Unroutable target forces the direct attempt to fail.
	res := runFetch(t, f, `{"url":"http://127.0.0.1:1/nope","where":"auto"}`)
	if !proxied {
		t.Fatal("proxy endpoint was never called")
	}
	if !res.OK {
		t.Fatalf("result not ok: %v", res.Error)
	}
	out := res.Result.(protocol.FetchResult)
	if out.Via != "proxy" {
		t.Errorf("via = %q, want proxy", out.Via)
	}
	if out.Body != "hello" {
		t.Errorf("body = %q, want hello", out.Body)
	}
}

func TestFetch_ProxyNonJSONBody(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "plain text answer")
	}))
	defer proxy.Close()

	f := NewFetchRunner(FetchOptions{HTTPBase: proxy.URL, Timeout: 2 * time.Second})
	res := runFetch(t, f, `{"url":"http://127.0.0.1:1/nope"}`)
	if !res.OK {
		t.Fatalf("result not ok: %v", res.Error)
	}
	out := res.Result.(protocol.FetchResult)
	if out.Body != "plain text answer" {
		t.Errorf("body = %q", out.Body)
	}
	if out.Status != 200 {
		t.Errorf("status = %d, want proxy's own 200", out.Status)
	}
}

func TestFetch_ServerModeSkipsDirect(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("origin hit directly in server mode")
	}))
	defer origin.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != origin.URL {
			t.Errorf("proxy asked for %q", r.URL.Query().Get("url"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":200,"size":2,"body":"ok"}`)
	}))
	defer proxy.Close()

	f := NewFetchRunner(FetchOptions{HTTPBase: proxy.URL, Timeout: 2 * time.Second})
	res := runFetch(t, f, fmt.Sprintf(`{"url":%q,"where":"server"}`, origin.URL))
	if !res.OK {
		t.Fatalf("result not ok: %v", res.Error)
	}
	out := res.Result.(protocol.FetchResult)
	if out.Via != "proxy" {
		t.Errorf("via = %q, want proxy", out.Via)
	}
}

func TestFetch_ServerModeWithoutProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("origin hit directly in server mode")
	}))
	defer origin.Close()

	f := NewFetchRunner(FetchOptions{Timeout: time.Second})
	res := runFetch(t, f, fmt.Sprintf(`{"url":%q,"where":"server"}`, origin.URL))
	if res.OK {
		t.Error("result ok, want failure")
	}
	if !strings.Contains(res.Error, "no proxy configured") {
		t.Errorf("error = %q, want mention of missing proxy", res.Error)
	}
}

func TestFetch_NoProxyConfigured(t *testing.T) {
	f := NewFetchRunner(FetchOptions{Timeout: time.Second})
	res := runFetch(t, f, `{"url":"http://127.0.0.1:1/nope"}`)
	if res.OK {
		t.Error("result ok, want failure")
	}
	if !strings.Contains(res.Error, "no proxy configured") {
		t.Errorf("error = %q, want mention of missing proxy", res.Error)
	}
}

func TestFetch_ClientOnlyDoesNotFallBack(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("proxy called in client-only mode")
	}))
	defer proxy.Close()

	f := NewFetchRunner(FetchOptions{HTTPBase: proxy.URL, Timeout: time.Second})
	res := runFetch(t, f, `{"url":"http://127.0.0.1:1/nope","where":"client"}`)
	if res.OK {
		t.Error("result ok, want failure")
	}
}

func TestFetch_MissingURL(t *testing.T) {
	f := NewFetchRunner(FetchOptions{})
	res := runFetch(t, f, `{}`)
	if res.OK {
		t.Error("result ok, want failure")
	}
}

func TestFetch_PreviewKeepsUTF8Intact(t *testing.T) {
	f := NewFetchRunner(FetchOptions{PreviewMaxBytes: 5})

	// The byte budget lands in the middle of the two-byte "é".
	got := f.preview([]byte("abcdéxyz"))
	if got != "abcd" {
		t.Errorf("preview = %q, want %q", got, "abcd")
	}
	if !utf8.ValidString(got) {
		t.Error("preview is not valid UTF-8")
	}

	// Binary bodies lose at most a few trailing bytes.
	bin := []byte{0x00, 0x01, 0xff, 0xfe, 0xfd, 0xfc}
	if got := f.preview(bin); len(got) < 2 {
		t.Errorf("binary preview over-trimmed to %d bytes", len(got))
	}
}

func TestFetch_CacheHit(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "cached")
	}))
	defer srv.Close()

	f := NewFetchRunner(FetchOptions{CacheTTL: time.Minute})
	payload := fmt.Sprintf(`{"url":%q}`, srv.URL)
	runFetch(t, f, payload)
	runFetch(t, f, payload)
	if hits != 1 {
		t.Errorf("origin hit %d times, want 1", hits)
	}
}
