package runners

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/seaquell/outpost/pkg/protocol"
)

// fetchBodyMax bounds how much of a response is read; len of the read
// portion is what the result reports as size.
const fetchBodyMax = 2 << 20

const fetchUserAgent = "outpost-agent/1.0"

// FetchRunner performs an outbound HTTP GET, directly or through the
// controller's /proxy endpoint: on direct failure in auto mode, or for
// every request in server mode. Identical requests within the cache TTL
// are answered from cache.
type FetchRunner struct {
	client     *http.Client
	httpBase   string
	previewMax int
	cache      *expirable.LRU[string, protocol.FetchResult]
}

// FetchOptions tunes the runner; zero values get sensible defaults.
type FetchOptions struct {
	HTTPBase        string // proxy base URL, empty disables fallback
	Timeout         time.Duration
	PreviewMaxBytes int
	CacheTTL        time.Duration
}

func NewFetchRunner(opts FetchOptions) *FetchRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PreviewMaxBytes <= 0 {
		opts.PreviewMaxBytes = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	return &FetchRunner{
		client:     &http.Client{Timeout: opts.Timeout},
		httpBase:   opts.HTTPBase,
		previewMax: opts.PreviewMaxBytes,
		cache:      expirable.NewLRU[string, protocol.FetchResult](128, nil, opts.CacheTTL),
	}
}

func (*FetchRunner) Kind() string { return protocol.KindFetch }

func (f *FetchRunner) Run(ctx context.Context, rep *Reporter, payload json.RawMessage) {
	var p protocol.FetchPayload
	_ = json.Unmarshal(payload, &p)
	p.Normalize()

	if p.URL == "" {
		rep.Fail("fetch: url is required", nil)
		return
	}
	if u, err := url.Parse(p.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		rep.Fail("fetch: only http and https URLs are supported", nil)
		return
	}

	cacheKey := p.Where + " " + p.URL
	if res, ok := f.cache.Get(cacheKey); ok {
		rep.Success(res)
		return
	}

	start := time.Now()

	if p.Where == protocol.FetchModeServer {
		if f.httpBase == "" {
			rep.Fail("fetch: no proxy configured", nil)
			return
		}
		res, err := f.proxy(ctx, p.URL, start)
		if err != nil {
			rep.Fail("fetch: "+err.Error(), nil)
			return
		}
		f.finish(rep, cacheKey, res)
		return
	}

	res, err := f.direct(ctx, p.URL, start)
	if err == nil {
		f.finish(rep, cacheKey, res)
		return
	}
	if p.Where == protocol.FetchModeClient {
		rep.Fail("fetch: "+err.Error(), nil)
		return
	}

	if f.httpBase == "" {
		rep.Fail("fetch: direct request failed and no proxy configured: "+err.Error(), nil)
		return
	}
	res, err = f.proxy(ctx, p.URL, start)
	if err != nil {
		rep.Fail("fetch: "+err.Error(), nil)
		return
	}
	f.finish(rep, cacheKey, res)
}

// finish caches successful responses and mirrors the HTTP status into
// the frame's ok flag, matching the wire contract.
func (f *FetchRunner) finish(rep *Reporter, cacheKey string, res protocol.FetchResult) {
	ok := res.Status >= 200 && res.Status < 300
	if ok {
		f.cache.Add(cacheKey, res)
	}
	rep.Finish(ok, "", res)
}

func (f *FetchRunner) direct(ctx context.Context, target string, start time.Time) (protocol.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return protocol.FetchResult{}, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return protocol.FetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyMax))
	if err != nil {
		return protocol.FetchResult{}, fmt.Errorf("read body: %w", err)
	}

	return protocol.FetchResult{
		Kind:        protocol.KindFetch,
		Status:      resp.StatusCode,
		Size:        len(body),
		Millis:      time.Since(start).Milliseconds(),
		Via:         "direct",
		ContentType: strings.ToLower(resp.Header.Get("Content-Type")),
		Body:        f.preview(body),
	}, nil
}

// proxy asks the controller to perform the request. The proxy is
// expected to answer with a JSON body carrying at least a status field;
// anything else is treated as a raw string body.
func (f *FetchRunner) proxy(ctx context.Context, target string, start time.Time) (protocol.FetchResult, error) {
	proxyURL := strings.TrimSuffix(f.httpBase, "/") + "/proxy?url=" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return protocol.FetchResult{}, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return protocol.FetchResult{}, fmt.Errorf("proxy: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchBodyMax))
	if err != nil {
		return protocol.FetchResult{}, fmt.Errorf("proxy: read body: %w", err)
	}

	res := protocol.FetchResult{
		Kind:        protocol.KindFetch,
		Millis:      time.Since(start).Milliseconds(),
		Via:         "proxy",
		ContentType: strings.ToLower(resp.Header.Get("Content-Type")),
	}

	var j struct {
		Status      int    `json:"status"`
		Size        int    `json:"size"`
		ContentType string `json:"contentType"`
		Body        string `json:"body"`
	}
	if jsonErr := json.Unmarshal(body, &j); jsonErr == nil && j.Status != 0 {
		res.Status = j.Status
		res.Size = j.Size
		if res.Size == 0 {
			res.Size = len(j.Body)
		}
		if j.ContentType != "" {
			res.ContentType = strings.ToLower(j.ContentType)
		}
		res.Body = f.preview([]byte(j.Body))
		return res, nil
	}

	// Not the expected JSON shape: report the proxy's own response.
	res.Status = resp.StatusCode
	res.Size = len(body)
	res.Body = f.preview(body)
	return res, nil
}

// preview truncates the body to the preview budget without splitting a
// multibyte UTF-8 sequence at the cut.
func (f *FetchRunner) preview(body []byte) string {
	if len(body) <= f.previewMax {
		return string(body)
	}
	cut := body[:f.previewMax]
	for i := 0; i < utf8.UTFMax-1 && len(cut) > 0; i++ {
		if r, _ := utf8.DecodeLastRune(cut); r != utf8.RuneError {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}
