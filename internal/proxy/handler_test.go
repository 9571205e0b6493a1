package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/enzococca/SoqotraRockArt/internal/config"
)

const requestIDKey = "_rockart_request_id"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type errorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func proxyConfig(target string) *config.Config {
	return &config.Config{
		Cog: config.CogConfig{
			TargetURL:       target,
			UpstreamTimeout: config.Duration(5 * time.Second),
		},
	}
}

func newProxyApp(h *Handler) *fiber.App {
	app := fiber.New()
	app.Get("/api/cog-proxy", h.HandleFetch)
	app.Options("/api/cog-proxy", h.HandlePreflight)
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload
}

func assertCORS(t *testing.T, resp *http.Response) {
	t.Helper()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard allow-origin, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Fatalf("unexpected allow-methods: %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "Range" {
		t.Fatalf("unexpected allow-headers: %q", got)
	}
	if got := resp.Header.Get("Access-Control-Expose-Headers"); got != "Content-Range, Content-Length, Accept-Ranges" {
		t.Fatalf("unexpected expose-headers: %q", got)
	}
}

func TestFetchRejectsWhenTargetMissing(t *testing.T) {
	var outbound int64
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			atomic.AddInt64(&outbound, 1)
			return nil, errors.New("must not be called")
		}),
	}

	h := NewHandler(client, quietLogger(), proxyConfig("   "))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	assertCORS(t, resp)

	payload := decodeError(t, resp)
	if payload.Error != "COG URL not configured" {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
	if atomic.LoadInt64(&outbound) != 0 {
		t.Fatalf("expected zero outbound requests, got %d", outbound)
	}
}

func TestFetchWritesFailureDirectlyToContext(t *testing.T) {
	app := fiber.New()
	defer app.Shutdown()

	ctx := app.AcquireCtx(new(fasthttp.RequestCtx))
	defer app.ReleaseCtx(ctx)
	ctx.Locals(requestIDKey, "no-target-req")

	logger := logrus.New()
	logBuf := &bytes.Buffer{}
	logger.SetOutput(logBuf)

	h := NewHandler(&http.Client{}, logger, proxyConfig(""))
	if err := h.HandleFetch(ctx); err != nil {
		t.Fatalf("HandleFetch returned unexpected error: %v", err)
	}
	if status := ctx.Response().StatusCode(); status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 for missing target, got %d", status)
	}
	if body := string(ctx.Response().Body()); !strings.Contains(body, "COG URL not configured") {
		t.Fatalf("expected error body to mention missing target, got %s", body)
	}
	if got := string(ctx.Response().Header.Peek("Access-Control-Allow-Origin")); got != "*" {
		t.Fatalf("expected CORS header on failure response, got %q", got)
	}
	if !strings.Contains(logBuf.String(), "cog_proxy_failed") {
		t.Fatalf("expected log to mention cog_proxy_failed, got %s", logBuf.String())
	}
	if !strings.Contains(logBuf.String(), "no-target-req") {
		t.Fatalf("expected log to include request id, got %s", logBuf.String())
	}
}

func TestFetchRecoversFromPanic(t *testing.T) {
	app := fiber.New()
	defer app.Shutdown()

	ctx := app.AcquireCtx(new(fasthttp.RequestCtx))
	defer app.ReleaseCtx(ctx)
	ctx.Locals(requestIDKey, "panic-req")

	logger := logrus.New()
	logBuf := &bytes.Buffer{}
	logger.SetOutput(logBuf)

	// nil 配置在读取目标地址时触发 panic，借此验证 recover 兜底。
	h := NewHandler(&http.Client{}, logger, nil)
	if err := h.HandleFetch(ctx); err != nil {
		t.Fatalf("HandleFetch returned unexpected error: %v", err)
	}
	if status := ctx.Response().StatusCode(); status != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 after panic, got %d", status)
	}
	if body := string(ctx.Response().Body()); !strings.Contains(body, "proxy failure") {
		t.Fatalf("expected error body to mention proxy failure, got %s", body)
	}
	if !strings.Contains(logBuf.String(), "panic") {
		t.Fatalf("expected log to mention panic, got %s", logBuf.String())
	}
	if !strings.Contains(logBuf.String(), "panic-req") {
		t.Fatalf("expected log to include request id, got %s", logBuf.String())
	}
}

func TestFetchForwardsRangeWindow(t *testing.T) {
	window := make([]byte, 100)
	for i := range window {
		window[i] = byte(i % 251)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=0-99" {
			t.Errorf("expected range header forwarded, got %q", got)
		}
		w.Header().Set("Content-Type", "image/tiff")
		w.Header().Set("Content-Range", "bytes 0-99/4096")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(window)
	}))
	defer upstream.Close()

	h := NewHandler(upstream.Client(), quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	req := httptest.NewRequest("GET", "/api/cog-proxy", nil)
	req.Header.Set("Range", "bytes=0-99")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	assertCORS(t, resp)

	if got := resp.Header.Get("Content-Range"); got != "bytes 0-99/4096" {
		t.Fatalf("expected content-range passthrough, got %q", got)
	}
	if got := resp.Header.Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("expected accept-ranges passthrough, got %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/tiff" {
		t.Fatalf("expected content-type passthrough, got %q", got)
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, window) {
		t.Fatalf("body mismatch: expected %d identical bytes, got %d", len(window), len(body))
	}
}

func TestFetchStreamsUnknownLengthBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Errorf("response writer must support flushing")
			return
		}
		for i := 0; i < 3; i++ {
			_, _ = w.Write([]byte("chunk-"))
			flusher.Flush()
		}
	}))
	defer upstream.Close()

	h := NewHandler(upstream.Client(), quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "chunk-chunk-chunk-" {
		t.Fatalf("unexpected streamed body: %q", string(body))
	}
}

func TestFetchDefaultsContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 显式清空 Content-Type，阻止 net/http 的自动嗅探。
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	}))
	defer upstream.Close()

	h := NewHandler(upstream.Client(), quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/tiff" {
		t.Fatalf("expected fallback content type, got %q", got)
	}
}

func TestFetchTranslatesUpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "object not found", http.StatusNotFound)
	}))
	defer upstream.Close()

	h := NewHandler(upstream.Client(), quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	assertCORS(t, resp)

	payload := decodeError(t, resp)
	if payload.Error != "upstream returned 404" {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
	if payload.Details != "object not found" {
		t.Fatalf("unexpected details: %q", payload.Details)
	}
}

func TestFetchTruncatesUpstreamDetails(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 1000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(long)
	}))
	defer upstream.Close()

	h := NewHandler(upstream.Client(), quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	payload := decodeError(t, resp)
	if len(payload.Details) > upstreamDetailLimit {
		t.Fatalf("details must be capped at %d chars, got %d", upstreamDetailLimit, len(payload.Details))
	}
	if payload.Details == "" {
		t.Fatalf("expected truncated details, got empty string")
	}
}

func TestFetchReportsUpstreamTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()

	transport := upstream.Client().Transport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 100 * time.Millisecond
	client := &http.Client{Transport: transport}

	h := NewHandler(client, quietLogger(), proxyConfig(upstream.URL))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	payload := decodeError(t, resp)
	if payload.Error != "upstream request timed out" {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
}

func TestFetchReportsTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := upstream.URL
	upstream.Close()

	h := NewHandler(&http.Client{Timeout: 2 * time.Second}, quietLogger(), proxyConfig(target))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	assertCORS(t, resp)

	payload := decodeError(t, resp)
	if payload.Error != "failed to fetch from upstream" {
		t.Fatalf("unexpected error message: %q", payload.Error)
	}
	if payload.Details == "" {
		t.Fatalf("expected transport details, got empty string")
	}
}

func TestPreflightRepliesWithEmptyBody(t *testing.T) {
	h := NewHandler(&http.Client{}, quietLogger(), proxyConfig(""))
	app := newProxyApp(h)

	resp, err := app.Test(httptest.NewRequest("OPTIONS", "/api/cog-proxy", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	assertCORS(t, resp)

	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Fatalf("expected empty preflight body, got %q", string(body))
	}
}

func TestClassifyFetchError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
	}{
		{"context deadline", context.DeadlineExceeded, msgTimedOut},
		{"wrapped deadline", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, msgTimedOut},
		{"net timeout", &net.DNSError{IsTimeout: true}, msgTimedOut},
		{"transport failure", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, msgFetchFailed},
		{"unknown", errors.New("boom"), msgProxyFailure},
	}

	for _, tc := range cases {
		message, _ := classifyFetchError(tc.err)
		if message != tc.message {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.message, message)
		}
	}
}
