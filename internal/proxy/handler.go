// Package proxy 实现 COG 资产的 Range 透传代理：浏览器的 Range 请求原样转发到上游，
// 响应体以流式方式回写，代理本身不缓存任何字节。
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/enzococca/SoqotraRockArt/internal/config"
	"github.com/enzococca/SoqotraRockArt/internal/logging"
	"github.com/enzococca/SoqotraRockArt/internal/server"
)

// 上游错误 details 的最大长度，避免把整页 HTML 错误回显给客户端。
const upstreamDetailLimit = 200

// 上游未携带 Content-Type 时使用的默认值，COG 本质上是 TIFF。
const fallbackContentType = "image/tiff"

// 对客户端暴露的错误消息。超时、传输失败、未知异常都以 503 返回，
// 客户端据此把"服务暂时不可用"与"资源不存在"区分开。
const (
	msgNotConfigured = "COG URL not configured"
	msgTimedOut      = "upstream request timed out"
	msgFetchFailed   = "failed to fetch from upstream"
	msgProxyFailure  = "proxy failure"
)

// Handler 将 /api/cog-proxy 的请求转发到配置的 COG 上游。
// client 必须是不带整体超时的流式客户端，否则大文件会在传输中途被截断。
type Handler struct {
	client *http.Client
	logger *logrus.Logger
	cfg    *config.Config
}

// NewHandler 创建代理 Handler，三个依赖都不能为空。
func NewHandler(client *http.Client, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// HandleFetch 处理 GET 请求：无论成功失败都先写入 CORS 头，
// 上游目标缺失时直接 503 且不发起任何出站请求。
func (h *Handler) HandleFetch(c fiber.Ctx) (err error) {
	started := time.Now()
	requestID := server.RequestID(c)
	applyCORS(c)

	defer func() {
		if rec := recover(); rec != nil {
			err = h.respondPanic(c, rec, requestID, started)
		}
	}()

	target := strings.TrimSpace(h.cfg.Cog.TargetURL)
	if target == "" {
		h.logResult(requestID, "", "", 0, started, errors.New("target url missing"))
		return writeError(c, fiber.StatusServiceUnavailable, msgNotConfigured, "")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if reqErr != nil {
		h.logResult(requestID, target, "", 0, started, reqErr)
		return writeError(c, fiber.StatusServiceUnavailable, msgProxyFailure, reqErr.Error())
	}

	// Range 头原样透传，客户端拿到的字节窗口与直连上游完全一致。
	rangeHeader := string(c.Request().Header.Peek(fiber.HeaderRange))
	if rangeHeader != "" {
		req.Header.Set(fiber.HeaderRange, rangeHeader)
	}

	resp, doErr := h.client.Do(req)
	if doErr != nil {
		message, details := classifyFetchError(doErr)
		h.logResult(requestID, target, rangeHeader, 0, started, doErr)
		return writeError(c, fiber.StatusServiceUnavailable, message, details)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		excerpt := readDetailExcerpt(resp.Body)
		_ = resp.Body.Close()
		h.logResult(requestID, target, rangeHeader, resp.StatusCode, started,
			fmt.Errorf("upstream returned %d", resp.StatusCode))
		return writeError(c, fiber.StatusServiceUnavailable,
			fmt.Sprintf("upstream returned %d", resp.StatusCode), excerpt)
	}

	copyUpstreamHeaders(c, resp)
	c.Status(resp.StatusCode)
	h.logResult(requestID, target, rangeHeader, resp.StatusCode, started, nil)

	// 响应体交给 fasthttp 流式发送，发送完毕后由框架负责 Close；
	// 这里不能 defer Close，否则 handler 返回时流会被提前关闭。
	if resp.ContentLength >= 0 {
		return c.SendStream(resp.Body, int(resp.ContentLength))
	}
	return c.SendStream(resp.Body)
}

// HandlePreflight 处理 OPTIONS 预检：只回 CORS 头和 200 空响应体。
func (h *Handler) HandlePreflight(c fiber.Ctx) error {
	applyCORS(c)
	c.Status(fiber.StatusOK)
	return nil
}

func (h *Handler) respondPanic(c fiber.Ctx, recovered interface{}, requestID string, started time.Time) error {
	h.logResult(requestID, "", "", 0, started, fmt.Errorf("panic: %v", recovered))
	return writeError(c, fiber.StatusServiceUnavailable, msgProxyFailure, "")
}

// applyCORS 写入固定的跨域头。瓦片查看器通常托管在其他域名下，
// 且需要读到 Content-Range 才能继续请求后续窗口。
func applyCORS(c fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Range")
	c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Range, Content-Length, Accept-Ranges")
}

// copyUpstreamHeaders 只透传与字节窗口相关的响应头，其余上游头一律丢弃。
func copyUpstreamHeaders(c fiber.Ctx, resp *http.Response) {
	contentType := resp.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fallbackContentType
	}
	c.Set(fiber.HeaderContentType, contentType)

	for _, key := range []string{fiber.HeaderContentRange, fiber.HeaderAcceptRanges} {
		if value := resp.Header.Get(key); value != "" {
			c.Set(key, value)
		}
	}
}

// classifyFetchError 区分超时与其他传输错误，返回对客户端的消息和 details。
// 判定顺序：先 context 超时，再 net.Error 超时，最后归为传输失败。
func classifyFetchError(err error) (string, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimedOut, ""
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return msgTimedOut, ""
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return msgFetchFailed, urlErr.Error()
	}
	return msgProxyFailure, err.Error()
}

func readDetailExcerpt(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, upstreamDetailLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func writeError(c fiber.Ctx, status int, message, details string) error {
	payload := fiber.Map{"error": message}
	if details != "" {
		payload["details"] = details
	}
	return c.Status(status).JSON(payload)
}

func (h *Handler) logResult(requestID, target, rangeHeader string, status int, started time.Time, err error) {
	fields := logging.ProxyFields(target, status, time.Since(started))
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if rangeHeader != "" {
		fields["range"] = rangeHeader
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("cog_proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("cog_proxy_streaming")
}
