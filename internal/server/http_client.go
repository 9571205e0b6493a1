package server

import (
	"net"
	"net/http"
	"time"

	"github.com/enzococca/SoqotraRockArt/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置拨号超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewLinkClient 返回解析临时链接用的 http.Client。
// 这类调用请求体和响应体都很小，直接用整体超时兜底。
func NewLinkClient(cfg *config.Config) *http.Client {
	timeout := 10 * time.Second
	if cfg != nil && cfg.Dropbox.LinkTimeout.DurationValue() > 0 {
		timeout = cfg.Dropbox.LinkTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// NewStreamClient 返回 COG 代理用的 http.Client。
// 超时只约束到响应头返回为止：大文件的流式传输时长取决于客户端读取速度，
// 不能挂在 Client.Timeout 上，否则传输会在中途被强行掐断。
func NewStreamClient(cfg *config.Config) *http.Client {
	headerTimeout := 30 * time.Second
	if cfg != nil && cfg.Cog.UpstreamTimeout.DurationValue() > 0 {
		headerTimeout = cfg.Cog.UpstreamTimeout.DurationValue()
	}

	transport := defaultTransport.Clone()
	transport.ResponseHeaderTimeout = headerTimeout

	return &http.Client{
		Transport: transport,
	}
}
