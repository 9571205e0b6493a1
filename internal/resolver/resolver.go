// Package resolver turns catalog-internal image references into servable
// URLs: a short-lived signed remote URL when remote mode is healthy, or the
// local static fallback when it is not. Every failure path degrades to a
// usable answer; resolution never propagates an error to page rendering.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/enzococca/SoqotraRockArt/internal/assetpath"
	"github.com/enzococca/SoqotraRockArt/internal/config"
	"github.com/enzococca/SoqotraRockArt/internal/dropbox"
	"github.com/enzococca/SoqotraRockArt/internal/linkcache"
	"github.com/enzococca/SoqotraRockArt/internal/logging"
)

// ErrNotConfigured 表示既没有静态代理目标，也无法通过临时链接兜底。
var ErrNotConfigured = errors.New("cog target url not configured")

// LinkSource 抽象临时链接的获取方，便于测试注入假实现。
type LinkSource interface {
	GetTemporaryLink(ctx context.Context, path string) (string, error)
}

// Resolver 持有进程内唯一的链接缓存，并编排“分类 → 查缓存 → 取链接 → 兜底”。
type Resolver struct {
	cfg    *config.Config
	cache  *linkcache.Cache
	links  LinkSource
	logger *logrus.Logger
}

// New 构造解析器；cache 由调用方创建并在进程生命周期内复用。
func New(cfg *config.Config, cache *linkcache.Cache, links LinkSource, logger *logrus.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		cache:  cache,
		links:  links,
		logger: logger,
	}
}

// ResolveAssetURL 把逻辑路径解析为可访问的 URL。
// 空输入返回空串（调用方按“无图”处理）；任何远端失败都退回本地静态地址，
// 失败结果绝不写入缓存。
func (r *Resolver) ResolveAssetURL(ctx context.Context, logicalPath string) string {
	logical := strings.TrimSpace(logicalPath)
	if logical == "" {
		return ""
	}

	if !r.cfg.Dropbox.Enabled {
		return r.localURL(logical)
	}

	remotePath, class := assetpath.RemotePath(
		logical,
		r.cfg.Dropbox.OriginalFolder,
		r.cfg.Dropbox.ThumbnailFolder,
	)

	if url, ok := r.cache.Lookup(remotePath); ok {
		r.logger.WithFields(logging.ResolveFields(class.String(), remotePath, true)).
			Debug("resolve_cache_hit")
		return url
	}

	// 缓存未命中：持锁之外发起远端调用，超时由链接客户端统一控制。
	link, err := r.links.GetTemporaryLink(ctx, remotePath)
	if err != nil {
		fields := logging.ResolveFields(class.String(), remotePath, false)
		fields["reason"] = string(dropbox.ClassifyFailure(err))
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Warn("resolve_fallback_local")
		return r.localURL(logical)
	}

	r.cache.Store(remotePath, link, r.cfg.Dropbox.LinkCacheTTL.DurationValue())
	r.logger.WithFields(logging.ResolveFields(class.String(), remotePath, false)).
		Info("resolve_link_created")
	return link
}

// TargetURL 返回 COG 代理目标：优先显式配置，其次通过临时链接兜底。
// 兜底链接与资源解析共用同一个缓存实例，TTL 策略因此保持一致。
func (r *Resolver) TargetURL(ctx context.Context) (string, error) {
	if r.cfg.Cog.HasTarget() {
		return strings.TrimSpace(r.cfg.Cog.TargetURL), nil
	}

	remotePath := r.cfg.Cog.RemotePath
	if !r.cfg.Dropbox.Enabled || remotePath == "" {
		return "", ErrNotConfigured
	}

	if url, ok := r.cache.Lookup(remotePath); ok {
		return url, nil
	}

	link, err := r.links.GetTemporaryLink(ctx, remotePath)
	if err != nil {
		fields := logging.ResolveFields(assetpath.ClassOriginal.String(), remotePath, false)
		fields["action"] = "cog_target_fallback"
		fields["reason"] = string(dropbox.ClassifyFailure(err))
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Warn("cog_target_unavailable")
		return "", ErrNotConfigured
	}

	r.cache.Store(remotePath, link, r.cfg.Dropbox.LinkCacheTTL.DurationValue())
	return link, nil
}

// CacheStats 暴露缓存统计给诊断端点；缓存本体不对外泄露。
func (r *Resolver) CacheStats() linkcache.Stats {
	return r.cache.Stats()
}

// localURL 生成本地静态地址：分隔符归一化后挂在静态路由前缀下。
func (r *Resolver) localURL(logical string) string {
	web := strings.TrimLeft(assetpath.Normalize(logical), "/")
	route := strings.TrimRight(r.cfg.Global.StaticRoute, "/")
	return route + "/" + web
}
