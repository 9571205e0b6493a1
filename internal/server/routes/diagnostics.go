package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/enzococca/SoqotraRockArt/internal/config"
	"github.com/enzococca/SoqotraRockArt/internal/linkcache"
)

// RegisterDiagnosticsRoutes 暴露 /-/cache 诊断接口，供运维确认链接缓存命中率与当前解析模式。
func RegisterDiagnosticsRoutes(app *fiber.App, cfg *config.Config, stats func() linkcache.Stats) {
	if app == nil || cfg == nil || stats == nil {
		return
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(encodeCacheStatus(cfg, stats()))
	})
}

type cacheStatusPayload struct {
	Entries        int    `json:"entries"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	ResolveMode    string `json:"resolve_mode"`
	LinkTTLSeconds int64  `json:"link_ttl_seconds"`
}

func encodeCacheStatus(cfg *config.Config, s linkcache.Stats) cacheStatusPayload {
	return cacheStatusPayload{
		Entries:        s.Entries,
		Hits:           s.Hits,
		Misses:         s.Misses,
		ResolveMode:    cfg.Dropbox.ResolveMode(),
		LinkTTLSeconds: int64(cfg.Dropbox.LinkCacheTTL.DurationValue() / time.Second),
	}
}
