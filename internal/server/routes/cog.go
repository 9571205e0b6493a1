package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/enzococca/SoqotraRockArt/internal/server"
)

// RegisterCogRoutes 暴露正射影像相关接口：/api/cog-url 返回可直连的 COG 地址，
// /api/cog-proxy 做 Range 透传，OPTIONS 预检由代理自己应答。
func RegisterCogRoutes(app *fiber.App, resolver server.AssetResolver, proxy server.RangeProxy) {
	if app == nil || resolver == nil || proxy == nil {
		return
	}

	app.Get("/api/cog-url", func(c fiber.Ctx) error {
		url, err := resolver.TargetURL(requestContext(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "COG URL not configured",
			})
		}
		return c.JSON(cogURLPayload{URL: url})
	})

	app.Get("/api/cog-proxy", proxy.HandleFetch)
	app.Options("/api/cog-proxy", proxy.HandlePreflight)
}

type cogURLPayload struct {
	URL string `json:"url"`
}
