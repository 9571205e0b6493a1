package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/enzococca/SoqotraRockArt/internal/server"
)

// RegisterAssetRoutes 暴露资产解析接口：/api/asset-url 返回解析后的地址，
// /assets/* 直接 302 跳转，方便 <img> 标签无脑引用。
func RegisterAssetRoutes(app *fiber.App, resolver server.AssetResolver) {
	if app == nil || resolver == nil {
		return
	}

	app.Get("/api/asset-url", func(c fiber.Ctx) error {
		logical := string(c.Request().URI().QueryArgs().Peek("path"))
		url := resolver.ResolveAssetURL(requestContext(c), logical)
		return c.JSON(assetURLPayload{URL: url})
	})

	app.Get("/assets/*", func(c fiber.Ctx) error {
		logical := c.Params("*")
		url := resolver.ResolveAssetURL(requestContext(c), logical)
		if url == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset_path_required"})
		}
		return c.Redirect().Status(fiber.StatusFound).To(url)
	})
}

type assetURLPayload struct {
	URL string `json:"url"`
}

// requestContext 取请求级 context；直接调用 handler 的测试场景下可能为 nil。
func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
