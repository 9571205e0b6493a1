package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/enzococca/SoqotraRockArt/internal/config"
)

// AssetResolver describes the component that turns logical asset paths into
// servable URLs. It allows injecting fake resolvers during tests.
type AssetResolver interface {
	ResolveAssetURL(ctx context.Context, logical string) string
	TargetURL(ctx context.Context) (string, error)
}

// RangeProxy describes the component that forwards range requests to the
// configured COG upstream.
type RangeProxy interface {
	HandleFetch(fiber.Ctx) error
	HandlePreflight(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Config *config.Config
}

const contextKeyRequestID = "_rockart_request_id"

// NewApp builds a Fiber application with request-ID middleware, panic
// recovery and the local static mount. API 路由由调用方单独注册。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if port := opts.Config.Global.ListenPort; port <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", port)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(opts.Config.Global.StaticRoute, static.New(opts.Config.Global.StaticDir))

	return app, nil
}

// RegisterNotFound 挂载兜底 404，必须在所有 API 路由注册之后调用。
func RegisterNotFound(app *fiber.App, logger *logrus.Logger) {
	if app == nil {
		return
	}
	app.Use(func(c fiber.Ctx) error {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"action": "route_lookup",
				"path":   c.Path(),
			}).Warn("route unmatched")
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
		})
	})
}

// requestContextMiddleware 为每个请求生成 request ID，写入 Locals 与响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
