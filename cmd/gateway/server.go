// cmd/gateway/server.go
//
// Fiber app assembly: middleware order, error handling, and the
// listen/shutdown lifecycle. Grounded on the teacher's deleted
// cmd/servier.go.
package main

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/unigatehq/gateway/pkg/config"
	"github.com/unigatehq/gateway/pkg/gateway/httpapi"
	"github.com/unigatehq/gateway/pkg/logx"
)

func newServer(cfg *config.Config, c *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "unigate-gateway",
		ErrorHandler:          httpapi.ErrorHandler,
		DisableStartupMessage: !cfg.Server.Debug,
	})

	// RequestID must run first: everything downstream (logging, audit,
	// error envelopes) reads the correlation id it stores.
	app.Use(httpapi.RequestID())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-App-Id, X-App-Secret",
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} (${latency})\n",
	}))

	c.Gateway.Handlers.RegisterRoutes(app, httpapi.AuditLog(c.Gateway.AuditSink))

	return app
}

func shutdown(ctx context.Context, app *fiber.App) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logx.Errorf("gateway: error during shutdown: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logx.Warn("gateway: shutdown timed out")
	}
}
