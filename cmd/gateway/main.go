// Command gateway boots the unified API gateway: it loads configuration,
// wires infrastructure and modules through Container, starts the Fiber
// server, and shuts down gracefully on SIGINT/SIGTERM. Grounded on the
// teacher's deleted cmd/servier.go entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unigatehq/gateway/pkg/config"
	"github.com/unigatehq/gateway/pkg/logx"
)

func main() {
	cfg := config.Load()

	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container.StartBackgroundServices(ctx)

	app := newServer(cfg, container)

	go func() {
		addr := ":" + cfg.Server.Port
		logx.Infof("gateway: listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			logx.WithError(err).Error("gateway: server stopped")
		}
	}()

	<-ctx.Done()
	logx.Info("gateway: shutdown signal received")
	shutdown(context.Background(), app)
}
