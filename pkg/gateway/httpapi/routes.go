package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	gatewayVersion = "1.0.0"
)

var supportedAPIVersions = []string{"v1"}

var availableLoginMethods = []string{"email", "phone", "wechat", "alipay", "google", "apple"}

// RegisterRoutes wires every route in the gateway's external interface.
func (h *Handlers) RegisterRoutes(app *fiber.App, mw ...fiber.Handler) {
	group := app.Group("/api/v1/gateway", mw...)

	group.Post("/auth/register/email", h.RegisterEmail)
	group.Post("/auth/register/phone", h.RegisterPhone)
	group.Post("/auth/login", h.Login)
	group.Post("/auth/refresh", h.Refresh)
	group.Post("/auth/oauth/:provider", h.OAuth)

	group.Get("/users/:id", h.GetUser)
	group.Get("/users/:id/roles", h.GetUserRoles)
	group.Post("/users/:id/permissions/check", h.CheckPermission)
	group.Post("/auth/change-password", h.ChangePassword)

	app.Get("/", h.Root)
	app.Get("/health", h.Health)
	app.Get("/api/v1/gateway/info", h.Info)
}

// Root handles GET /.
func (h *Handlers) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "unigate-gateway",
		"version": gatewayVersion,
		"status":  "ok",
	})
}

// Info handles GET /api/v1/gateway/info.
func (h *Handlers) Info(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":                 gatewayVersion,
		"supported_api_versions":  supportedAPIVersions,
		"available_login_methods": availableLoginMethods,
	})
}

// Health handles GET /health. It merges local liveness with downstream
// component checks; the gateway reports itself unhealthy (503) only when
// every configured component is down — a single degraded dependency
// still returns 200 with status "degraded".
func (h *Handlers) Health(c *fiber.Ctx) error {
	components := fiber.Map{}
	healthyCount := 0

	for _, check := range h.HealthChecks {
		ok := check.Check()
		status := "down"
		if ok {
			status = "up"
			healthyCount++
		}
		components[check.Name] = status
	}

	status := "healthy"
	statusCode := fiber.StatusOK
	switch {
	case len(h.HealthChecks) > 0 && healthyCount == 0:
		status = "unhealthy"
		statusCode = fiber.StatusServiceUnavailable
	case healthyCount < len(h.HealthChecks):
		status = "degraded"
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":     status,
		"uptime_sec": int(time.Since(h.StartedAt).Seconds()),
		"components": components,
	})
}
