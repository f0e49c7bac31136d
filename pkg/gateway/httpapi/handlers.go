package httpapi

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unigatehq/gateway/pkg/gateway/pipeline"
	"github.com/unigatehq/gateway/pkg/gateway/ratelimit"
	"github.com/unigatehq/gateway/pkg/gateway/token"
	"github.com/unigatehq/gateway/pkg/kernel"
)

const (
	appIDHeader     = "X-App-Id"
	appSecretHeader = "X-App-Secret"
)

var appIDLocalsKey = "gateway_app_id"
var userIDLocalsKey = "gateway_user_id"

func appIDFromCtx(c *fiber.Ctx) kernel.AppID {
	if v, ok := c.Locals(appIDLocalsKey).(string); ok {
		return kernel.NewAppID(v)
	}
	return ""
}

func userIDFromCtx(c *fiber.Ctx) kernel.UserID {
	if v, ok := c.Locals(userIDLocalsKey).(string); ok {
		return kernel.NewUserID(v)
	}
	return ""
}

// Handlers holds the orchestrator and exposes one Fiber handler per
// route in the gateway's external interface.
type Handlers struct {
	Orchestrator *pipeline.Orchestrator
	Tokens       *token.Service
	StartedAt    time.Time
	HealthChecks []HealthCheck
}

// HealthCheck probes one downstream dependency for /health.
type HealthCheck struct {
	Name  string
	Check func() bool
}

func writeRateLimitHeaders(c *fiber.Ctx, rl *ratelimit.Result) {
	if rl == nil {
		return
	}
	c.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
	if rl.RetryAfter > 0 {
		seconds := int(math.Ceil(rl.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Set("Retry-After", strconv.Itoa(seconds))
	}
}

func finish(c *fiber.Ctx, res pipeline.Result) error {
	writeRateLimitHeaders(c, res.RateLimit)
	if !res.UserID.IsEmpty() {
		c.Locals(userIDLocalsKey, res.UserID.String())
	}
	if res.Err != nil {
		return res.Err
	}
	body := res.Body
	if body == nil {
		body = map[string]interface{}{}
	}
	body["request_id"] = RequestIDFromCtx(c)
	return c.Status(res.StatusCode).JSON(body)
}

func credentialsFromHeaders(c *fiber.Ctx) (kernel.AppID, string) {
	return kernel.NewAppID(c.Get(appIDHeader)), c.Get(appSecretHeader)
}

func readBody(c *fiber.Ctx) []byte {
	b := c.Body()
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// RegisterEmail handles POST /api/v1/gateway/auth/register/email.
func (h *Handlers) RegisterEmail(c *fiber.Ctx) error {
	return h.runCredential(c, "email", "auth/register/email", true, "auth", "POST", "/api/v1/auth/register/email")
}

// RegisterPhone handles POST /api/v1/gateway/auth/register/phone.
func (h *Handlers) RegisterPhone(c *fiber.Ctx) error {
	return h.runCredential(c, "phone", "auth/register/phone", true, "auth", "POST", "/api/v1/auth/register/phone")
}

// Login handles POST /api/v1/gateway/auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	return h.runCredential(c, "", "auth/login", false, "auth", "POST", "/api/v1/auth/login")
}

// Refresh handles POST /api/v1/gateway/auth/refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	return h.runCredential(c, "", "auth/refresh", false, "auth", "POST", "/api/v1/auth/refresh")
}

// OAuth handles POST /api/v1/gateway/auth/oauth/:provider.
func (h *Handlers) OAuth(c *fiber.Ctx) error {
	provider := c.Params("provider")
	return h.runCredential(c, "oauth:"+provider, "auth/oauth/"+provider, false, "sso", "POST", "/api/v1/sso/oauth/"+provider)
}

func (h *Handlers) runCredential(c *fiber.Ctx, loginMethod, endpoint string, isRegister bool, service, method, path string) error {
	appID, secret := credentialsFromHeaders(c)
	c.Locals(appIDLocalsKey, appID.String())

	header := c.GetReqHeaders()
	res := h.Orchestrator.RunCredential(c.UserContext(), credentialRequest(appID, secret, loginMethod, endpoint, isRegister, service, method, path, header, readBody(c)))
	return finish(c, res)
}

// GetUser handles GET /api/v1/gateway/users/:id.
func (h *Handlers) GetUser(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.runBearer(c, "users/"+id, "user", "GET", "/api/v1/users/"+id)
}

// GetUserRoles handles GET /api/v1/gateway/users/:id/roles.
func (h *Handlers) GetUserRoles(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.runBearer(c, "users/"+id+"/roles", "permission", "GET", "/api/v1/permissions/users/"+id+"/roles")
}

// CheckPermission handles POST /api/v1/gateway/users/:id/permissions/check.
func (h *Handlers) CheckPermission(c *fiber.Ctx) error {
	id := c.Params("id")
	return h.runBearer(c, "users/"+id+"/permissions/check", "permission", "POST", "/api/v1/permissions/users/"+id+"/permissions/check")
}

// ChangePassword handles POST /api/v1/gateway/auth/change-password.
func (h *Handlers) ChangePassword(c *fiber.Ctx) error {
	return h.runBearer(c, "auth/change-password", "auth", "POST", "/api/v1/auth/change-password")
}

func (h *Handlers) runBearer(c *fiber.Ctx, endpoint, service, method, path string) error {
	bearer := extractBearer(c)
	res := h.Orchestrator.RunBearer(c.UserContext(), pipeline.BearerRequest{
		Token:    bearer,
		Endpoint: endpoint,
		Service:  service,
		Method:   method,
		Path:     path,
		Header:   c.GetReqHeaders(),
		Body:     readBody(c),
	})
	return finish(c, res)
}

func extractBearer(c *fiber.Ctx) string {
	h := c.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func credentialRequest(appID kernel.AppID, secret, loginMethod, endpoint string, isRegister bool, service, method, path string, header map[string][]string, body []byte) pipeline.CredentialRequest {
	h := make(map[string][]string, len(header))
	for k, v := range header {
		h[k] = v
	}
	return pipeline.CredentialRequest{
		AppID:       appID,
		AppSecret:   secret,
		LoginMethod: loginMethod,
		Endpoint:    endpoint,
		IsRegister:  isRegister,
		Service:     service,
		Method:      method,
		Path:        path,
		Header:      h,
		Body:        body,
	}
}

