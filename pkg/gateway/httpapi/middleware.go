// Package httpapi wires the Pipeline Orchestrator to Fiber: request
// correlation, the unified error envelope, and the route table for the
// credential-gated and bearer-gated surfaces. Grounded on the teacher's
// cmd/servier.go bootstrap and the original gateway's
// RequestIdMiddleware / AuditLogMiddleware.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/audit"
	"github.com/unigatehq/gateway/pkg/gwerr"
	"github.com/unigatehq/gateway/pkg/logx"
)

const requestIDLocalsKey = "gateway_request_id"

// RequestID generates a UUID for every request and stores it in locals
// under requestIDLocalsKey — never read from an inbound header, so a
// caller can't spoof the correlation id the gateway later echoes back
// and audits under.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := uuid.NewString()
		c.Locals(requestIDLocalsKey, id)
		c.Set("X-Request-Id", id)
		return c.Next()
	}
}

// RequestIDFromCtx returns the correlation id RequestID stored for this
// request.
func RequestIDFromCtx(c *fiber.Ctx) string {
	if v, ok := c.Locals(requestIDLocalsKey).(string); ok {
		return v
	}
	return ""
}

// AuditLog times every /api/ request and writes a best-effort audit
// record after the handler returns. Must be registered after RequestID
// (Fiber executes middleware in registration order, unlike Starlette's
// reverse order — so here RequestID simply needs to run first, which
// registering it first guarantees).
func AuditLog(sink *audit.Sink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		path := c.Path()
		if len(path) < 5 || path[:5] != "/api/" {
			return err
		}

		status := c.Response().StatusCode()
		errorCode := ""
		if fe, ok := asErrxError(err); ok {
			status = fe.HTTPStatus
			errorCode = fe.Code
		}

		sink.Record(audit.Entry{
			RequestID:  RequestIDFromCtx(c),
			AppID:      appIDFromCtx(c),
			UserID:     userIDFromCtx(c),
			Method:     c.Method(),
			Path:       path,
			StatusCode: status,
			DurationMS: duration.Milliseconds(),
			ErrorCode:  errorCode,
		})
		return err
	}
}

// ErrorHandler converts any error bubbling out of a handler into the
// unified {error_code, message, request_id} envelope, never leaking an
// underlying error's message for an internal failure.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID := RequestIDFromCtx(c)

	if gwErr, ok := asErrxError(err); ok {
		return writeEnvelope(c, gwErr.HTTPStatus, gwErr.Code, gwErr.Message, requestID)
	}

	if fiberErr, ok := err.(*fiber.Error); ok {
		code := gwerr.StatusToCode(fiberErr.Code)
		msg := fiberErr.Message
		if fiberErr.Code >= 500 {
			msg = "gateway internal error"
		}
		return writeEnvelope(c, fiberErr.Code, code, msg, requestID)
	}

	logx.WithError(err).WithField("request_id", requestID).Error("unhandled gateway error")
	return writeEnvelope(c, 500, gwerr.CodeInternalError, "gateway internal error", requestID)
}

func writeEnvelope(c *fiber.Ctx, status int, code, message, requestID string) error {
	c.Set("X-Request-Id", requestID)
	return c.Status(status).JSON(fiber.Map{
		"error_code": code,
		"message":    message,
		"request_id": requestID,
	})
}

func asErrxError(err error) (*errx.Error, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := err.(*errx.Error)
	return e, ok
}
