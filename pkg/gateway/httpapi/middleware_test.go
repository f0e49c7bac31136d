package httpapi_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/unigatehq/gateway/pkg/gateway/httpapi"
	"github.com/unigatehq/gateway/pkg/gwerr"
)

func newTestApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpapi.ErrorHandler})
	app.Use(httpapi.RequestID())
	return app
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestRequestID_SetsHeaderAndIsNotSpoofable(t *testing.T) {
	app := newTestApp()
	app.Get("/x", func(c *fiber.Ctx) error {
		return c.SendString(httpapi.RequestIDFromCtx(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	header := resp.Header.Get("X-Request-Id")
	if header == "" || header == "client-supplied-id" {
		t.Fatalf("expected a server-generated request id, got %q", header)
	}
}

func TestErrorHandler_WritesGwerrEnvelope(t *testing.T) {
	app := newTestApp()
	app.Get("/x", func(c *fiber.Ctx) error {
		return gwerr.New(gwerr.CodeInsufficientScope)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
	body := decodeEnvelope(t, resp)
	if body["error_code"] != gwerr.CodeInsufficientScope {
		t.Fatalf("error_code = %v, want %v", body["error_code"], gwerr.CodeInsufficientScope)
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatal("expected a non-empty request_id in the envelope")
	}
}

func TestErrorHandler_GenericizesUnclassifiedError(t *testing.T) {
	app := newTestApp()
	app.Get("/x", func(c *fiber.Ctx) error {
		return errors.New("db connection string leaked: postgres://user:pw@host/db")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeEnvelope(t, resp)
	if body["error_code"] != gwerr.CodeInternalError {
		t.Fatalf("error_code = %v, want %v", body["error_code"], gwerr.CodeInternalError)
	}
	if msg, _ := body["message"].(string); msg != "gateway internal error" {
		t.Fatalf("expected the raw error message to never reach the wire, got %q", msg)
	}
}

func TestErrorHandler_PassesThroughFiberClientError(t *testing.T) {
	app := newTestApp()
	app.Get("/x", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "missing required field")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	body := decodeEnvelope(t, resp)
	if body["message"] != "missing required field" {
		t.Fatalf("expected a 4xx fiber error message to pass through, got %+v", body)
	}
}
