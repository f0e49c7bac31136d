package downstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/downstream"
	"github.com/unigatehq/gateway/pkg/gwerr"
)

func TestForward_UnknownServiceIsUpstreamError(t *testing.T) {
	r := downstream.New(map[string]string{}, time.Second)
	_, err := r.Forward(context.Background(), downstream.Request{Service: "nope", Method: "GET", Path: "/"})

	gwErr, ok := err.(*errx.Error)
	if !ok || gwErr.Code != gwerr.CodeUpstreamError {
		t.Fatalf("expected upstream_error for an unknown service, got %v", err)
	}
}

func TestForward_TimeoutIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	r := downstream.New(map[string]string{"auth": srv.URL}, 5*time.Millisecond)
	_, err := r.Forward(context.Background(), downstream.Request{Service: "auth", Method: "GET", Path: "/"})

	gwErr, ok := err.(*errx.Error)
	if !ok || gwErr.Code != gwerr.CodeServiceUnavailable {
		t.Fatalf("expected service_unavailable on timeout, got %v", err)
	}
}

func TestForward_SuccessfulRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := downstream.New(map[string]string{"auth": srv.URL}, time.Second)
	resp, err := r.Forward(context.Background(), downstream.Request{Service: "auth", Method: "GET", Path: "/x"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestParseBody_PassesThroughWellFormedGatewayError(t *testing.T) {
	resp := &downstream.Response{StatusCode: 401, Body: []byte(`{"error_code":"invalid_credentials","message":"nope"}`)}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if body["error_code"] != "invalid_credentials" {
		t.Fatalf("expected passthrough, got %+v", body)
	}
}

func TestParseBody_GenericizesFiveHundredDetail(t *testing.T) {
	resp := &downstream.Response{StatusCode: 500, Body: []byte(`{"detail":"stack trace leaked here"}`)}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if body["message"] == "stack trace leaked here" {
		t.Fatal("expected a 500 detail body to be genericized, not leaked verbatim")
	}
}

func TestParseBody_GenericizesFiveHundredMapShapedDetail(t *testing.T) {
	resp := &downstream.Response{StatusCode: 500, Body: []byte(`{"detail":{"message":"internal stack trace leaked here"}}`)}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if body["message"] == "internal stack trace leaked here" {
		t.Fatal("expected a 500 map-shaped detail to be genericized, not leaked verbatim")
	}
}

func TestParseBody_PassesThroughFourHundredFourDetailMessage(t *testing.T) {
	resp := &downstream.Response{StatusCode: 404, Body: []byte(`{"detail":{"message":"user not found"}}`)}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if body["message"] != "user not found" {
		t.Fatalf("expected the nested detail message carried through, got %+v", body)
	}
}

func TestParseBody_NonJSONSuccessIsWrapped(t *testing.T) {
	resp := &downstream.Response{StatusCode: 200, Body: []byte("plain text")}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		t.Fatalf("ParseBody() error = %v", err)
	}
	if body["data"] != "plain text" {
		t.Fatalf("expected non-JSON success body wrapped under data, got %+v", body)
	}
}

func TestParseBody_NonJSONErrorIsUpstreamError(t *testing.T) {
	resp := &downstream.Response{StatusCode: 500, Body: []byte("<html>boom</html>")}
	_, err := downstream.ParseBody(resp)
	gwErr, ok := err.(*errx.Error)
	if !ok || gwErr.Code != gwerr.CodeUpstreamError {
		t.Fatalf("expected upstream_error for a non-JSON error body, got %v", err)
	}
}
