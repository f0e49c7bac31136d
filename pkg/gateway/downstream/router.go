// Package downstream implements the Service Router (C8): a thin HTTP
// client fanning requests out to the identity microservices, classifying
// failures into the gateway's three transport outcomes. Grounded on the
// original gateway's router.py.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/unigatehq/gateway/pkg/gwerr"
)

// Request is one downstream call to issue.
type Request struct {
	Service string
	Method  string
	Path    string
	Header  http.Header
	Body    []byte
}

// Response is a successful round trip's raw shape, left for the caller
// to interpret (it may be a domain success or a domain error body).
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Router forwards requests to the services named in ServiceURLs with a
// uniform timeout, classifying transport failures distinctly from
// successful-but-erroring responses.
type Router struct {
	client      *http.Client
	serviceURLs map[string]string
}

func New(serviceURLs map[string]string, timeout time.Duration) *Router {
	return &Router{
		client:      &http.Client{Timeout: timeout},
		serviceURLs: serviceURLs,
	}
}

// Forward issues req against its target service and returns either a raw
// Response or a *errx.Error already classified per the gateway's
// error-handling rules (unknown service or unbuildable request → 502;
// timeouts, connection-level *net.OpError failures and an unreadable
// response body → 503; any other transport error → 502). The body is
// returned as received; ParseBody interprets it.
func (r *Router) Forward(ctx context.Context, req Request) (*Response, error) {
	base, ok := r.serviceURLs[req.Service]
	if !ok {
		return nil, gwerr.WithMessage(gwerr.CodeUpstreamError, fmt.Sprintf("unknown downstream service %q", req.Service))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, base+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, gwerr.WithMessage(gwerr.CodeUpstreamError, "failed to build downstream request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerr.WithMessage(gwerr.CodeServiceUnavailable, "failed to read downstream response body")
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gwerr.WithMessage(gwerr.CodeServiceUnavailable, "downstream service timed out")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return gwerr.WithMessage(gwerr.CodeServiceUnavailable, "downstream service unreachable")
	}
	return gwerr.WithMessage(gwerr.CodeUpstreamError, "downstream request failed")
}

// downstreamErrorBody is the FastAPI-style shape a failed downstream
// response may come back as.
type downstreamErrorBody struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Detail    interface{} `json:"detail"`
}

// ParseBody interprets a successful round trip's body per the original
// router's rules: well-formed {error_code,message} passes through,
// FastAPI-style {detail:...} is genericized on 5xx, non-JSON success
// bodies are wrapped, non-JSON error bodies become a generic upstream
// error.
func ParseBody(resp *Response) (map[string]interface{}, error) {
	isError := resp.StatusCode >= 400

	var generic map[string]interface{}
	if err := json.Unmarshal(resp.Body, &generic); err != nil {
		if isError {
			return nil, gwerr.New(gwerr.CodeUpstreamError)
		}
		return map[string]interface{}{"data": string(resp.Body)}, nil
	}

	if !isError {
		return generic, nil
	}

	if _, hasCode := generic["error_code"]; hasCode {
		if _, hasMsg := generic["message"]; hasMsg {
			return generic, nil // well-formed gateway-shaped error, passthrough
		}
	}

	if detail, ok := generic["detail"]; ok {
		return genericizeDetail(resp.StatusCode, detail), nil
	}

	return nil, gwerr.New(gwerr.CodeUpstreamError)
}

func genericizeDetail(status int, detail interface{}) map[string]interface{} {
	code := gwerr.StatusToCode(status)
	message := fmt.Sprintf("%v", detail)
	if status >= 500 {
		// Never leak a downstream stack trace or internal detail string.
		message = "upstream service error"
	}
	if status < 500 {
		if m, ok := detail.(map[string]interface{}); ok {
			if msg, ok := m["message"].(string); ok {
				message = msg
			}
		}
	}
	return map[string]interface{}{"error_code": code, "message": message}
}
