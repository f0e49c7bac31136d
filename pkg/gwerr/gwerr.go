// Package gwerr defines the gateway's closed, wire-stable error code set.
//
// Every code here is emitted verbatim as the `error_code` field of the
// unified error envelope. Unlike pkg/errx's Registry (which prefixes
// registered codes with a module tag), these codes are constructed
// directly as *errx.Error values so the wire contract never carries a
// prefix the downstream caller would have to strip.
package gwerr

import "github.com/unigatehq/gateway/pkg/errx"

const (
	CodeInvalidCredentials  = "invalid_credentials"
	CodeAppDisabled         = "app_disabled"
	CodeLoginMethodDisabled = "login_method_disabled"
	CodeInsufficientScope   = "insufficient_scope"
	CodeRateLimitExceeded   = "rate_limit_exceeded"
	CodeTokenExpired        = "token_expired"
	CodeInvalidToken        = "invalid_token"
	CodeUserNotBound        = "user_not_bound"
	CodeNotFound            = "not_found"
	CodeValidationError     = "validation_error"
	CodeUpstreamError       = "upstream_error"
	CodeServiceUnavailable  = "service_unavailable"
	CodeInternalError       = "internal_error"
)

// defaultMessages mirrors the original gateway's STATUS_CODE_ERROR_MAP
// default wording, used whenever a caller doesn't supply a more specific
// message.
var defaultMessages = map[string]string{
	CodeInvalidCredentials:  "invalid application credentials",
	CodeAppDisabled:         "application is disabled",
	CodeLoginMethodDisabled: "login method is not enabled for this application",
	CodeInsufficientScope:   "application is not granted this scope",
	CodeRateLimitExceeded:   "rate limit exceeded",
	CodeTokenExpired:        "token has expired",
	CodeInvalidToken:        "invalid token",
	CodeUserNotBound:        "user is not bound to this application",
	CodeNotFound:            "resource not found",
	CodeValidationError:     "request validation failed",
	CodeUpstreamError:       "upstream service error",
	CodeServiceUnavailable:  "service temporarily unavailable",
	CodeInternalError:       "gateway internal error",
}

var httpStatus = map[string]int{
	CodeInvalidCredentials:  401,
	CodeAppDisabled:         403,
	CodeLoginMethodDisabled: 400,
	CodeInsufficientScope:   403,
	CodeRateLimitExceeded:   429,
	CodeTokenExpired:        401,
	CodeInvalidToken:        401,
	CodeUserNotBound:        403,
	CodeNotFound:            404,
	CodeValidationError:     422,
	CodeUpstreamError:       502,
	CodeServiceUnavailable:  503,
	CodeInternalError:       500,
}

var errType = map[string]errx.Type{
	CodeInvalidCredentials:  errx.TypeAuthorization,
	CodeAppDisabled:         errx.TypeAuthorization,
	CodeLoginMethodDisabled: errx.TypeValidation,
	CodeInsufficientScope:   errx.TypeAuthorization,
	CodeRateLimitExceeded:   errx.TypeBusiness,
	CodeTokenExpired:        errx.TypeAuthorization,
	CodeInvalidToken:        errx.TypeAuthorization,
	CodeUserNotBound:        errx.TypeAuthorization,
	CodeNotFound:            errx.TypeNotFound,
	CodeValidationError:     errx.TypeValidation,
	CodeUpstreamError:       errx.TypeExternal,
	CodeServiceUnavailable:  errx.TypeExternal,
	CodeInternalError:       errx.TypeInternal,
}

// New builds the gateway error for code, using its default message.
func New(code string) *errx.Error {
	return newErr(code, defaultMessages[code])
}

// WithMessage builds the gateway error for code, overriding the message —
// used when the caller has more specific context than the generic default
// (e.g. "login method 'sso' is not enabled for this application").
func WithMessage(code, message string) *errx.Error {
	return newErr(code, message)
}

func newErr(code, message string) *errx.Error {
	status, ok := httpStatus[code]
	if !ok {
		status = 500
	}
	t, ok := errType[code]
	if !ok {
		t = errx.TypeInternal
	}
	return &errx.Error{
		Code:       code,
		Message:    message,
		Type:       t,
		HTTPStatus: status,
	}
}

// StatusToCode maps an HTTP status to the default error code used when a
// lower layer (Fiber's own error handling, a panic recovery) produces a
// bare status with no gwerr code attached.
func StatusToCode(status int) string {
	switch status {
	case 400:
		return CodeLoginMethodDisabled
	case 401:
		return CodeInvalidCredentials
	case 403:
		return CodeAppDisabled
	case 404:
		return CodeNotFound
	case 422:
		return CodeValidationError
	case 429:
		return CodeRateLimitExceeded
	case 502:
		return CodeUpstreamError
	case 503:
		return CodeServiceUnavailable
	default:
		return CodeInternalError
	}
}
