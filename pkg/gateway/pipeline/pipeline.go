// Package pipeline implements the Pipeline Orchestrator (C10): the two
// request shapes the gateway serves, each built from the same small set
// of components in a fixed order. Grounded step-for-step on the original
// gateway's _run_auth_pipeline and _run_bearer_pipeline.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/unigatehq/gateway/pkg/asyncx"
	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/downstream"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/gateway/provision"
	"github.com/unigatehq/gateway/pkg/gateway/ratelimit"
	"github.com/unigatehq/gateway/pkg/gateway/resolver"
	"github.com/unigatehq/gateway/pkg/gateway/scopematch"
	"github.com/unigatehq/gateway/pkg/gateway/token"
	"github.com/unigatehq/gateway/pkg/gwerr"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/logx"
)

// tokenBearingFields are the response fields the gateway rewrites to
// carry its own app_id claim, mirroring _inject_app_id_into_tokens.
var tokenBearingFields = []string{"access_token", "refresh_token", "id_token"}

// Orchestrator wires together the resolvers, rate limiter, scope
// matcher, token service, downstream router and auto-provisioner into
// the gateway's two request pipelines.
type Orchestrator struct {
	Apps      *resolver.AppResolver
	Policy    *resolver.PolicyResolver
	Limiter   *ratelimit.Limiter
	Tokens    *token.Service
	Router    *downstream.Router
	Provision *provision.Provisioner
	AppUsers  gwinfra.AppUserRepository
}

// CredentialRequest describes one credential-gated call.
type CredentialRequest struct {
	AppID       kernel.AppID
	AppSecret   string
	LoginMethod string // empty if this endpoint has no method gate
	Endpoint    string // e.g. "auth/login", used for scope matching
	IsRegister  bool   // true for the two register endpoints
	Service     string
	Method      string
	Path        string
	Header      http.Header
	Body        []byte
}

// Result is the outcome of a pipeline run: either a downstream response
// body to relay, or an error already classified into the gateway's
// closed error-code set. On a credential-gated run RateLimit is populated
// once the limiter has admitted or rejected the request; credential,
// login-method and scope failures, and a failed limiter call, leave it nil.
type Result struct {
	StatusCode int
	Body       map[string]interface{}
	RateLimit  *ratelimit.Result
	UserID     kernel.UserID
	Err        error
}

// RunCredential executes the credential-gated pipeline: verify
// credentials, optionally check the login method, check scope, enforce
// the rate limit, forward downstream, rewrite any issued tokens, and
// (for register endpoints) trigger auto-provisioning.
func (o *Orchestrator) RunCredential(ctx context.Context, req CredentialRequest) Result {
	snap, err := o.Apps.Verify(ctx, req.AppID, req.AppSecret)
	if err != nil {
		return Result{Err: err}
	}

	if req.LoginMethod != "" {
		enabled, err := o.Policy.IsMethodEnabled(ctx, req.AppID, req.LoginMethod)
		if err != nil {
			return Result{Err: errx.Wrap(err, "failed to check login method", errx.TypeInternal)}
		}
		if !enabled {
			methods, _ := o.Policy.EnabledMethods(ctx, req.AppID)
			sort.Strings(methods)
			msg := fmt.Sprintf("login method %q is not enabled for this application (enabled: %v)", req.LoginMethod, methods)
			return Result{Err: gwerr.WithMessage(gwerr.CodeLoginMethodDisabled, msg)}
		}
	}

	if scope, required := scopematch.Match(req.Endpoint); required {
		granted, err := o.Policy.HasScope(ctx, req.AppID, scope)
		if err != nil {
			return Result{Err: errx.Wrap(err, "failed to check scope", errx.TypeInternal)}
		}
		if !granted {
			return Result{Err: gwerr.New(gwerr.CodeInsufficientScope)}
		}
	}

	limit := snap.RateLimit
	if limit <= 0 {
		limit = 60
	}
	rl, err := o.Limiter.Check(ctx, req.AppID, limit)
	if err != nil {
		return Result{Err: errx.Wrap(err, "rate limit check failed", errx.TypeInternal)}
	}
	if !rl.Allowed {
		return Result{RateLimit: &rl, Err: gwerr.New(gwerr.CodeRateLimitExceeded)}
	}

	resp, err := o.Router.Forward(ctx, downstream.Request{
		Service: req.Service,
		Method:  req.Method,
		Path:    req.Path,
		Header:  req.Header,
		Body:    req.Body,
	})
	if err != nil {
		return Result{RateLimit: &rl, Err: err}
	}

	body, err := downstream.ParseBody(resp)
	if err != nil {
		return Result{RateLimit: &rl, Err: err}
	}

	if resp.StatusCode < 400 {
		o.rewriteTokens(body, req.AppID)
		if req.IsRegister {
			o.maybeProvision(body, req.AppID)
		}
	}

	return Result{StatusCode: resp.StatusCode, Body: body, RateLimit: &rl}
}

func (o *Orchestrator) rewriteTokens(body map[string]interface{}, appID kernel.AppID) {
	for _, field := range tokenBearingFields {
		raw, ok := body[field]
		if !ok {
			continue
		}
		tok, ok := raw.(string)
		if !ok || tok == "" {
			continue
		}
		rewritten, err := o.Tokens.InjectAppID(tok, appID)
		if err != nil {
			logx.WithError(err).WithField("field", field).Warn("failed to inject app_id into issued token")
			continue
		}
		body[field] = rewritten
	}
}

func (o *Orchestrator) maybeProvision(body map[string]interface{}, appID kernel.AppID) {
	isNew, _ := body["is_new_user"].(bool)
	if !isNew {
		return
	}
	userObj, ok := body["user"].(map[string]interface{})
	if !ok {
		return
	}
	userIDRaw, ok := userObj["id"].(string)
	if !ok || userIDRaw == "" {
		return
	}
	asyncx.Do(func() {
		o.Provision.Provision(context.Background(), appID, kernel.NewUserID(userIDRaw))
	})
}

// BearerRequest describes one bearer-gated call.
type BearerRequest struct {
	Token    string
	Endpoint string
	Service  string
	Method   string
	Path     string
	Header   http.Header
	Body     []byte
}

// RunBearer executes the bearer-gated pipeline: decode the token
// (distinguishing expired from invalid), validate the app_id claim,
// confirm the app-user binding, check scope, enforce the rate limit, and
// forward downstream.
func (o *Orchestrator) RunBearer(ctx context.Context, req BearerRequest) Result {
	claims, err := o.Tokens.Decode(req.Token)
	if err != nil {
		if de, ok := err.(*token.DecodeError); ok && de.Expired {
			return Result{Err: gwerr.New(gwerr.CodeTokenExpired)}
		}
		return Result{Err: gwerr.New(gwerr.CodeInvalidToken)}
	}

	if claims.AppID == "" {
		return Result{Err: gwerr.New(gwerr.CodeInvalidToken)}
	}
	appID := kernel.NewAppID(claims.AppID)
	userID := kernel.NewUserID(claims.Subject)

	snap, err := o.Apps.Load(ctx, appID)
	if err != nil {
		return Result{UserID: userID, Err: gwerr.New(gwerr.CodeInvalidToken)}
	}
	if snap.Status != gwdomain.AppStatusActive {
		return Result{UserID: userID, Err: gwerr.New(gwerr.CodeAppDisabled)}
	}

	if userID.IsEmpty() {
		return Result{Err: gwerr.New(gwerr.CodeUserNotBound)}
	}
	binding, err := o.AppUsers.FindBinding(ctx, appID, userID)
	if err != nil {
		return Result{UserID: userID, Err: errx.Wrap(err, "failed to check app-user binding", errx.TypeInternal)}
	}
	if binding == nil {
		return Result{UserID: userID, Err: gwerr.New(gwerr.CodeUserNotBound)}
	}

	if scope, required := scopematch.Match(req.Endpoint); required {
		granted, err := o.Policy.HasScope(ctx, appID, scope)
		if err != nil {
			return Result{Err: errx.Wrap(err, "failed to check scope", errx.TypeInternal)}
		}
		if !granted {
			return Result{UserID: userID, Err: gwerr.New(gwerr.CodeInsufficientScope)}
		}
	}

	limit := snap.RateLimit
	if limit <= 0 {
		limit = 60
	}
	rl, err := o.Limiter.Check(ctx, appID, limit)
	if err != nil {
		return Result{UserID: userID, Err: errx.Wrap(err, "rate limit check failed", errx.TypeInternal)}
	}
	if !rl.Allowed {
		return Result{UserID: userID, RateLimit: &rl, Err: gwerr.New(gwerr.CodeRateLimitExceeded)}
	}

	resp, err := o.Router.Forward(ctx, downstream.Request{
		Service: req.Service,
		Method:  req.Method,
		Path:    req.Path,
		Header:  req.Header,
		Body:    req.Body,
	})
	if err != nil {
		return Result{UserID: userID, RateLimit: &rl, Err: err}
	}
	body, err := downstream.ParseBody(resp)
	if err != nil {
		return Result{UserID: userID, RateLimit: &rl, Err: err}
	}
	return Result{StatusCode: resp.StatusCode, Body: body, RateLimit: &rl, UserID: userID}
}
