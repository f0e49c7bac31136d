// Package gwcontainer is the gateway's bounded-context container: it
// wires the Postgres/Redis-backed repositories into the resolvers, rate
// limiter, token service, downstream router and orchestrator. Grounded
// on the teacher's pkg/iam/iamcontainer.Container wiring style.
package gwcontainer

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/unigatehq/gateway/pkg/config"
	"github.com/unigatehq/gateway/pkg/gateway/audit"
	"github.com/unigatehq/gateway/pkg/gateway/downstream"
	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/gateway/httpapi"
	"github.com/unigatehq/gateway/pkg/gateway/pipeline"
	"github.com/unigatehq/gateway/pkg/gateway/provision"
	"github.com/unigatehq/gateway/pkg/gateway/ratelimit"
	"github.com/unigatehq/gateway/pkg/gateway/resolver"
	"github.com/unigatehq/gateway/pkg/gateway/token"
	"github.com/unigatehq/gateway/pkg/logx"
)

// Deps are the infrastructure handles the root composition root has
// already established.
type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config
}

// Container composes every gateway component behind the Handlers the
// HTTP layer registers routes against.
type Container struct {
	Handlers  *httpapi.Handlers
	AuditSink *audit.Sink
}

func New(deps Deps) *Container {
	logx.Info("gateway: wiring components")

	appRepo := gwinfra.NewPostgresApplicationRepository(deps.DB)
	methodRepo := gwinfra.NewPostgresLoginMethodRepository(deps.DB)
	scopeRepo := gwinfra.NewPostgresScopeRepository(deps.DB)
	oauthRepo := gwinfra.NewPostgresOAuthConfigRepository(deps.DB)
	appUserRepo := gwinfra.NewPostgresAppUserRepository(deps.DB)
	provisionRepo := gwinfra.NewPostgresAutoProvisionRepository(deps.DB)
	auditRepo := gwinfra.NewPostgresAuditRepository(deps.DB)

	oauthCrypto, err := resolver.NewOAuthEncryption(deps.Cfg.Gateway.OAuthEncryptionKey)
	if err != nil {
		logx.Fatalf("gateway: failed to initialize OAuth config encryption: %v", err)
	}

	apps := resolver.NewAppResolver(appRepo, deps.Redis, deps.Cfg.Gateway.AppCacheTTL)
	policy := resolver.NewPolicyResolver(methodRepo, scopeRepo, oauthRepo, oauthCrypto, deps.Redis, deps.Cfg.Gateway.AppCacheTTL)
	limiter := ratelimit.New(deps.Redis, deps.Cfg.Gateway.RateLimitWindow)
	tokens := token.NewService(deps.Cfg.Gateway.JWTSecret, deps.Cfg.Gateway.JWTIssuer, deps.Cfg.Gateway.AccessTokenTTL)
	router := downstream.New(deps.Cfg.Gateway.DownstreamServices, deps.Cfg.Gateway.DownstreamTimeout)
	provisioner := provision.New(appUserRepo, provisionRepo)
	auditSink := audit.NewSink(auditRepo, deps.Cfg.Gateway.AuditQueueSize)

	orchestrator := &pipeline.Orchestrator{
		Apps:      apps,
		Policy:    policy,
		Limiter:   limiter,
		Tokens:    tokens,
		Router:    router,
		Provision: provisioner,
		AppUsers:  appUserRepo,
	}

	handlers := &httpapi.Handlers{
		Orchestrator: orchestrator,
		Tokens:       tokens,
		StartedAt:    time.Now(),
		HealthChecks: buildHealthChecks(deps),
	}

	logx.Info("gateway: components wired")

	return &Container{Handlers: handlers, AuditSink: auditSink}
}

func buildHealthChecks(deps Deps) []httpapi.HealthCheck {
	return []httpapi.HealthCheck{
		{
			Name: "database",
			Check: func() bool {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return deps.DB.PingContext(ctx) == nil
			},
		},
		{
			Name: "redis",
			Check: func() bool {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return deps.Redis.Ping(ctx).Err() == nil
			},
		},
	}
}

// StartBackgroundServices starts the audit sink's drain worker.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	go c.AuditSink.Run(ctx)
}
