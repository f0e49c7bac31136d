// Package gwinfra implements the gateway's Postgres-backed repositories —
// the Configuration Store access layer the App/Method/Scope/OAuth
// resolvers and the auto-provisioner read and write against.
package gwinfra

import (
	"context"

	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/kernel"
)

// ApplicationRepository reads the application registry.
type ApplicationRepository interface {
	FindByAppID(ctx context.Context, appID kernel.AppID) (*gwdomain.Application, error)
}

// LoginMethodRepository reads which login methods are enabled per app.
type LoginMethodRepository interface {
	EnabledMethods(ctx context.Context, appID kernel.AppID) ([]string, error)
}

// ScopeRepository reads which scopes are granted per app.
type ScopeRepository interface {
	GrantedScopes(ctx context.Context, appID kernel.AppID) ([]string, error)
}

// OAuthConfigRepository reads an application's per-provider OAuth config.
type OAuthConfigRepository interface {
	FindConfig(ctx context.Context, appID kernel.AppID, provider string) (*gwdomain.AppOAuthConfig, error)
}

// AppUserRepository manages the app-to-user binding the gateway owns.
type AppUserRepository interface {
	FindBinding(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (*gwdomain.AppUser, error)
	Bind(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (created bool, err error)
}

// AutoProvisionRepository reads the per-app defaulting rule.
type AutoProvisionRepository interface {
	FindRule(ctx context.Context, appID kernel.AppID) (*gwdomain.AutoProvisionRule, error)
	ApplyRole(ctx context.Context, appID kernel.AppID, userID kernel.UserID, roleID string) error
	ApplyPermission(ctx context.Context, appID kernel.AppID, userID kernel.UserID, permissionID string) error
	ApplyOrganization(ctx context.Context, appID kernel.AppID, userID kernel.UserID, orgID string) error
	ApplyPlan(ctx context.Context, appID kernel.AppID, userID kernel.UserID, planID string) error
}

// AuditRepository persists audit rows.
type AuditRepository interface {
	Insert(ctx context.Context, rec gwdomain.AuditRecord) error
}
