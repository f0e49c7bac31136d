// Package provision implements the Auto-Provisioner (C11): an idempotent,
// best-effort set of defaults applied the first time a user successfully
// registers through a given application. Grounded on the original
// gateway's _create_app_user_binding.
package provision

import (
	"context"

	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/logx"
)

// Provisioner applies an application's AutoProvisionRule to a newly
// registered user.
type Provisioner struct {
	appUsers gwinfra.AppUserRepository
	rules    gwinfra.AutoProvisionRepository
}

func New(appUsers gwinfra.AppUserRepository, rules gwinfra.AutoProvisionRepository) *Provisioner {
	return &Provisioner{appUsers: appUsers, rules: rules}
}

// Provision binds userID to appID and applies appID's default roles,
// permissions, organization, and subscription plan. Every step is
// best-effort: a failure is logged and the next step still runs, because
// the caller's HTTP response has already been decided by the time this
// runs and must not change based on provisioning outcome. Provision
// never returns an error for that reason — it only logs.
func (p *Provisioner) Provision(ctx context.Context, appID kernel.AppID, userID kernel.UserID) {
	if appID.IsEmpty() || userID.IsEmpty() {
		return
	}

	created, err := p.appUsers.Bind(ctx, appID, userID)
	if err != nil {
		logx.WithError(err).WithField("app_id", appID.String()).Warn("failed to create app-user binding")
		return
	}
	if !created {
		return // binding already existed: provisioning already ran for this app/user pair
	}

	rule, err := p.rules.FindRule(ctx, appID)
	if err != nil {
		logx.WithError(err).WithField("app_id", appID.String()).Warn("failed to load auto-provision rule")
		return
	}
	if rule == nil || !rule.IsEnabled {
		return
	}

	for _, roleID := range rule.RoleIDs {
		if err := p.rules.ApplyRole(ctx, appID, userID, roleID); err != nil {
			logx.WithError(err).Warn("auto-provision: failed to assign role")
		}
	}
	for _, permID := range rule.PermissionIDs {
		if err := p.rules.ApplyPermission(ctx, appID, userID, permID); err != nil {
			logx.WithError(err).Warn("auto-provision: failed to grant permission")
		}
	}
	if rule.OrganizationID != "" {
		if err := p.rules.ApplyOrganization(ctx, appID, userID, rule.OrganizationID); err != nil {
			logx.WithError(err).Warn("auto-provision: failed to attach organization")
		}
	}
	if rule.PlanID != "" {
		if err := p.rules.ApplyPlan(ctx, appID, userID, rule.PlanID); err != nil {
			logx.WithError(err).Warn("auto-provision: failed to assign subscription plan")
		}
	}
}
