package provision_test

import (
	"context"
	"testing"

	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/provision"
	"github.com/unigatehq/gateway/pkg/kernel"
)

type fakeAppUserRepo struct {
	bound    map[string]bool
	bindCalls int
}

func (f *fakeAppUserRepo) FindBinding(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (*gwdomain.AppUser, error) {
	if f.bound[appID.String()+":"+userID.String()] {
		return &gwdomain.AppUser{AppID: appID, UserID: userID}, nil
	}
	return nil, nil
}

func (f *fakeAppUserRepo) Bind(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (bool, error) {
	f.bindCalls++
	key := appID.String() + ":" + userID.String()
	if f.bound[key] {
		return false, nil
	}
	if f.bound == nil {
		f.bound = map[string]bool{}
	}
	f.bound[key] = true
	return true, nil
}

type fakeProvisionRepo struct {
	rule           *gwdomain.AutoProvisionRule
	roles          []string
	permissions    []string
	organizationID string
	planID         string
}

func (f *fakeProvisionRepo) FindRule(ctx context.Context, appID kernel.AppID) (*gwdomain.AutoProvisionRule, error) {
	return f.rule, nil
}

func (f *fakeProvisionRepo) ApplyRole(ctx context.Context, appID kernel.AppID, userID kernel.UserID, roleID string) error {
	f.roles = append(f.roles, roleID)
	return nil
}

func (f *fakeProvisionRepo) ApplyPermission(ctx context.Context, appID kernel.AppID, userID kernel.UserID, permissionID string) error {
	f.permissions = append(f.permissions, permissionID)
	return nil
}

func (f *fakeProvisionRepo) ApplyOrganization(ctx context.Context, appID kernel.AppID, userID kernel.UserID, orgID string) error {
	f.organizationID = orgID
	return nil
}

func (f *fakeProvisionRepo) ApplyPlan(ctx context.Context, appID kernel.AppID, userID kernel.UserID, planID string) error {
	f.planID = planID
	return nil
}

func TestProvision_AppliesFullRuleOnFirstBinding(t *testing.T) {
	appUsers := &fakeAppUserRepo{}
	rules := &fakeProvisionRepo{rule: &gwdomain.AutoProvisionRule{
		IsEnabled:      true,
		RoleIDs:        []string{"role-1", "role-2"},
		PermissionIDs:  []string{"perm-1"},
		OrganizationID: "org-1",
		PlanID:         "plan-1",
	}}
	p := provision.New(appUsers, rules)

	p.Provision(context.Background(), kernel.NewAppID("app-1"), kernel.NewUserID("user-1"))

	if len(rules.roles) != 2 || len(rules.permissions) != 1 {
		t.Fatalf("expected roles and permissions applied, got roles=%v perms=%v", rules.roles, rules.permissions)
	}
	if rules.organizationID != "org-1" || rules.planID != "plan-1" {
		t.Fatalf("expected organization/plan applied, got org=%q plan=%q", rules.organizationID, rules.planID)
	}
}

func TestProvision_IsIdempotentOnRepeatCalls(t *testing.T) {
	appUsers := &fakeAppUserRepo{}
	rules := &fakeProvisionRepo{rule: &gwdomain.AutoProvisionRule{IsEnabled: true, RoleIDs: []string{"role-1"}}}
	p := provision.New(appUsers, rules)

	p.Provision(context.Background(), kernel.NewAppID("app-1"), kernel.NewUserID("user-1"))
	p.Provision(context.Background(), kernel.NewAppID("app-1"), kernel.NewUserID("user-1"))

	if len(rules.roles) != 1 {
		t.Fatalf("expected the rule applied exactly once across repeat calls, got %d", len(rules.roles))
	}
}

func TestProvision_DisabledRuleIsANoOp(t *testing.T) {
	appUsers := &fakeAppUserRepo{}
	rules := &fakeProvisionRepo{rule: &gwdomain.AutoProvisionRule{IsEnabled: false, RoleIDs: []string{"role-1"}}}
	p := provision.New(appUsers, rules)

	p.Provision(context.Background(), kernel.NewAppID("app-1"), kernel.NewUserID("user-1"))

	if len(rules.roles) != 0 {
		t.Fatalf("expected no roles applied for a disabled rule, got %v", rules.roles)
	}
}

func TestProvision_NoRuleConfiguredIsANoOp(t *testing.T) {
	appUsers := &fakeAppUserRepo{}
	rules := &fakeProvisionRepo{rule: nil}
	p := provision.New(appUsers, rules)

	p.Provision(context.Background(), kernel.NewAppID("app-1"), kernel.NewUserID("user-1"))

	if len(rules.roles) != 0 {
		t.Fatalf("expected no roles applied without a rule, got %v", rules.roles)
	}
}

func TestProvision_EmptyIDsAreANoOp(t *testing.T) {
	appUsers := &fakeAppUserRepo{}
	rules := &fakeProvisionRepo{}
	p := provision.New(appUsers, rules)

	p.Provision(context.Background(), kernel.NewAppID(""), kernel.NewUserID("user-1"))

	if appUsers.bindCalls != 0 {
		t.Fatalf("expected no binding attempt for an empty app id, got %d calls", appUsers.bindCalls)
	}
}
