package gwinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/kernel"
)

// PostgresAutoProvisionRepository implements AutoProvisionRepository.
type PostgresAutoProvisionRepository struct {
	db *sqlx.DB
}

func NewPostgresAutoProvisionRepository(db *sqlx.DB) AutoProvisionRepository {
	return &PostgresAutoProvisionRepository{db: db}
}

func (r *PostgresAutoProvisionRepository) FindRule(ctx context.Context, appID kernel.AppID) (*gwdomain.AutoProvisionRule, error) {
	var p struct {
		AppID          string         `db:"app_id"`
		IsEnabled      bool           `db:"is_enabled"`
		RoleIDs        pq.StringArray `db:"role_ids"`
		PermissionIDs  pq.StringArray `db:"permission_ids"`
		OrganizationID sql.NullString `db:"organization_id"`
		PlanID         sql.NullString `db:"plan_id"`
	}
	query := `SELECT app_id, is_enabled, role_ids, permission_ids, organization_id, plan_id
	          FROM auto_provision_configs WHERE app_id = $1`
	err := r.db.GetContext(ctx, &p, query, appID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to load auto-provision rule", errx.TypeInternal)
	}
	return &gwdomain.AutoProvisionRule{
		AppID:          appID,
		IsEnabled:      p.IsEnabled,
		RoleIDs:        []string(p.RoleIDs),
		PermissionIDs:  []string(p.PermissionIDs),
		OrganizationID: p.OrganizationID.String,
		PlanID:         p.PlanID.String,
	}, nil
}

func (r *PostgresAutoProvisionRepository) ApplyRole(ctx context.Context, appID kernel.AppID, userID kernel.UserID, roleID string) error {
	query := `INSERT INTO user_roles (id, user_id, role_id, assigned_at)
	          VALUES ($1, $2, $3, NOW()) ON CONFLICT (user_id, role_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID.String(), roleID)
	if err != nil {
		return errx.Wrap(err, "failed to assign default role", errx.TypeInternal).WithDetail("role_id", roleID)
	}
	return nil
}

func (r *PostgresAutoProvisionRepository) ApplyPermission(ctx context.Context, appID kernel.AppID, userID kernel.UserID, permissionID string) error {
	query := `INSERT INTO user_permissions (id, user_id, permission_id, granted_at)
	          VALUES ($1, $2, $3, NOW()) ON CONFLICT (user_id, permission_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID.String(), permissionID)
	if err != nil {
		return errx.Wrap(err, "failed to grant default permission", errx.TypeInternal).WithDetail("permission_id", permissionID)
	}
	return nil
}

func (r *PostgresAutoProvisionRepository) ApplyOrganization(ctx context.Context, appID kernel.AppID, userID kernel.UserID, orgID string) error {
	query := `INSERT INTO user_organizations (id, user_id, organization_id, joined_at)
	          VALUES ($1, $2, $3, NOW()) ON CONFLICT (user_id, organization_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID.String(), orgID)
	if err != nil {
		return errx.Wrap(err, "failed to attach default organization", errx.TypeInternal).WithDetail("organization_id", orgID)
	}
	return nil
}

func (r *PostgresAutoProvisionRepository) ApplyPlan(ctx context.Context, appID kernel.AppID, userID kernel.UserID, planID string) error {
	query := `INSERT INTO user_subscription_plans (id, user_id, plan_id, started_at)
	          VALUES ($1, $2, $3, NOW()) ON CONFLICT (user_id) DO UPDATE SET plan_id = EXCLUDED.plan_id`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID.String(), planID)
	if err != nil {
		return errx.Wrap(err, "failed to assign default subscription plan", errx.TypeInternal).WithDetail("plan_id", planID)
	}
	return nil
}

// PostgresAuditRepository implements AuditRepository.
type PostgresAuditRepository struct {
	db *sqlx.DB
}

func NewPostgresAuditRepository(db *sqlx.DB) AuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Insert(ctx context.Context, rec gwdomain.AuditRecord) error {
	query := `
		INSERT INTO audit_records (
			id, request_id, app_id, user_id, method, path, status_code,
			duration_ms, error_code, created_at
		) VALUES (
			:id, :request_id, :app_id, :user_id, :method, :path, :status_code,
			:duration_ms, :error_code, :created_at
		)`
	p := auditPersistence{
		ID:         rec.ID,
		RequestID:  rec.RequestID,
		AppID:      rec.AppID.String(),
		UserID:     sql.NullString{String: rec.UserID.String(), Valid: !rec.UserID.IsEmpty()},
		Method:     rec.Method,
		Path:       rec.Path,
		StatusCode: rec.StatusCode,
		DurationMS: rec.DurationMS,
		ErrorCode:  sql.NullString{String: rec.ErrorCode, Valid: rec.ErrorCode != ""},
		CreatedAt:  rec.CreatedAt,
	}
	_, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return errx.Wrap(err, "failed to write audit record", errx.TypeInternal)
	}
	return nil
}

type auditPersistence struct {
	ID         string         `db:"id"`
	RequestID  string         `db:"request_id"`
	AppID      string         `db:"app_id"`
	UserID     sql.NullString `db:"user_id"`
	Method     string         `db:"method"`
	Path       string         `db:"path"`
	StatusCode int            `db:"status_code"`
	DurationMS int64          `db:"duration_ms"`
	ErrorCode  sql.NullString `db:"error_code"`
	CreatedAt  time.Time      `db:"created_at"`
}
