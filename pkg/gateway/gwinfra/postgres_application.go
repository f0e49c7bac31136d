package gwinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gwerr"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/ptrx"
)

// PostgresApplicationRepository is the Postgres implementation of
// ApplicationRepository.
type PostgresApplicationRepository struct {
	db *sqlx.DB
}

func NewPostgresApplicationRepository(db *sqlx.DB) ApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

type applicationPersistence struct {
	ID            string         `db:"id"`
	AppID         string         `db:"app_id"`
	Name          string         `db:"name"`
	AppSecretHash string         `db:"app_secret_hash"`
	Status        string         `db:"status"`
	RateLimit     int            `db:"rate_limit"`
	WebhookURL    sql.NullString `db:"webhook_url"`
	WebhookSecret sql.NullString `db:"webhook_secret"`
}

func (r *PostgresApplicationRepository) FindByAppID(ctx context.Context, appID kernel.AppID) (*gwdomain.Application, error) {
	var p applicationPersistence
	query := `SELECT id, app_id, name, app_secret_hash, status, rate_limit, webhook_url, webhook_secret
	          FROM applications WHERE app_id = $1`
	err := r.db.GetContext(ctx, &p, query, appID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, gwerr.New(gwerr.CodeInvalidCredentials)
		}
		return nil, errx.Wrap(err, "failed to find application by app_id", errx.TypeInternal)
	}
	app := gwdomain.Application{
		ID:            p.ID,
		AppID:         kernel.AppID(p.AppID),
		Name:          p.Name,
		AppSecretHash: p.AppSecretHash,
		Status:        gwdomain.AppStatus(p.Status),
		RateLimit:     p.RateLimit,
		WebhookURL:    nullStringPtr(p.WebhookURL),
		WebhookSecret: nullStringPtr(p.WebhookSecret),
	}
	return &app, nil
}

// nullStringPtr preserves the distinction between "no webhook configured"
// and "configured with an empty value" that sql.NullString alone collapses.
func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return ptrx.String(v.String)
}
