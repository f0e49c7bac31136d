package gwinfra

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/kernel"
)

// PostgresAppUserRepository implements AppUserRepository.
type PostgresAppUserRepository struct {
	db *sqlx.DB
}

func NewPostgresAppUserRepository(db *sqlx.DB) AppUserRepository {
	return &PostgresAppUserRepository{db: db}
}

func (r *PostgresAppUserRepository) FindBinding(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (*gwdomain.AppUser, error) {
	var p struct {
		ID        string `db:"id"`
		AppID     string `db:"app_id"`
		UserID    string `db:"user_id"`
	}
	query := `SELECT id, app_id, user_id FROM app_users WHERE app_id = $1 AND user_id = $2`
	err := r.db.GetContext(ctx, &p, query, appID.String(), userID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to look up app-user binding", errx.TypeInternal)
	}
	return &gwdomain.AppUser{ID: p.ID, AppID: kernel.AppID(p.AppID), UserID: kernel.UserID(p.UserID)}, nil
}

// Bind idempotently creates the app-to-user binding. It reports whether
// this call created the row (false if it already existed), matching the
// auto-provisioner's "first successful registration" semantics.
func (r *PostgresAppUserRepository) Bind(ctx context.Context, appID kernel.AppID, userID kernel.UserID) (bool, error) {
	query := `INSERT INTO app_users (id, app_id, user_id, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (app_id, user_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, uuid.NewString(), appID.String(), userID.String())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return false, nil
		}
		return false, errx.Wrap(err, "failed to create app-user binding", errx.TypeInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to read rows affected on bind", errx.TypeInternal)
	}
	return rows > 0, nil
}
