package gwinfra

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/kernel"
)

// PostgresLoginMethodRepository implements LoginMethodRepository.
type PostgresLoginMethodRepository struct {
	db *sqlx.DB
}

func NewPostgresLoginMethodRepository(db *sqlx.DB) LoginMethodRepository {
	return &PostgresLoginMethodRepository{db: db}
}

func (r *PostgresLoginMethodRepository) EnabledMethods(ctx context.Context, appID kernel.AppID) ([]string, error) {
	var methods []string
	query := `SELECT method FROM app_login_methods
	          WHERE app_id = $1 AND enabled = true ORDER BY method`
	err := r.db.SelectContext(ctx, &methods, query, appID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to load enabled login methods", errx.TypeInternal)
	}
	return methods, nil
}

// PostgresScopeRepository implements ScopeRepository.
type PostgresScopeRepository struct {
	db *sqlx.DB
}

func NewPostgresScopeRepository(db *sqlx.DB) ScopeRepository {
	return &PostgresScopeRepository{db: db}
}

func (r *PostgresScopeRepository) GrantedScopes(ctx context.Context, appID kernel.AppID) ([]string, error) {
	var scopes []string
	query := `SELECT scope FROM app_scopes WHERE app_id = $1 ORDER BY scope`
	err := r.db.SelectContext(ctx, &scopes, query, appID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to load granted scopes", errx.TypeInternal)
	}
	return scopes, nil
}

// PostgresOAuthConfigRepository implements OAuthConfigRepository.
type PostgresOAuthConfigRepository struct {
	db *sqlx.DB
}

func NewPostgresOAuthConfigRepository(db *sqlx.DB) OAuthConfigRepository {
	return &PostgresOAuthConfigRepository{db: db}
}

func (r *PostgresOAuthConfigRepository) FindConfig(ctx context.Context, appID kernel.AppID, provider string) (*gwdomain.AppOAuthConfig, error) {
	var cfg struct {
		ID              string `db:"id"`
		AppID           string `db:"app_id"`
		Provider        string `db:"provider"`
		EncryptedConfig []byte `db:"encrypted_config"`
	}
	query := `SELECT id, app_id, provider, encrypted_config FROM app_oauth_configs
	          WHERE app_id = $1 AND provider = $2`
	err := r.db.GetContext(ctx, &cfg, query, appID.String(), provider)
	if err != nil {
		return nil, err // sql.ErrNoRows surfaced to caller; "no config" is a valid outcome, not a failure
	}
	return &gwdomain.AppOAuthConfig{
		ID:              cfg.ID,
		AppID:           kernel.AppID(cfg.AppID),
		Provider:        cfg.Provider,
		EncryptedConfig: cfg.EncryptedConfig,
	}, nil
}
