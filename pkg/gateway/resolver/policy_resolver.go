package resolver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/logx"
)

// Cache keys share app_resolver.go's appCacheKeyPrefix ("app:") and append
// a per-question suffix, so a wholesale "app:{app_id}*" scan-and-delete on
// application deletion or credential rotation catches every derived key.
const (
	methodsCacheKeySuffix = ":methods"
	scopesCacheKeySuffix  = ":scopes"
	oauthCacheKeyInfix    = ":oauth:"
)

// PolicyResolver answers the three cache-aside questions the
// credential-gated pipeline needs beyond "is this app valid": which
// login methods it has enabled, which scopes it's been granted, and its
// decrypted per-provider OAuth client config.
type PolicyResolver struct {
	methods gwinfra.LoginMethodRepository
	scopes  gwinfra.ScopeRepository
	oauth   gwinfra.OAuthConfigRepository
	crypto  *OAuthEncryption
	rdb     *redis.Client
	ttl     time.Duration
}

func NewPolicyResolver(
	methods gwinfra.LoginMethodRepository,
	scopes gwinfra.ScopeRepository,
	oauth gwinfra.OAuthConfigRepository,
	crypto *OAuthEncryption,
	rdb *redis.Client,
	ttl time.Duration,
) *PolicyResolver {
	return &PolicyResolver{methods: methods, scopes: scopes, oauth: oauth, crypto: crypto, rdb: rdb, ttl: ttl}
}

// EnabledMethods returns the set of login methods enabled for appID.
func (p *PolicyResolver) EnabledMethods(ctx context.Context, appID kernel.AppID) ([]string, error) {
	key := appCacheKeyPrefix + appID.String() + methodsCacheKeySuffix
	if cached, ok := p.readStringSlice(ctx, key); ok {
		return cached, nil
	}
	methods, err := p.methods.EnabledMethods(ctx, appID)
	if err != nil {
		return nil, err
	}
	p.writeStringSlice(ctx, key, methods)
	return methods, nil
}

// IsMethodEnabled reports whether method is among appID's enabled login
// methods.
func (p *PolicyResolver) IsMethodEnabled(ctx context.Context, appID kernel.AppID, method string) (bool, error) {
	methods, err := p.EnabledMethods(ctx, appID)
	if err != nil {
		return false, err
	}
	for _, m := range methods {
		if m == method {
			return true, nil
		}
	}
	return false, nil
}

// GrantedScopes returns the set of scopes granted to appID.
func (p *PolicyResolver) GrantedScopes(ctx context.Context, appID kernel.AppID) ([]string, error) {
	key := appCacheKeyPrefix + appID.String() + scopesCacheKeySuffix
	if cached, ok := p.readStringSlice(ctx, key); ok {
		return cached, nil
	}
	scopes, err := p.scopes.GrantedScopes(ctx, appID)
	if err != nil {
		return nil, err
	}
	p.writeStringSlice(ctx, key, scopes)
	return scopes, nil
}

// HasScope reports whether appID has been granted scope.
func (p *PolicyResolver) HasScope(ctx context.Context, appID kernel.AppID, scope string) (bool, error) {
	scopes, err := p.GrantedScopes(ctx, appID)
	if err != nil {
		return false, err
	}
	for _, s := range scopes {
		if s == scope {
			return true, nil
		}
	}
	return false, nil
}

// OAuthConfig returns appID's decrypted OAuth client config for provider,
// or nil if none is configured. Cached ciphertext-only: plaintext is
// never written to Redis, only held in memory for the duration of this
// call.
func (p *PolicyResolver) OAuthConfig(ctx context.Context, appID kernel.AppID, provider string) (*gwdomain.OAuthClientConfig, error) {
	key := appCacheKeyPrefix + appID.String() + oauthCacheKeyInfix + provider

	if raw, err := p.rdb.Get(ctx, key).Bytes(); err == nil {
		cfg, decErr := p.crypto.Decrypt(raw)
		if decErr == nil {
			return cfg, nil
		}
		logx.WithField("app_id", appID.String()).Warn("evicting corrupt oauth cache entry")
		_ = p.rdb.Del(ctx, key).Err()
	} else if err != redis.Nil {
		logx.WithError(err).Warn("oauth cache read failed, falling back to database")
	}

	row, err := p.oauth.FindConfig(ctx, appID, provider)
	if err != nil {
		return nil, nil //nolint:nilerr // "no OAuth config for this provider" is a valid, non-error outcome
	}
	if row == nil || len(row.EncryptedConfig) == 0 {
		return nil, nil
	}
	cfg, err := p.crypto.Decrypt(row.EncryptedConfig)
	if err != nil {
		logx.WithError(err).Error("failed to decrypt stored oauth config")
		return nil, nil
	}
	if err := p.rdb.Set(ctx, key, row.EncryptedConfig, p.ttl).Err(); err != nil {
		logx.WithError(err).Warn("failed to populate oauth cache")
	}
	return cfg, nil
}

func (p *PolicyResolver) readStringSlice(ctx context.Context, key string) ([]string, bool) {
	raw, err := p.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, false
	}
	return vals, true
}

func (p *PolicyResolver) writeStringSlice(ctx context.Context, key string, vals []string) {
	if len(vals) == 0 {
		return // don't cache empty results, matching the original's "only cache non-empty" rule
	}
	raw, err := json.Marshal(vals)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, key, raw, p.ttl).Err(); err != nil {
		logx.WithError(err).Warn("failed to populate policy cache")
	}
}
