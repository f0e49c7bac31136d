// Package resolver implements the App Resolver (C3) and the
// Method/Scope/OAuth Resolver (C4): cache-aside lookups against the
// configuration store, backed by Redis, grounded on the original
// gateway's cache.py and dependencies.py.
package resolver

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/unigatehq/gateway/pkg/errx"
	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/gwinfra"
	"github.com/unigatehq/gateway/pkg/gwerr"
	"github.com/unigatehq/gateway/pkg/kernel"
	"github.com/unigatehq/gateway/pkg/logx"
)

const appCacheKeyPrefix = "app:"

// AppResolver loads an application by app_id, cache-aside over Redis,
// and verifies a presented secret against its stored hash.
type AppResolver struct {
	repo  gwinfra.ApplicationRepository
	rdb   *redis.Client
	ttl   time.Duration
}

func NewAppResolver(repo gwinfra.ApplicationRepository, rdb *redis.Client, ttl time.Duration) *AppResolver {
	return &AppResolver{repo: repo, rdb: rdb, ttl: ttl}
}

// Load returns the application snapshot for appID, trying Redis first
// and falling back to Postgres on a miss (or on any cache read error,
// which is treated as a miss rather than a failure).
func (r *AppResolver) Load(ctx context.Context, appID kernel.AppID) (*gwdomain.AppSnapshot, error) {
	key := appCacheKeyPrefix + appID.String()

	if raw, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
		var snap gwdomain.AppSnapshot
		if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
			return &snap, nil
		}
		logx.WithField("app_id", appID.String()).Warn("discarding corrupt app cache entry")
	} else if err != redis.Nil {
		logx.WithError(err).Warn("app cache read failed, falling back to database")
	}

	app, err := r.repo.FindByAppID(ctx, appID)
	if err != nil {
		return nil, err
	}
	snap := gwdomain.AppSnapshot{
		ID:            app.ID,
		AppID:         app.AppID,
		Name:          app.Name,
		AppSecretHash: app.AppSecretHash,
		Status:        app.Status,
		RateLimit:     app.RateLimit,
	}
	if raw, err := json.Marshal(snap); err == nil {
		if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
			logx.WithError(err).Warn("failed to populate app cache")
		}
	}
	return &snap, nil
}

// Verify checks appID/secret and returns the application snapshot. The
// secret hash comparison always runs before the status check, so a
// disabled application and a nonexistent one take the same amount of
// work and return the same error for a bad secret — callers must not be
// able to tell "wrong secret" from "app doesn't exist" from timing or
// response shape.
func (r *AppResolver) Verify(ctx context.Context, appID kernel.AppID, secret string) (*gwdomain.AppSnapshot, error) {
	snap, err := r.Load(ctx, appID)
	if err != nil {
		// Constant-shape failure: run a hash comparison against a fixed
		// dummy hash so a missing application costs the same as a bad
		// secret on an existing one.
		_ = bcrypt.CompareHashAndPassword([]byte(unknownAppDummyHash), []byte(secret))
		return nil, gwerr.New(gwerr.CodeInvalidCredentials)
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(snap.AppSecretHash), []byte(secret)); cmpErr != nil {
		return nil, gwerr.New(gwerr.CodeInvalidCredentials)
	}

	if snap.Status != gwdomain.AppStatusActive {
		return nil, gwerr.New(gwerr.CodeAppDisabled)
	}
	return snap, nil
}

// Invalidate evicts the cached snapshot for appID (used when an admin
// tool updates an application out of band).
func (r *AppResolver) Invalidate(ctx context.Context, appID kernel.AppID) error {
	return r.rdb.Del(ctx, appCacheKeyPrefix+appID.String()).Err()
}

// unknownAppDummyHash is a fixed, never-matching bcrypt hash used only to
// burn the same CPU time as a real comparison when no application was
// found, so Verify's cost doesn't leak which branch it took.
const unknownAppDummyHash = "$2a$12$CwTycUXWue0Thq9StjUM0uJ8vklZOE/1XYMemLJUbFiLWdfExrDsu"

// OAuthEncryption derives an AES-256-GCM key from a configured secret and
// encrypts/decrypts OAuth client config blobs before they ever touch
// Postgres or Redis.
type OAuthEncryption struct {
	gcm cipher.AEAD
}

func NewOAuthEncryption(secret string) (*OAuthEncryption, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errx.Wrap(err, "failed to initialize OAuth config cipher", errx.TypeInternal)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errx.Wrap(err, "failed to initialize OAuth config AEAD", errx.TypeInternal)
	}
	return &OAuthEncryption{gcm: gcm}, nil
}

func (e *OAuthEncryption) Encrypt(cfg gwdomain.OAuthClientConfig) ([]byte, error) {
	plain, err := json.Marshal(cfg)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal OAuth config", errx.TypeInternal)
	}
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errx.Wrap(err, "failed to generate nonce", errx.TypeInternal)
	}
	return e.gcm.Seal(nonce, nonce, plain, nil), nil
}

func (e *OAuthEncryption) Decrypt(ciphertext []byte) (*gwdomain.OAuthClientConfig, error) {
	ns := e.gcm.NonceSize()
	if len(ciphertext) < ns {
		return nil, fmt.Errorf("oauth config ciphertext too short")
	}
	nonce, body := ciphertext[:ns], ciphertext[ns:]
	plain, err := e.gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, err
	}
	var cfg gwdomain.OAuthClientConfig
	if err := json.Unmarshal(plain, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
