package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/unigatehq/gateway/pkg/gateway/gwdomain"
	"github.com/unigatehq/gateway/pkg/gateway/resolver"
	"github.com/unigatehq/gateway/pkg/gwerr"
	"github.com/unigatehq/gateway/pkg/kernel"
)

type fakeAppRepo struct {
	apps  map[string]*gwdomain.Application
	calls int
}

func (f *fakeAppRepo) FindByAppID(ctx context.Context, appID kernel.AppID) (*gwdomain.Application, error) {
	f.calls++
	app, ok := f.apps[appID.String()]
	if !ok {
		return nil, gwerr.New(gwerr.CodeInvalidCredentials)
	}
	return app, nil
}

func newTestResolver(t *testing.T, repo *fakeAppRepo) *resolver.AppResolver {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return resolver.NewAppResolver(repo, rdb, time.Minute)
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash test secret: %v", err)
	}
	return string(h)
}

func TestVerify_CorrectSecretSucceeds(t *testing.T) {
	repo := &fakeAppRepo{apps: map[string]*gwdomain.Application{
		"app-1": {AppID: "app-1", AppSecretHash: mustHash(t, "s3cret"), Status: gwdomain.AppStatusActive, RateLimit: 60},
	}}
	r := newTestResolver(t, repo)

	snap, err := r.Verify(context.Background(), kernel.NewAppID("app-1"), "s3cret")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if snap.AppID != "app-1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestVerify_WrongSecretAndUnknownAppReturnIdenticalError(t *testing.T) {
	repo := &fakeAppRepo{apps: map[string]*gwdomain.Application{
		"app-1": {AppID: "app-1", AppSecretHash: mustHash(t, "s3cret"), Status: gwdomain.AppStatusActive, RateLimit: 60},
	}}
	r := newTestResolver(t, repo)

	_, wrongSecretErr := r.Verify(context.Background(), kernel.NewAppID("app-1"), "bad-secret")
	_, noAppErr := r.Verify(context.Background(), kernel.NewAppID("no-such-app"), "whatever")

	if wrongSecretErr == nil || noAppErr == nil {
		t.Fatal("expected both verifications to fail")
	}
	if wrongSecretErr.Error() != noAppErr.Error() {
		t.Fatalf("expected identical error shape, got %q vs %q", wrongSecretErr, noAppErr)
	}
}

func TestVerify_DisabledAppRejected(t *testing.T) {
	repo := &fakeAppRepo{apps: map[string]*gwdomain.Application{
		"app-1": {AppID: "app-1", AppSecretHash: mustHash(t, "s3cret"), Status: gwdomain.AppStatusDisabled, RateLimit: 60},
	}}
	r := newTestResolver(t, repo)

	_, err := r.Verify(context.Background(), kernel.NewAppID("app-1"), "s3cret")
	if err == nil {
		t.Fatal("expected disabled application to be rejected")
	}
}

func TestLoad_CachesAfterFirstLookup(t *testing.T) {
	repo := &fakeAppRepo{apps: map[string]*gwdomain.Application{
		"app-1": {AppID: "app-1", AppSecretHash: mustHash(t, "s3cret"), Status: gwdomain.AppStatusActive, RateLimit: 60},
	}}
	r := newTestResolver(t, repo)

	if _, err := r.Load(context.Background(), kernel.NewAppID("app-1")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := r.Load(context.Background(), kernel.NewAppID("app-1")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected exactly one database lookup, got %d", repo.calls)
	}
}

func TestOAuthEncryption_RoundTrip(t *testing.T) {
	enc, err := resolver.NewOAuthEncryption("test-key")
	if err != nil {
		t.Fatalf("NewOAuthEncryption() error = %v", err)
	}
	cfg := gwdomain.OAuthClientConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://example.com/cb"}

	ciphertext, err := enc.Encrypt(cfg)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if string(ciphertext) == cfg.ClientSecret {
		t.Fatal("ciphertext must not contain the plaintext secret verbatim")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if *decrypted != cfg {
		t.Fatalf("expected round-trip to recover the original config, got %+v", decrypted)
	}
}

func TestOAuthEncryption_WrongKeyFailsToDecrypt(t *testing.T) {
	enc1, _ := resolver.NewOAuthEncryption("key-one")
	enc2, _ := resolver.NewOAuthEncryption("key-two")

	ciphertext, err := enc1.Encrypt(gwdomain.OAuthClientConfig{ClientID: "id", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Fatal("expected decryption under a different key to fail")
	}
}
