// Package gwdomain holds the gateway's data model: the application
// registry and the handful of rows the gateway itself owns (the
// app-to-user binding and the auto-provisioning rule it applies on first
// registration).
package gwdomain

import (
	"time"

	"github.com/unigatehq/gateway/pkg/kernel"
)

// AppStatus is the lifecycle state of a registered application.
type AppStatus string

const (
	AppStatusActive   AppStatus = "active"
	AppStatusDisabled AppStatus = "disabled"
)

// Application is a registered consumer of the credential-gated API.
type Application struct {
	ID             string
	AppID          kernel.AppID
	Name           string
	AppSecretHash  string
	Status         AppStatus
	RateLimit      int
	WebhookURL     *string
	WebhookSecret  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a Application) IsActive() bool { return a.Status == AppStatusActive }

// AppSnapshot is the trimmed, cache-friendly projection of an Application
// used by the App Resolver — only the fields the credential-gated
// pipeline actually needs on every request.
type AppSnapshot struct {
	ID            string       `json:"id"`
	AppID         kernel.AppID `json:"app_id"`
	Name          string       `json:"name"`
	AppSecretHash string       `json:"app_secret_hash"`
	Status        AppStatus    `json:"status"`
	RateLimit     int          `json:"rate_limit"`
}

// AppLoginMethod records one login method enabled for an application
// (e.g. "email", "phone", "sso", "oauth:google").
type AppLoginMethod struct {
	ID     string
	AppID  kernel.AppID
	Method string
	Enabled bool
}

// AppScope records one scope granted to an application.
type AppScope struct {
	ID    string
	AppID kernel.AppID
	Scope string
}

// AppOAuthConfig holds an application's per-provider OAuth client
// credentials, stored encrypted at rest. Plaintext is never persisted or
// cached — only EncryptedConfig (ciphertext) crosses any boundary other
// than the one decrypt call site in the resolver.
type AppOAuthConfig struct {
	ID              string
	AppID           kernel.AppID
	Provider        string
	EncryptedConfig []byte
}

// OAuthClientConfig is the decrypted shape of an AppOAuthConfig's payload.
type OAuthClientConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// AppUser is the binding between a registered application and an end
// user identity owned by the auth/user services — the only user-related
// row the gateway itself persists.
type AppUser struct {
	ID        string
	AppID     kernel.AppID
	UserID    kernel.UserID
	CreatedAt time.Time
}

// AppOrganization is the default organization an auto-provisioned user is
// attached to for a given application, if the application has one
// configured.
type AppOrganization struct {
	AppID          kernel.AppID
	OrganizationID string
}

// AppSubscriptionPlan is the default subscription plan granted to an
// auto-provisioned user — at most one per application.
type AppSubscriptionPlan struct {
	AppID   kernel.AppID
	PlanID  string
}

// AutoProvisionRule is the set of defaults applied, best-effort, the
// first time a user successfully registers through a given application.
type AutoProvisionRule struct {
	AppID          kernel.AppID
	IsEnabled      bool
	RoleIDs        []string
	PermissionIDs  []string
	OrganizationID string
	PlanID         string
}

// AuditRecord is one row written to the audit trail for a request that
// reached `/api/`.
type AuditRecord struct {
	ID           string
	RequestID    string
	AppID        kernel.AppID
	UserID       kernel.UserID
	Method       string
	Path         string
	StatusCode   int
	DurationMS   int64
	ErrorCode    string
	CreatedAt    time.Time
}
