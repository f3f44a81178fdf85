package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Federated identity providers supported by the app.
const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User is the one persisted entity. PasswordHash is set only for accounts
// registered locally; GoogleID/FacebookID only for accounts that came in
// through the matching provider. Secret holds the user's published secret,
// empty until they submit one and overwritten on every submission.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	GoogleID     string    `json:"google_id,omitempty"`
	FacebookID   string    `json:"facebook_id,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasSecret reports whether the user should appear in the public listing.
func (u *User) HasSecret() bool { return u.Secret != "" }

// ProviderId returns the stored subject id for the given provider.
func (u *User) ProviderId(provider string) string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	}
	return ""
}

// SetProviderId sets the subject id field for the given provider.
func (u *User) SetProviderId(provider, subjectId string) {
	switch provider {
	case ProviderGoogle:
		u.GoogleID = subjectId
	case ProviderFacebook:
		u.FacebookID = subjectId
	}
}

// UserStore is the persistence contract for user accounts.
type UserStore interface {
	// GetUserById retrieves a user by their ID
	GetUserById(userId string) (*User, error)

	// GetUserByUsername retrieves a local account by its username
	GetUserByUsername(username string) (*User, error)

	// CreateLocalUser creates a username/password account.  Fails with
	// ErrUsernameTaken when the username is already registered.
	CreateLocalUser(username string, passwordHash string) (*User, error)

	// EnsureProviderUser finds the user holding the given provider subject
	// id, creating one (with only that field populated) if none exists.
	// Implementations must make this atomic: two concurrent callbacks for
	// the same subject id resolve to a single record.
	EnsureProviderUser(provider string, subjectId string) (*User, error)

	// SaveUser persists mutations to an existing user (upsert)
	SaveUser(user *User) error

	// ListUsersWithSecrets returns every user whose secret is set.
	// Ordering is unspecified.
	ListUsersWithSecrets() ([]*User, error)
}

// NewUserId generates a cryptographically secure user ID
func NewUserId() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
