package secrets_test

import (
	"errors"
	"testing"

	"github.com/panyam/secrets"
	"github.com/panyam/secrets/stores"
)

func setupTestStore(t *testing.T) *stores.FSUserStore {
	t.Helper()
	return stores.NewFSUserStore(t.TempDir())
}

func TestRegisterThenAuthenticate(t *testing.T) {
	store := setupTestStore(t)
	createUser := secrets.NewCreateUserFunc(store)
	validate := secrets.NewCredentialsValidator(store)

	created, err := createUser(&secrets.Credentials{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("createUser failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated user id")
	}
	if created.PasswordHash == "password123" || created.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"correct credentials", "alice", "password123", nil},
		{"wrong password", "alice", "password124", secrets.ErrInvalidCredentials},
		{"unknown username", "bob", "password123", secrets.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := validate(tt.username, tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if user.ID != created.ID {
					t.Errorf("expected user %s, got %s", created.ID, user.ID)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDuplicateUsername(t *testing.T) {
	store := setupTestStore(t)
	createUser := secrets.NewCreateUserFunc(store)
	validate := secrets.NewCredentialsValidator(store)

	first, err := createUser(&secrets.Credentials{Username: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	if _, err := createUser(&secrets.Credentials{Username: "alice", Password: "different456"}); !errors.Is(err, secrets.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	// The first account must be unaffected
	user, err := validate("alice", "password123")
	if err != nil {
		t.Fatalf("first account no longer authenticates: %v", err)
	}
	if user.ID != first.ID {
		t.Errorf("expected user %s, got %s", first.ID, user.ID)
	}
}

func TestOAuthOnlyAccountHasNoPasswordLogin(t *testing.T) {
	store := setupTestStore(t)
	validate := secrets.NewCredentialsValidator(store)

	user, err := store.EnsureProviderUser(secrets.ProviderGoogle, "goog-1")
	if err != nil {
		t.Fatalf("EnsureProviderUser failed: %v", err)
	}
	if user.Username != "" || user.PasswordHash != "" {
		t.Fatal("provider account should have no local credentials")
	}

	if _, err := validate("", "anything"); !errors.Is(err, secrets.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}
