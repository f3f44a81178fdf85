package secrets

import (
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

// NewCreateUserFunc creates a CreateUserFunc backed by the given store.
// Passwords are bcrypt-hashed before anything touches the store; the
// plaintext is never persisted.
func NewCreateUserFunc(store UserStore) CreateUserFunc {
	return func(creds *Credentials) (*User, error) {
		passwordHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}

		user, err := store.CreateLocalUser(creds.Username, string(passwordHash))
		if err != nil {
			return nil, err
		}

		log.Printf("Created local user %s (%s)", user.ID, creds.Username)
		return user, nil
	}
}

// NewCredentialsValidator creates a CredentialsValidator backed by the given
// store. The failure is ErrInvalidCredentials in every case - an unknown
// username, a pure-OAuth account with no password, or a hash mismatch - so
// login responses do not reveal whether an account exists.
func NewCredentialsValidator(store UserStore) CredentialsValidator {
	return func(username, password string) (*User, error) {
		user, err := store.GetUserByUsername(username)
		if err != nil {
			if !errors.Is(err, ErrUserNotFound) {
				log.Println("error looking up user: ", err)
			}
			return nil, ErrInvalidCredentials
		}

		if user.PasswordHash == "" {
			return nil, ErrInvalidCredentials
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}

		return user, nil
	}
}
