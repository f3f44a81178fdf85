package secrets

import (
	"fmt"
	"regexp"
)

// Credentials represents user credentials for signup or login
type Credentials struct {
	Username string
	Password string
}

// SignupValidator validates credentials during signup
type SignupValidator func(creds *Credentials) error

// CredentialsValidator validates credentials during login and returns the user
type CredentialsValidator func(username, password string) (*User, error)

// CreateUserFunc creates a new local user with the given credentials
type CreateUserFunc func(creds *Credentials) (*User, error)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// DefaultSignupValidator provides sensible default validation for signup
var DefaultSignupValidator SignupValidator = func(creds *Credentials) error {
	if len(creds.Username) < 3 || len(creds.Username) > 64 {
		return fmt.Errorf("username must be 3-64 characters")
	}
	if !usernameRegex.MatchString(creds.Username) {
		return fmt.Errorf("username can only contain letters, numbers, and @._- characters")
	}
	if len(creds.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}
