package secrets

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// UserHandlerFunc is called after a successful local login or signup with
// the resolved user, so the app can establish the session and redirect.
type UserHandlerFunc func(user *User, w http.ResponseWriter, r *http.Request)

// Allows local username/password based authentication
type LocalAuth struct {
	// Validates credentials during login
	ValidateCredentials CredentialsValidator

	// Validates credentials during signup
	ValidateSignup SignupValidator

	// Creates a new user (for signup)
	CreateUser CreateUserFunc

	// Form field names
	UsernameField string
	PasswordField string

	// Handler called after successful authentication
	HandleUser UserHandlerFunc

	// LoginURL is where failed logins are redirected
	LoginURL string

	// SignupURL is where failed signups are redirected
	SignupURL string
}

// HandleLogin processes login requests (POST /login)
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.ValidateCredentials == nil {
		http.Error(w, "Login not configured", http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseCredentialsForm(r)
	if err != nil {
		a.redirectOnError(w, r, a.getLoginURL(), err)
		return
	}

	user, err := a.ValidateCredentials(username, password)
	if err != nil || user == nil {
		if err != nil {
			log.Println("error validating user: ", err)
		}
		// Uniform failure: nothing about the account leaks past this point
		a.redirectOnError(w, r, a.getLoginURL(), ErrInvalidCredentials)
		return
	}

	a.HandleUser(user, w, r)
}

// HandleSignup processes user registration (POST /register)
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.CreateUser == nil {
		http.Error(w, "Signup not configured", http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseCredentialsForm(r)
	if err != nil {
		a.redirectOnError(w, r, a.getSignupURL(), err)
		return
	}

	creds := &Credentials{Username: username, Password: password}
	validator := a.ValidateSignup
	if validator == nil {
		validator = DefaultSignupValidator
	}
	if err := validator(creds); err != nil {
		a.redirectOnError(w, r, a.getSignupURL(), err)
		return
	}

	user, err := a.CreateUser(creds)
	if err != nil {
		log.Println("error creating user: ", err)
		a.redirectOnError(w, r, a.getSignupURL(), err)
		return
	}

	a.HandleUser(user, w, r)
}

func (a *LocalAuth) parseCredentialsForm(r *http.Request) (username, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	} else {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}

	return username, password, nil
}

// redirectOnError sends the user back to the originating form. The error is
// logged server-side only.
func (a *LocalAuth) redirectOnError(w http.ResponseWriter, r *http.Request, target string, err error) {
	log.Println("auth failure, redirecting to ", target, ": ", err)
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) getSignupURL() string {
	if a.SignupURL != "" {
		return a.SignupURL
	}
	return "/register"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}
