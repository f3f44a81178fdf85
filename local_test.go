package secrets_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/panyam/secrets"
)

func newTestLocalAuth(store secrets.UserStore, handled **secrets.User) *secrets.LocalAuth {
	return &secrets.LocalAuth{
		ValidateCredentials: secrets.NewCredentialsValidator(store),
		CreateUser:          secrets.NewCreateUserFunc(store),
		HandleUser: func(user *secrets.User, w http.ResponseWriter, r *http.Request) {
			*handled = user
			http.Redirect(w, r, "/secrets", http.StatusFound)
		},
	}
}

func postForm(t *testing.T, handler http.HandlerFunc, path string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestSignupFlow(t *testing.T) {
	store := setupTestStore(t)
	var handled *secrets.User
	localAuth := newTestLocalAuth(store, &handled)

	tests := []struct {
		name         string
		form         map[string]string
		wantLocation string
		wantHandled  bool
	}{
		{
			name:         "successful signup",
			form:         map[string]string{"username": "testuser", "password": "password123"},
			wantLocation: "/secrets",
			wantHandled:  true,
		},
		{
			name:         "duplicate username",
			form:         map[string]string{"username": "testuser", "password": "password456"},
			wantLocation: "/register",
		},
		{
			name:         "weak password",
			form:         map[string]string{"username": "testuser2", "password": "pass"},
			wantLocation: "/register",
		},
		{
			name:         "missing fields",
			form:         map[string]string{"username": "testuser3"},
			wantLocation: "/register",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled = nil
			rr := postForm(t, localAuth.HandleSignup, "/register", tt.form)

			if rr.Code != http.StatusFound {
				t.Fatalf("expected redirect, got %d. Body: %s", rr.Code, rr.Body.String())
			}
			if loc := rr.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("expected redirect to %s, got %s", tt.wantLocation, loc)
			}
			if tt.wantHandled && handled == nil {
				t.Error("expected HandleUser to be called")
			}
			if !tt.wantHandled && handled != nil {
				t.Error("HandleUser called on a failed signup")
			}
		})
	}
}

func TestLoginFlow(t *testing.T) {
	store := setupTestStore(t)
	var handled *secrets.User
	localAuth := newTestLocalAuth(store, &handled)

	rr := postForm(t, localAuth.HandleSignup, "/register", map[string]string{
		"username": "testuser", "password": "password123",
	})
	if rr.Code != http.StatusFound || handled == nil {
		t.Fatalf("signup setup failed: %d", rr.Code)
	}
	registered := handled

	tests := []struct {
		name         string
		form         map[string]string
		wantLocation string
		wantHandled  bool
	}{
		{
			name:         "successful login",
			form:         map[string]string{"username": "testuser", "password": "password123"},
			wantLocation: "/secrets",
			wantHandled:  true,
		},
		{
			name:         "wrong password",
			form:         map[string]string{"username": "testuser", "password": "password999"},
			wantLocation: "/login",
		},
		{
			name:         "unknown user",
			form:         map[string]string{"username": "nobody", "password": "password123"},
			wantLocation: "/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled = nil
			rr := postForm(t, localAuth.HandleLogin, "/login", tt.form)

			if rr.Code != http.StatusFound {
				t.Fatalf("expected redirect, got %d", rr.Code)
			}
			if loc := rr.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("expected redirect to %s, got %s", tt.wantLocation, loc)
			}
			if tt.wantHandled {
				if handled == nil {
					t.Fatal("expected HandleUser to be called")
				}
				if handled.ID != registered.ID {
					t.Errorf("logged in as %s, expected %s", handled.ID, registered.ID)
				}
			} else if handled != nil {
				t.Error("HandleUser called on a failed login")
			}
		})
	}
}
