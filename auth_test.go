package secrets_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/panyam/secrets"
	"github.com/panyam/secrets/stores"
)

type authServer struct {
	dataDir string
	store   *stores.FSUserStore
	auth    *secrets.Auth
	ts      *httptest.Server
	client  *http.Client
}

// setupAuthServer assembles the session middleware, local auth and auth
// gate the same way the web app does, around a tiny route table.
func setupAuthServer(t *testing.T) *authServer {
	t.Helper()

	dataDir := t.TempDir()
	store := stores.NewFSUserStore(dataDir)
	session := scs.New()
	auth := secrets.New("Secrets", store, session)

	localAuth := &secrets.LocalAuth{
		ValidateCredentials: secrets.NewCredentialsValidator(store),
		CreateUser:          secrets.NewCreateUserFunc(store),
		HandleUser: func(user *secrets.User, w http.ResponseWriter, r *http.Request) {
			auth.SetLoggedInUser(user, w, r)
			http.Redirect(w, r, "/secrets", http.StatusFound)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", localAuth.HandleSignup)
	mux.HandleFunc("POST /login", localAuth.HandleLogin)
	mux.HandleFunc("GET /logout", auth.HandleLogout)
	mux.Handle("GET /me", auth.Middleware.EnsureUser(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, auth.Middleware.GetLoggedInUserId(r))
		})))

	ts := httptest.NewServer(session.LoadAndSave(mux))
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &authServer{dataDir: dataDir, store: store, auth: auth, ts: ts, client: client}
}

func (s *authServer) postForm(t *testing.T, path string, form map[string]string) *http.Response {
	t.Helper()
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	resp, err := s.client.Post(s.ts.URL+path, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func (s *authServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := s.client.Get(s.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func TestSessionLifecycle(t *testing.T) {
	s := setupAuthServer(t)

	// Anonymous requests are redirected to login
	resp, _ := s.get(t, "/me")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected anonymous redirect to /login, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	// Register establishes a session
	resp = s.postForm(t, "/register", map[string]string{"username": "alice", "password": "password123"})
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/secrets" {
		t.Fatalf("expected signup redirect to /secrets, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, userId := s.get(t, "/me")
	if resp.StatusCode != http.StatusOK || userId == "" {
		t.Fatalf("expected logged in user id, got %d %q", resp.StatusCode, userId)
	}

	// Logout terminates the session
	resp, _ = s.get(t, "/logout")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("expected logout redirect to /, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = s.get(t, "/me")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected anonymous redirect after logout, got %d", resp.StatusCode)
	}
}

func TestDeletedUserSessionIsAnonymous(t *testing.T) {
	s := setupAuthServer(t)

	s.postForm(t, "/register", map[string]string{"username": "alice", "password": "password123"})
	resp, userId := s.get(t, "/me")
	if resp.StatusCode != http.StatusOK || userId == "" {
		t.Fatalf("login setup failed: %d", resp.StatusCode)
	}

	// Delete the user out from under the live session
	if err := os.Remove(filepath.Join(s.dataDir, "users", userId+".json")); err != nil {
		t.Fatalf("failed to delete user record: %v", err)
	}

	resp, _ = s.get(t, "/me")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected stale session to be anonymous, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestAuthTokenCookieFallback(t *testing.T) {
	s := setupAuthServer(t)

	s.postForm(t, "/register", map[string]string{"username": "alice", "password": "password123"})

	// Find the signed auth token cookie the login set
	tsUrl, _ := url.Parse(s.ts.URL)
	var authToken string
	for _, cookie := range s.client.Jar.Cookies(tsUrl) {
		if cookie.Name == s.auth.AuthTokenSessionVar {
			authToken = cookie.Value
		}
	}
	if authToken == "" {
		t.Fatal("expected an auth token cookie after login")
	}

	// A fresh request carrying only the JWT cookie still resolves the user
	req, _ := http.NewRequest("GET", s.ts.URL+"/me", nil)
	req.AddCookie(&http.Cookie{Name: s.auth.AuthTokenSessionVar, Value: authToken})
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected JWT cookie to authenticate, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		t.Fatal("expected user id in response")
	}
}
