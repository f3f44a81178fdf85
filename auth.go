package secrets

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Auth owns the session lifecycle. A logged-in session carries exactly one
// piece of state - the user id - stored in the server-side scs session and
// mirrored into a signed JWT cookie so the id survives a session-store
// restart. Password material never enters either.
type Auth struct {
	Session    *scs.SessionManager
	Middleware Middleware

	// Must be passed in
	UserStore UserStore

	// Optional name used as a prefix for defaulted vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

func New(appName string, store UserStore, session *scs.SessionManager) *Auth {
	out := (&Auth{AppName: appName, UserStore: store, Session: session}).EnsureDefaults()
	return out
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "Secrets"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("SECRETS_JWT_SECRET_KEY"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.SessionGetter == nil && a.Session != nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.GetString(r.Context(), param)
		}
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.VerifyUser == nil && a.UserStore != nil {
		// A session id pointing at a deleted user means anonymous, not error
		a.Middleware.VerifyUser = func(userId string) bool {
			_, err := a.UserStore.GetUserById(userId)
			return err == nil
		}
	}
	return a
}

// CurrentUser resolves the request's session back into a full User record.
// Returns ErrUserNotFound both when no session exists and when the session
// references a user that no longer exists.
func (a *Auth) CurrentUser(r *http.Request) (*User, error) {
	a.EnsureDefaults()
	userId := a.Middleware.GetLoggedInUserId(r)
	if userId == "" {
		return nil, ErrUserNotFound
	}
	user, err := a.UserStore.GetUserById(userId)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			slog.Warn("error resolving session user", "userId", userId, "err", err)
		}
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SetLoggedInUser binds the user to the request's session and sets the auth
// token cookie. Passing nil terminates the session (logout). Returns the
// signed token on login, "" on logout.
func (a *Auth) SetLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()

	// Always drop any in-flight oauth state
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthstate",
		Value:  "",
		MaxAge: -1, Expires: time.Now(),
		Path: "/",
	})

	if user == nil {
		log.Println("Logging out user")
		if err := a.Session.Destroy(r.Context()); err != nil {
			slog.Warn("error destroying session", "err", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Now(),
		})
		return ""
	}

	// Renew the session token on privilege change
	if err := a.Session.RenewToken(r.Context()); err != nil {
		slog.Warn("error renewing session token", "err", err)
	}
	a.Session.Put(r.Context(), a.Middleware.getUserParamName(), user.ID)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"iss": a.JwtIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		slog.Info("error signing token", "err", err)
	}

	a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
	http.SetCookie(w, &http.Cookie{
		Name:     a.AuthTokenSessionVar,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
		MaxAge:   a.SessionTimeoutInSeconds,
	})
	return tokenString
}

// HandleLogout terminates the session and redirects (GET /logout)
func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.SetLoggedInUser(nil, w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" {
		toUrl = "/"
	}
	http.Redirect(w, r, toUrl, http.StatusFound)
}

func (a *Auth) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}
