package secrets

import (
	"context"
	"log/slog"
	"net/http"
)

type userParamNameKey string

// Middleware is the auth gate: it resolves "who is this request" from the
// session (or, failing that, a signed auth-token cookie/header) and either
// exposes the answer to downstream handlers (ExtractUser) or enforces it
// (EnsureUser).
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	UserParamName       string
	SessionGetter       func(r *http.Request, param string) any
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)

	// VerifyUser confirms a resolved user id still references a live user.
	// A stale id is treated as anonymous.
	VerifyUser func(userId string) bool

	// LoginURL is where EnsureUser redirects anonymous requests
	LoginURL string
}

func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
	if a.LoginURL == "" {
		a.LoginURL = "/login"
	}
}

// GetLoggedInUserId returns the id of the logged in user for this request,
// or "" for an anonymous request.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	a.EnsureReasonableDefaults()

	if v := r.Context().Value(userParamNameKey(a.UserParamName)); v != nil {
		if loggedInUserId := v.(string); loggedInUserId != "" {
			return loggedInUserId
		}
	}
	return a.resolveUserId(r)
}

// resolveUserId checks the session first and falls back to auth tokens sent
// as a cookie or header.
func (a *Middleware) resolveUserId(r *http.Request) string {
	if a.SessionGetter != nil {
		if userParam := a.SessionGetter(r, a.UserParamName); userParam != "" && userParam != nil {
			return a.checkedUserId(userParam.(string))
		}
	}

	if a.VerifyToken == nil {
		slog.Warn("No auth token verifier found.  Please set one")
		return ""
	}

	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		loggedInUserId, _, err := a.VerifyToken(authToken)
		if err == nil && loggedInUserId != "" {
			return a.checkedUserId(loggedInUserId)
		} else if err != nil {
			slog.Warn("Error verifying token", "error", err)
		}
	}
	return ""
}

func (a *Middleware) checkedUserId(userId string) string {
	if userId != "" && a.VerifyUser != nil && !a.VerifyUser(userId) {
		return ""
	}
	return userId
}

// ExtractUser loads the logged in user id (if any) into the request context
// for downstream handlers. It never redirects; anonymous requests pass
// through with an empty id.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.resolveUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// EnsureUser is ExtractUser plus enforcement: anonymous requests are
// redirected to the login page instead of reaching the handler.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.GetLoggedInUserId(r)
			if userParam == "" {
				http.Redirect(w, r, a.LoginURL, http.StatusFound)
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// Set the logged in user id into the request's variable set
// This will make it available to all other handlers downstream
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}

func (a *Middleware) getUserParamName() string {
	a.EnsureReasonableDefaults()
	return a.UserParamName
}
