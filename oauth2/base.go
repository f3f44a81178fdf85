// Package oauth2 holds the federated identity adapters for the Secrets app.
// Each provider runs the standard authorization-code flow: HandleRedirect
// sends the user agent to the provider with an anti-forgery state cookie,
// HandleCallback exchanges the returned code for a token, fetches the
// provider profile, and hands it to the app's HandleUser callback. Any
// failure along the way ends at AuthFailureURL, never as a raw provider
// error.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type BaseOAuth2 struct {
	Provider     string
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// AuthFailureURL is where failed handshakes land. Defaults to /login.
	AuthFailureURL string

	// UserInfoURL is the URL to fetch the provider profile from.
	// Can be overridden for testing.
	UserInfoURL string

	// HTTPClient used for profile fetches. Defaults to a client with a
	// conservative timeout so a stalled provider cannot pin a request.
	HTTPClient *http.Client

	oauthConfig oauth2.Config
}

func newBaseOAuth2(provider, clientId, clientSecret, callbackUrl string, handleUser HandleUserFunc) *BaseOAuth2 {
	return &BaseOAuth2{
		Provider:       provider,
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleUser:     handleUser,
		AuthFailureURL: "/login",
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
}

// HandleRedirect begins the handshake by sending the user agent to the
// provider's authorization endpoint.
func (b *BaseOAuth2) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	oauthState := generateStateOauthCookie(w)
	u := b.oauthConfig.AuthCodeURL(oauthState)
	http.Redirect(w, r, u, http.StatusFound)
}

// HandleCallback completes the handshake: state check, code exchange,
// profile fetch, then the HandleUser callback.
func (b *BaseOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie(stateCookieName)
	if oauthState == nil {
		http.Error(w, "OauthState is nil", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		clearStateCookie(w)
		http.Error(w, fmt.Sprintf("invalid oauth %s state", b.Provider), http.StatusBadRequest)
		return
	}

	// The provider reports denied consent and its own failures here
	if errParam := r.FormValue("error"); errParam != "" {
		slog.Info("provider returned error", "provider", b.Provider, "error", errParam)
		http.Redirect(w, r, b.AuthFailureURL, http.StatusTemporaryRedirect)
		return
	}

	var userInfo map[string]any
	code := r.FormValue("code")
	token, err := b.oauthConfig.Exchange(b.exchangeContext(), code)
	if err != nil {
		slog.Info("invalid code exchange", "provider", b.Provider, "err", err)
	} else {
		userInfo, err = b.fetchUserInfo(token)
		if err == nil {
			b.HandleUser(b.Provider, token, userInfo, w, r)
		}
	}
	if err != nil {
		slog.Info("redirecting due to error", "provider", b.Provider, "err", err)
		http.Redirect(w, r, b.AuthFailureURL, http.StatusTemporaryRedirect)
	}
}

func (b *BaseOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequest("GET", b.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := b.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from %s: %s", b.Provider, err.Error())
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %s", err.Error())
	}
	return userInfo, nil
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (b *BaseOAuth2) exchangeContext() context.Context {
	return context.WithValue(context.Background(), oauth2.HTTPClient, b.getHTTPClient())
}

// SubjectId extracts the provider's stable subject identifier from a
// profile. Both Google's v2 userinfo and Facebook's graph profile carry it
// in "id".
func SubjectId(userInfo map[string]any) string {
	if id, ok := userInfo["id"].(string); ok {
		return id
	}
	return ""
}
