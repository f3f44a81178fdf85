package oauth2

import (
	"os"
	"strings"

	"golang.org/x/oauth2/google"
)

type GoogleOAuth2 struct {
	*BaseOAuth2
}

// NewGoogleOAuth2 creates the Google adapter. Empty config values fall back
// to the OAUTH2_GOOGLE_* environment variables.
func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL"))
	}

	out := GoogleOAuth2{
		BaseOAuth2: newBaseOAuth2("google", clientId, clientSecret, callbackUrl, handleUser),
	}
	out.UserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	out.oauthConfig.Endpoint = google.Endpoint
	out.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}
	return &out
}
