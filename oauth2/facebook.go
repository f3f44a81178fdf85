package oauth2

import (
	"os"
	"strings"

	"golang.org/x/oauth2/facebook"
)

type FacebookOAuth2 struct {
	*BaseOAuth2
}

// NewFacebookOAuth2 creates the Facebook adapter. Empty config values fall
// back to the OAUTH2_FACEBOOK_* environment variables.
func NewFacebookOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *FacebookOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL"))
	}

	out := FacebookOAuth2{
		BaseOAuth2: newBaseOAuth2("facebook", clientId, clientSecret, callbackUrl, handleUser),
	}
	// Only the stable subject id and display name are ever read
	out.UserInfoURL = "https://graph.facebook.com/me?fields=id,name"
	out.oauthConfig.Endpoint = facebook.Endpoint
	out.oauthConfig.Scopes = []string{"public_profile"}
	return &out
}
