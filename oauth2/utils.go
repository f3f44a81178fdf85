package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// HandleUserFunc is called after a successful code exchange and profile
// fetch. userInfo is the raw provider profile; the app is responsible for
// extracting the subject id and resolving it to a local account.
type HandleUserFunc func(provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request)

const stateCookieName = "oauthstate"

func generateStateOauthCookie(w http.ResponseWriter) string {
	var expiration = time.Now().Add(time.Hour)
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Println("Error generating rand: ", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	cookie := http.Cookie{Name: stateCookieName, Value: state, Path: "/", Expires: expiration, HttpOnly: true}
	http.SetCookie(w, &cookie)
	return state
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
