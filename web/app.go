// Package web wires the Secrets app's HTTP surface: the page routes, the
// embedded templates and the static assets. All auth decisions live in the
// root package and oauth2/; handlers here only translate outcomes into
// renders and redirects.
package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	xoauth2 "golang.org/x/oauth2"

	"github.com/panyam/secrets"
	"github.com/panyam/secrets/oauth2"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed public
var publicFS embed.FS

type App struct {
	Auth  *secrets.Auth
	Store secrets.UserStore

	Local    *secrets.LocalAuth
	Google   *oauth2.GoogleOAuth2
	Facebook *oauth2.FacebookOAuth2

	templates *template.Template
}

// pageData is what every template receives
type pageData struct {
	LoggedIn bool
	Users    []*secrets.User
}

func NewApp(auth *secrets.Auth, store secrets.UserStore) *App {
	app := &App{
		Auth:      auth,
		Store:     store,
		templates: template.Must(template.ParseFS(templatesFS, "templates/*.html")),
	}
	app.Local = &secrets.LocalAuth{
		ValidateCredentials: secrets.NewCredentialsValidator(store),
		CreateUser:          secrets.NewCreateUserFunc(store),
		HandleUser:          app.handleLocalUser,
		LoginURL:            "/login",
		SignupURL:           "/register",
	}
	app.Google = oauth2.NewGoogleOAuth2("", "", "", app.handleOAuthUser)
	app.Facebook = oauth2.NewFacebookOAuth2("", "", "", app.handleOAuthUser)
	return app
}

// Handler returns the app's full route table, wrapped in the session
// middleware.
func (app *App) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", app.renderPage("home")).Methods("GET")
	r.HandleFunc("/login", app.renderPage("login")).Methods("GET")
	r.HandleFunc("/register", app.renderPage("register")).Methods("GET")
	r.HandleFunc("/login", app.Local.HandleLogin).Methods("POST")
	r.HandleFunc("/register", app.Local.HandleSignup).Methods("POST")

	r.HandleFunc("/secrets", app.handleSecretsPage).Methods("GET")
	r.Handle("/submit", app.Auth.Middleware.EnsureUser(http.HandlerFunc(app.renderPage("submit")))).Methods("GET")
	r.Handle("/submit", app.Auth.Middleware.EnsureUser(http.HandlerFunc(app.handleSubmitSecret))).Methods("POST")
	r.HandleFunc("/logout", app.Auth.HandleLogout).Methods("GET")

	r.HandleFunc("/auth/google", app.Google.HandleRedirect).Methods("GET")
	r.HandleFunc("/auth/google/secrets", app.Google.HandleCallback).Methods("GET")
	r.HandleFunc("/auth/facebook", app.Facebook.HandleRedirect).Methods("GET")
	r.HandleFunc("/auth/facebook/secrets", app.Facebook.HandleCallback).Methods("GET")

	r.PathPrefix("/public/").Handler(http.FileServer(http.FS(publicFS)))

	return app.Auth.Session.LoadAndSave(r)
}

// handleLocalUser establishes the session after a local login or signup
func (app *App) handleLocalUser(user *secrets.User, w http.ResponseWriter, r *http.Request) {
	app.Auth.SetLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// handleOAuthUser resolves a provider profile to a local account and
// establishes the session. Any failure lands back on the login page.
func (app *App) handleOAuthUser(provider string, token *xoauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	subjectId := oauth2.SubjectId(userInfo)
	if subjectId == "" {
		slog.Info("provider profile missing subject id", "provider", provider)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	user, err := app.Store.EnsureProviderUser(provider, subjectId)
	if err != nil {
		slog.Error("error resolving provider user", "provider", provider, "err", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	app.Auth.SetLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (app *App) handleSecretsPage(w http.ResponseWriter, r *http.Request) {
	users, err := app.Store.ListUsersWithSecrets()
	if err != nil {
		// Degrade to an empty listing rather than failing the page
		slog.Error("error listing secrets", "err", err)
		users = nil
	}
	app.render(w, r, "secrets", users)
}

func (app *App) handleSubmitSecret(w http.ResponseWriter, r *http.Request) {
	user, err := app.Auth.CurrentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	// Each submission replaces the previous secret
	user.Secret = r.FormValue("secret")
	if err := app.Store.SaveUser(user); err != nil {
		slog.Error("error saving secret", "userId", user.ID, "err", err)
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (app *App) renderPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.render(w, r, name, nil)
	}
}

func (app *App) render(w http.ResponseWriter, r *http.Request, name string, users []*secrets.User) {
	data := pageData{
		LoggedIn: app.Auth.Middleware.GetLoggedInUserId(r) != "",
		Users:    users,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := app.templates.ExecuteTemplate(w, name+".html", data); err != nil {
		slog.Error("error rendering template", "name", name, "err", err)
	}
}
