// Package secrets implements the account and session core of the Secrets
// web app: a small site where a visitor registers (username/password or via
// Google/Facebook OAuth2), logs in, and publishes one anonymous secret that
// is listed alongside everyone else's.
//
// # Architecture
//
// User: the single account entity. A user may hold local credentials
// (username + bcrypt hash), a Google subject id, a Facebook subject id, or
// several of these if the same person signs up through multiple channels.
// Channels are deliberately NOT merged into one account.
//
// UserStore: the persistence contract. Three backends ship in stores/
// (JSON files), stores/gorm (Postgres) and stores/gae (Cloud Datastore).
// All of them implement find-or-create on provider subject ids atomically,
// so two concurrent OAuth callbacks for the same person yield one record.
//
// Auth: the session layer. A successful login binds the user id - and only
// the id - to a server-side scs session plus a signed JWT cookie. Every
// request resolves the id back to a full User through the store; if the
// user has since disappeared the request is simply anonymous.
//
// # Basic Usage
//
//	store := stores.NewFSUserStore("./data")
//	session := scs.New()
//	auth := secrets.New("Secrets", store, session)
//
//	app := web.NewApp(auth, store)
//	http.ListenAndServe(":3000", app.Handler())
package secrets
