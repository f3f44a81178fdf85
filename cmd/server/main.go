// Command server runs the Secrets web app.
//
// Configuration comes from the environment (a .env file is honored):
//
//	SECRETS_PORT              listen port, defaults to 3000
//	DATABASE_URL              Postgres DSN; selects the SQL store
//	DATASTORE_PROJECT_ID      GCP project; selects the Datastore store
//	SECRETS_DATA_DIR          fallback JSON-file store dir, default ./data
//	SECRETS_JWT_SECRET_KEY    auth-token signing key
//	OAUTH2_GOOGLE_CLIENT_ID / _SECRET / _CALLBACK_URL
//	OAUTH2_FACEBOOK_CLIENT_ID / _SECRET / _CALLBACK_URL
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"

	"github.com/panyam/secrets"
	"github.com/panyam/secrets/stores"
	"github.com/panyam/secrets/stores/gae"
	gormstore "github.com/panyam/secrets/stores/gorm"
	"github.com/panyam/secrets/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded: ", err)
	}

	store, err := newUserStore()
	if err != nil {
		log.Fatal("error setting up user store: ", err)
	}

	session := scs.New()
	session.Lifetime = 24 * time.Hour
	session.Cookie.HttpOnly = true

	auth := secrets.New("Secrets", store, session)
	app := web.NewApp(auth, store)

	port := os.Getenv("SECRETS_PORT")
	if port == "" {
		port = "3000"
	}

	log.Println("Server started on port " + port)
	if err := http.ListenAndServe(":"+port, app.Handler()); err != nil {
		log.Fatal(err)
	}
}

// newUserStore picks the persistence backend from the environment: Postgres
// when DATABASE_URL is set, Cloud Datastore when DATASTORE_PROJECT_ID is
// set, JSON files otherwise.
func newUserStore() (secrets.UserStore, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := gormstore.Open(dsn)
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		log.Println("using postgres user store")
		return gormstore.NewUserStore(db), nil
	}

	if projectId := os.Getenv("DATASTORE_PROJECT_ID"); projectId != "" {
		client, err := datastore.NewClient(context.Background(), projectId)
		if err != nil {
			return nil, err
		}
		log.Println("using datastore user store")
		return gae.NewUserStore(client, os.Getenv("DATASTORE_NAMESPACE")), nil
	}

	dataDir := os.Getenv("SECRETS_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	log.Println("using filesystem user store at ", dataDir)
	return stores.NewFSUserStore(dataDir), nil
}
