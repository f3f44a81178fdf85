//go:build !wasm
// +build !wasm

// Package gae provides the Google Cloud Datastore UserStore. Username and
// provider-subject uniqueness is kept by dedicated reference entities keyed
// by the value itself, so find-or-create runs entirely inside a datastore
// transaction.
package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/panyam/secrets"
)

// Kind constants for Datastore entities
const (
	KindUser        = "User"
	KindUsername    = "Username"
	KindProviderRef = "ProviderRef"
)

type userEntity struct {
	Username     string    `datastore:"username"`
	PasswordHash string    `datastore:"password_hash,noindex"`
	GoogleID     string    `datastore:"google_id"`
	FacebookID   string    `datastore:"facebook_id"`
	Secret       string    `datastore:"secret"`
	CreatedAt    time.Time `datastore:"created_at"`
	UpdatedAt    time.Time `datastore:"updated_at"`
}

// userRef maps a unique value (username, provider subject) to a user id
type userRef struct {
	UserID    string    `datastore:"user_id"`
	CreatedAt time.Time `datastore:"created_at"`
}

// UserStore implements secrets.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *UserStore) WithContext(ctx context.Context) *UserStore {
	return &UserStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func providerRefName(provider, subjectId string) string {
	return provider + ":" + subjectId
}

func (s *UserStore) GetUserById(userId string) (*secrets.User, error) {
	var entity userEntity
	if err := s.client.Get(s.ctx, s.namespacedKey(KindUser, userId), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, fmt.Errorf("%w: %s", secrets.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return entity.toUser(userId), nil
}

func (s *UserStore) GetUserByUsername(username string) (*secrets.User, error) {
	var ref userRef
	if err := s.client.Get(s.ctx, s.namespacedKey(KindUsername, username), &ref); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, fmt.Errorf("%w: %s", secrets.ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return s.GetUserById(ref.UserID)
}

func (s *UserStore) CreateLocalUser(username string, passwordHash string) (*secrets.User, error) {
	userId := secrets.NewUserId()
	now := time.Now()

	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		usernameKey := s.namespacedKey(KindUsername, username)
		var existing userRef
		if err := tx.Get(usernameKey, &existing); err == nil {
			return secrets.ErrUsernameTaken
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		entity := &userEntity{
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if _, err := tx.Put(s.namespacedKey(KindUser, userId), entity); err != nil {
			return err
		}
		_, err := tx.Put(usernameKey, &userRef{UserID: userId, CreatedAt: now})
		return err
	})
	if err != nil {
		if errors.Is(err, secrets.ErrUsernameTaken) {
			return nil, secrets.ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	return s.GetUserById(userId)
}

func (s *UserStore) EnsureProviderUser(provider string, subjectId string) (*secrets.User, error) {
	if provider != secrets.ProviderGoogle && provider != secrets.ProviderFacebook {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	var resolvedId string
	now := time.Now()

	// The ref entity is keyed by provider:subject, so the whole
	// find-or-create is a transactional get-or-put
	_, err := s.client.RunInTransaction(s.ctx, func(tx *datastore.Transaction) error {
		refKey := s.namespacedKey(KindProviderRef, providerRefName(provider, subjectId))
		var ref userRef
		if err := tx.Get(refKey, &ref); err == nil {
			resolvedId = ref.UserID
			return nil
		} else if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		resolvedId = secrets.NewUserId()
		user := &secrets.User{ID: resolvedId, CreatedAt: now, UpdatedAt: now}
		user.SetProviderId(provider, subjectId)
		if _, err := tx.Put(s.namespacedKey(KindUser, resolvedId), entityFromUser(user)); err != nil {
			return err
		}
		_, err := tx.Put(refKey, &userRef{UserID: resolvedId, CreatedAt: now})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	return s.GetUserById(resolvedId)
}

func (s *UserStore) SaveUser(user *secrets.User) error {
	user.UpdatedAt = time.Now()
	if _, err := s.client.Put(s.ctx, s.namespacedKey(KindUser, user.ID), entityFromUser(user)); err != nil {
		return fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets() ([]*secrets.User, error) {
	query := datastore.NewQuery(KindUser).
		FilterField("secret", ">", "").
		Namespace(s.namespace)

	var users []*secrets.User
	it := s.client.Run(s.ctx, query)
	for {
		var entity userEntity
		key, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
		}
		users = append(users, entity.toUser(key.Name))
	}
	return users, nil
}

func (e *userEntity) toUser(userId string) *secrets.User {
	return &secrets.User{
		ID:           userId,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		GoogleID:     e.GoogleID,
		FacebookID:   e.FacebookID,
		Secret:       e.Secret,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func entityFromUser(u *secrets.User) *userEntity {
	return &userEntity{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		FacebookID:   u.FacebookID,
		Secret:       u.Secret,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
