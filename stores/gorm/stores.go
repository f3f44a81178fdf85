//go:build !wasm
// +build !wasm

// Package gorm provides the SQL-backed UserStore (Postgres in production).
// Find-or-create on provider subject ids rides on unique indexes plus an
// insert with ON CONFLICT DO NOTHING, so concurrent OAuth callbacks for the
// same subject never create two rows.
package gorm

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panyam/secrets"
)

// Open connects to a Postgres database. TranslateError maps driver
// duplicate-key failures onto gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

// AutoMigrate runs database migrations for the secrets tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements secrets.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUserById(userId string) (*secrets.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", secrets.ErrUserNotFound, userId)
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(username string) (*secrets.User, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", secrets.ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return model.ToUser(), nil
}

func (s *UserStore) CreateLocalUser(username string, passwordHash string) (*secrets.User, error) {
	model := &UserModel{
		ID:           secrets.NewUserId(),
		Username:     &username,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, secrets.ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return model.ToUser(), nil
}

func (s *UserStore) EnsureProviderUser(provider string, subjectId string) (*secrets.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	var model UserModel
	lookupErr := s.db.First(&model, column+" = ?", subjectId).Error
	if lookupErr == nil {
		return model.ToUser(), nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, lookupErr.Error())
	}

	fresh := UserModel{ID: secrets.NewUserId()}
	switch provider {
	case secrets.ProviderGoogle:
		fresh.GoogleID = &subjectId
	case secrets.ProviderFacebook:
		fresh.FacebookID = &subjectId
	}

	// Insert-if-absent in one statement; a concurrent callback that won the
	// race leaves RowsAffected at 0 and we read its row instead.
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}).Create(&fresh)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, result.Error.Error())
	}
	if result.RowsAffected == 0 {
		if err := s.db.First(&model, column+" = ?", subjectId).Error; err != nil {
			return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
		}
		return model.ToUser(), nil
	}
	return fresh.ToUser(), nil
}

func (s *UserStore) SaveUser(user *secrets.User) error {
	if err := s.db.Save(UserToModel(user)).Error; err != nil {
		return fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets() ([]*secrets.User, error) {
	var models []UserModel
	if err := s.db.Where("secret <> ''").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	users := make([]*secrets.User, len(models))
	for i := range models {
		users[i] = models[i].ToUser()
	}
	return users, nil
}

func providerColumn(provider string) (string, error) {
	switch provider {
	case secrets.ProviderGoogle:
		return "google_id", nil
	case secrets.ProviderFacebook:
		return "facebook_id", nil
	}
	return "", fmt.Errorf("unknown provider: %s", provider)
}
