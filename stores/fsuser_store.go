// Package stores provides a filesystem-backed UserStore that keeps each
// user as a JSON file. It is the development and test backend; production
// deployments use stores/gorm or stores/gae.
package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panyam/secrets"
)

// FSUserStore stores users as JSON files under StoragePath/users. A single
// process-wide mutex serializes every mutation, which is what makes
// EnsureProviderUser's check-then-create safe here.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUserPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) GetUserById(userId string) (*secrets.User, error) {
	return s.readUser(s.getUserPath(userId))
}

func (s *FSUserStore) GetUserByUsername(username string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findUser(func(u *secrets.User) bool { return u.Username == username })
}

func (s *FSUserStore) CreateLocalUser(username string, passwordHash string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findUser(func(u *secrets.User) bool { return u.Username == username }); err == nil {
		return nil, secrets.ErrUsernameTaken
	}

	user := &secrets.User{
		ID:           secrets.NewUserId(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	return user, s.writeUser(user)
}

func (s *FSUserStore) EnsureProviderUser(provider string, subjectId string) (*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.findUser(func(u *secrets.User) bool { return u.ProviderId(provider) == subjectId })
	if err == nil {
		return user, nil
	}

	user = &secrets.User{
		ID:        secrets.NewUserId(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	user.SetProviderId(provider, subjectId)
	return user, s.writeUser(user)
}

func (s *FSUserStore) SaveUser(user *secrets.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) ListUsersWithSecrets() ([]*secrets.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*secrets.User
	err := s.eachUser(func(u *secrets.User) bool {
		if u.HasSecret() {
			out = append(out, u)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FSUserStore) readUser(path string) (*secrets.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", secrets.ErrUserNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	var user secrets.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FSUserStore) writeUser(user *secrets.User) error {
	path := s.getUserPath(user.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

// eachUser walks every stored user. The visitor returns false to stop.
func (s *FSUserStore) eachUser(visit func(u *secrets.User) bool) error {
	dir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s", secrets.ErrStoreUnavailable, err.Error())
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		user, err := s.readUser(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if !visit(user) {
			break
		}
	}
	return nil
}

func (s *FSUserStore) findUser(match func(u *secrets.User) bool) (*secrets.User, error) {
	var found *secrets.User
	err := s.eachUser(func(u *secrets.User) bool {
		if match(u) {
			found = u
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, secrets.ErrUserNotFound
	}
	return found, nil
}
