package file

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

// UserRepository stores directory users as one JSON file per user, keyed by
// internal ID with lookups scanning the directory.
type UserRepository struct {
	root string
	mu   sync.Mutex
}

func NewUserRepository(root string) *UserRepository {
	return &UserRepository{root: root}
}

func (ur *UserRepository) dir() string {
	return filepath.Join(ur.root, "users")
}

func (ur *UserRepository) write(user *models.User) error {
	if err := os.MkdirAll(ur.dir(), 0o755); err != nil {
		return &persistence.DirectoryError{Op: "write", Entity: "user", Key: user.Email, Err: err}
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return &persistence.DirectoryError{Op: "write", Entity: "user", Key: user.Email, Err: err}
	}

	path := filepath.Join(ur.dir(), user.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &persistence.DirectoryError{Op: "write", Entity: "user", Key: user.Email, Err: err}
	}

	return nil
}

func (ur *UserRepository) all() ([]*models.User, error) {
	root := os.DirFS(ur.dir())

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, &persistence.DirectoryError{Op: "all", Entity: "user", Err: err}
	}

	users := make([]*models.User, 0, len(files))

	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(ur.dir(), file))
		if err != nil {
			return nil, &persistence.DirectoryError{Op: "all", Entity: "user", Key: file, Err: err}
		}

		var user models.User
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, &persistence.DirectoryError{Op: "all", Entity: "user", Key: file, Err: err}
		}

		users = append(users, &user)
	}

	return users, nil
}

// UpsertByEmail inserts a new user or updates the existing record with the
// same company email. Last write wins.
func (ur *UserRepository) UpsertByEmail(_ context.Context, user *models.User) (string, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	existing, err := ur.all()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	for _, candidate := range existing {
		if candidate.Email == user.Email {
			user.ID = candidate.ID
			user.CreatedAt = candidate.CreatedAt
			user.UpdatedAt = now

			return candidate.ID, ur.write(user)
		}
	}

	if user.ID == "" {
		user.ID = "usr_" + uuid.New().String()
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	return user.ID, ur.write(user)
}

func (ur *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	users, err := ur.all()
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		if user.Email == email {
			return user, nil
		}
	}

	return nil, persistence.ErrUserNotFound
}

func (ur *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(ur.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "user", Key: id, Err: err}
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "user", Key: id, Err: err}
	}

	return &user, nil
}

func (ur *UserRepository) ListByStatus(_ context.Context, status models.UserStatus) ([]*models.User, error) {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	users, err := ur.all()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.User, 0, len(users))

	for _, user := range users {
		if user.Status == status {
			matched = append(matched, user)
		}
	}

	return matched, nil
}

// GroupRepository stores directory groups as one JSON file per group.
type GroupRepository struct {
	root string
	mu   sync.Mutex
}

func NewGroupRepository(root string) *GroupRepository {
	return &GroupRepository{root: root}
}

func (gr *GroupRepository) dir() string {
	return filepath.Join(gr.root, "groups")
}

func (gr *GroupRepository) path(id string) string {
	return filepath.Join(gr.dir(), id+".json")
}

// InsertIfAbsent writes the group unless one with the same ID exists.
// Matches the insert-or-ignore semantics of the directory store.
func (gr *GroupRepository) InsertIfAbsent(_ context.Context, group *models.Group) error {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	if _, err := os.Stat(gr.path(group.ID)); err == nil {
		return nil
	}

	if err := os.MkdirAll(gr.dir(), 0o755); err != nil {
		return &persistence.DirectoryError{Op: "InsertIfAbsent", Entity: "group", Key: group.ID, Err: err}
	}

	group.CreatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(group, "", "  ")
	if err != nil {
		return &persistence.DirectoryError{Op: "InsertIfAbsent", Entity: "group", Key: group.ID, Err: err}
	}

	if err := os.WriteFile(gr.path(group.ID), data, 0o644); err != nil {
		return &persistence.DirectoryError{Op: "InsertIfAbsent", Entity: "group", Key: group.ID, Err: err}
	}

	return nil
}

func (gr *GroupRepository) FindByID(_ context.Context, id string) (*models.Group, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	data, err := os.ReadFile(gr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrGroupNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "group", Key: id, Err: err}
	}

	var group models.Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "group", Key: id, Err: err}
	}

	return &group, nil
}

func (gr *GroupRepository) FindBySlug(_ context.Context, slug string) (*models.Group, error) {
	gr.mu.Lock()
	defer gr.mu.Unlock()

	root := os.DirFS(gr.dir())

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, &persistence.DirectoryError{Op: "FindBySlug", Entity: "group", Key: slug, Err: err}
	}

	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(gr.dir(), file))
		if err != nil {
			return nil, &persistence.DirectoryError{Op: "FindBySlug", Entity: "group", Key: slug, Err: err}
		}

		var group models.Group
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, &persistence.DirectoryError{Op: "FindBySlug", Entity: "group", Key: slug, Err: err}
		}

		if group.Slug == slug {
			return &group, nil
		}
	}

	return nil, persistence.ErrGroupNotFound
}
