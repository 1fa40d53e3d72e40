// Package file provides the file-based persistence implementation used in
// development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/start-berlin/cockpit/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of JSON files.
type Persistence struct {
	root      string
	runRepo   *RunRepository
	userRepo  *UserRepository
	groupRepo *GroupRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		runRepo:   NewRunRepository(cleanRoot),
		userRepo:  NewUserRepository(cleanRoot),
		groupRepo: NewGroupRepository(cleanRoot),
	}
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

func (fp *Persistence) UserRepository() persistence.UserRepository {
	return fp.userRepo
}

func (fp *Persistence) GroupRepository() persistence.GroupRepository {
	return fp.groupRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to do for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
