package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

// RunRepository stores workflow runs as one JSON file per run.
type RunRepository struct {
	root string
	mu   sync.Mutex
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (rr *RunRepository) dir() string {
	return filepath.Join(rr.root, "runs")
}

func (rr *RunRepository) path(id string) string {
	return filepath.Join(rr.dir(), id+".json")
}

func (rr *RunRepository) SaveRun(_ context.Context, run *models.WorkflowRun) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if err := os.MkdirAll(rr.dir(), 0o755); err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	if err := os.WriteFile(rr.path(run.ID), data, 0o644); err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	return nil
}

func (rr *RunRepository) RunByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	return rr.load(id)
}

func (rr *RunRepository) load(id string) (*models.WorkflowRun, error) {
	data, err := os.ReadFile(rr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	var run models.WorkflowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, persistence.NewRunError("RunByID", id, fmt.Errorf("corrupt run file: %w", err))
	}

	return &run, nil
}

func (rr *RunRepository) ActiveRun(ctx context.Context, workflowID, idempotencyKey string) (*models.WorkflowRun, error) {
	runs, err := rr.Runs(ctx)
	if err != nil {
		return nil, err
	}

	for _, run := range runs {
		if run.WorkflowID == workflowID && run.IdempotencyKey == idempotencyKey && !run.Status.Terminal() {
			return run, nil
		}
	}

	return nil, persistence.ErrRunNotFound
}

func (rr *RunRepository) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	all, err := rr.Runs(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.WorkflowRun, 0, len(all))

	for _, run := range all {
		if run.WorkflowID == workflowID {
			runs = append(runs, run)
		}
	}

	return runs, nil
}

func (rr *RunRepository) Runs(_ context.Context) ([]*models.WorkflowRun, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	root := os.DirFS(rr.dir())

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, persistence.NewRunError("Runs", "", err)
	}

	runs := make([]*models.WorkflowRun, 0, len(files))

	for _, file := range files {
		run, err := rr.load(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}
