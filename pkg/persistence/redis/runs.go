// Package redis provides a Redis-backed workflow run store. The directory
// itself stays in SQL or files; Redis only carries run state, where the
// idempotency guard benefits from fast point lookups.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

const (
	runKeyPrefix    = "cockpit:runs:"
	activeKeyPrefix = "cockpit:runs-active:"
	allRunsKey      = "cockpit:runs"
	workflowPrefix  = "cockpit:runs-by-workflow:"
)

// RunStore implements persistence.RunRepository on Redis.
type RunStore struct {
	client goredis.UniversalClient
}

func NewRunStore(url string) (*RunStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RunStore{client: goredis.NewClient(opts)}, nil
}

func NewRunStoreWithClient(client goredis.UniversalClient) *RunStore {
	return &RunStore{client: client}
}

func activeKey(workflowID, idempotencyKey string) string {
	return activeKeyPrefix + workflowID + ":" + idempotencyKey
}

func (rs *RunStore) SaveRun(ctx context.Context, run *models.WorkflowRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, runKeyPrefix+run.ID, data, 0)
	pipe.SAdd(ctx, allRunsKey, run.ID)
	pipe.SAdd(ctx, workflowPrefix+run.WorkflowID, run.ID)

	// The active marker backs ActiveRun; it only exists while the run is
	// non-terminal.
	if run.IdempotencyKey != "" {
		if run.Status.Terminal() {
			pipe.Del(ctx, activeKey(run.WorkflowID, run.IdempotencyKey))
		} else {
			pipe.Set(ctx, activeKey(run.WorkflowID, run.IdempotencyKey), run.ID, 0)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	return nil
}

func (rs *RunStore) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	data, err := rs.client.Get(ctx, runKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	var run models.WorkflowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	return &run, nil
}

func (rs *RunStore) ActiveRun(ctx context.Context, workflowID, idempotencyKey string) (*models.WorkflowRun, error) {
	runID, err := rs.client.Get(ctx, activeKey(workflowID, idempotencyKey)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, &persistence.RunError{Op: "ActiveRun", WorkflowID: workflowID, Err: err}
	}

	run, err := rs.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	// The marker can outlive a crashed writer; double-check the status.
	if run.Status.Terminal() {
		return nil, persistence.ErrRunNotFound
	}

	return run, nil
}

func (rs *RunStore) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	ids, err := rs.client.SMembers(ctx, workflowPrefix+workflowID).Result()
	if err != nil {
		return nil, &persistence.RunError{Op: "RunsByWorkflow", WorkflowID: workflowID, Err: err}
	}

	return rs.collect(ctx, ids)
}

func (rs *RunStore) Runs(ctx context.Context) ([]*models.WorkflowRun, error) {
	ids, err := rs.client.SMembers(ctx, allRunsKey).Result()
	if err != nil {
		return nil, persistence.NewRunError("Runs", "", err)
	}

	return rs.collect(ctx, ids)
}

func (rs *RunStore) collect(ctx context.Context, ids []string) ([]*models.WorkflowRun, error) {
	runs := make([]*models.WorkflowRun, 0, len(ids))

	for _, id := range ids {
		run, err := rs.RunByID(ctx, id)
		if err != nil {
			if persistence.IsRunNotFound(err) {
				continue
			}

			return nil, err
		}

		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return runs, nil
}

func (rs *RunStore) HealthCheck(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

func (rs *RunStore) Close() error {
	return rs.client.Close()
}
