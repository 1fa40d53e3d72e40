package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

// RunRepository stores workflow runs; step records and suspension metadata
// live in JSONB columns since they are only ever read and written as a unit
// by the owning run.
type RunRepository struct {
	db *sql.DB
}

const runColumns = `id, workflow_id, triggering_event_id, idempotency_key, status,
	steps, suspended_on, result, error, created_at, updated_at`

func (rr *RunRepository) SaveRun(ctx context.Context, run *models.WorkflowRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	var suspendedOn []byte
	if run.SuspendedOn != nil {
		suspendedOn, err = json.Marshal(run.SuspendedOn)
		if err != nil {
			return persistence.NewRunError("SaveRun", run.ID, err)
		}
	}

	var result []byte
	if run.Result != nil {
		result, err = json.Marshal(run.Result)
		if err != nil {
			return persistence.NewRunError("SaveRun", run.ID, err)
		}
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	run.UpdatedAt = time.Now().UTC()

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			steps = EXCLUDED.steps,
			suspended_on = EXCLUDED.suspended_on,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, run.ID, run.WorkflowID, run.TriggeringEventID, run.IdempotencyKey, string(run.Status),
		steps, nullable(suspendedOn), nullable(result), run.Error, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		// The partial unique index on (workflow_id, idempotency_key)
		// rejects a second non-terminal run for the same key.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "idx_workflow_runs_dedup" {
			return persistence.ErrDuplicateActiveRun
		}

		return persistence.NewRunError("SaveRun", run.ID, err)
	}

	return nil
}

func nullable(data []byte) any {
	if len(data) == 0 {
		return nil
	}

	return data
}

func (rr *RunRepository) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	row := rr.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, persistence.NewRunError("RunByID", id, err)
	}

	return run, nil
}

func (rr *RunRepository) ActiveRun(ctx context.Context, workflowID, idempotencyKey string) (*models.WorkflowRun, error) {
	row := rr.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE workflow_id = $1 AND idempotency_key = $2 AND status IN ('running', 'waiting')
		ORDER BY created_at DESC
		LIMIT 1
	`, workflowID, idempotencyKey)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, &persistence.RunError{Op: "ActiveRun", WorkflowID: workflowID, Err: err}
	}

	return run, nil
}

func (rr *RunRepository) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`, workflowID)
	if err != nil {
		return nil, &persistence.RunError{Op: "RunsByWorkflow", WorkflowID: workflowID, Err: err}
	}
	defer rows.Close()

	return collectRuns(rows)
}

func (rr *RunRepository) Runs(ctx context.Context) ([]*models.WorkflowRun, error) {
	rows, err := rr.db.QueryContext(ctx, `SELECT `+runColumns+` FROM workflow_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, persistence.NewRunError("Runs", "", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.WorkflowRun, error) {
	var (
		run         models.WorkflowRun
		status      string
		steps       []byte
		suspendedOn []byte
		result      []byte
	)

	err := row.Scan(&run.ID, &run.WorkflowID, &run.TriggeringEventID, &run.IdempotencyKey,
		&status, &steps, &suspendedOn, &result, &run.Error, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)

	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return nil, err
	}

	if len(suspendedOn) > 0 {
		run.SuspendedOn = &models.Suspension{}
		if err := json.Unmarshal(suspendedOn, run.SuspendedOn); err != nil {
			return nil, err
		}
	}

	if len(result) > 0 {
		if err := json.Unmarshal(result, &run.Result); err != nil {
			return nil, err
		}
	}

	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*models.WorkflowRun, error) {
	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
