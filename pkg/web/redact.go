package web

import (
	"strings"

	"github.com/start-berlin/cockpit/pkg/models"
)

const redactedPlaceholder = "[REDACTED]"

var sensitiveKeyFragments = []string{"password", "secret", "token"}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)

	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}

	return false
}

func redactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			if sensitiveKey(key) {
				out[key] = redactedPlaceholder

				continue
			}

			out[key] = redactValue(inner)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = redactValue(inner)
		}

		return out
	default:
		return value
	}
}

// redactRun copies a run with credential-bearing fields in step results and
// the run result masked. Step outputs are persisted verbatim so replays see
// exactly what the first execution produced; the read API is where secrets
// like initial passwords stop.
func redactRun(run *models.WorkflowRun) *models.WorkflowRun {
	clone := *run

	clone.Steps = make([]*models.StepRecord, len(run.Steps))
	for i, step := range run.Steps {
		record := *step
		record.Result = redactValue(record.Result)
		clone.Steps[i] = &record
	}

	if run.Result != nil {
		if result, ok := redactValue(run.Result).(map[string]any); ok {
			clone.Result = result
		}
	}

	return &clone
}

func redactRuns(runs []*models.WorkflowRun) []*models.WorkflowRun {
	out := make([]*models.WorkflowRun, len(runs))
	for i, run := range runs {
		out[i] = redactRun(run)
	}

	return out
}
