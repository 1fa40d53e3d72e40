package emails_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/start-berlin/cockpit/pkg/emails"
)

func TestSignInInstructions(t *testing.T) {
	t.Parallel()

	html, err := emails.SignInInstructions("Jane", "jane.doe@start-berlin.com", "s3cret-Pass")
	require.NoError(t, err)

	assert.Contains(t, html, "Jane")
	assert.Contains(t, html, "jane.doe@start-berlin.com")
	assert.Contains(t, html, "s3cret-Pass")
}

func TestWorkflowApprovalEscapesURL(t *testing.T) {
	t.Parallel()

	html, err := emails.WorkflowApproval("Jane", "wf_1700000000_ab12cd34",
		"https://cockpit.start-berlin.com/approve?workflowId=wf_1700000000_ab12cd34&token=abc")
	require.NoError(t, err)

	assert.Contains(t, html, "wf_1700000000_ab12cd34")
	assert.Contains(t, html, "&amp;token=abc")
}

func TestWorkflowConfirmation(t *testing.T) {
	t.Parallel()

	html, err := emails.WorkflowConfirmation("Jane", "wf_1700000000_ab12cd34")
	require.NoError(t, err)

	assert.Contains(t, html, "approved")
	assert.Contains(t, html, "wf_1700000000_ab12cd34")
}
