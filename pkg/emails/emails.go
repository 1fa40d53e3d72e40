// Package emails renders the transactional emails sent by the provisioning
// workflows.
package emails

import (
	"fmt"
	"html/template"
	"strings"
)

var signInInstructions = template.Must(template.New("signin").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Welcome to START Berlin, {{.FirstName}}!</h1>
  <p>Your company account is ready. Sign in with:</p>
  <p><strong>Email:</strong> {{.CompanyEmail}}<br>
  <strong>Initial password:</strong> {{.InitialPassword}}</p>
  <p>You will be asked to choose a new password on first login.</p>
</div>
`))

// SignInInstructions renders the welcome email carrying the one-time
// credentials for a freshly provisioned account.
func SignInInstructions(firstName, companyEmail, initialPassword string) (string, error) {
	return render(signInInstructions, map[string]string{
		"FirstName":       firstName,
		"CompanyEmail":    companyEmail,
		"InitialPassword": initialPassword,
	})
}

var workflowApproval = template.Must(template.New("approval").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Approval required</h1>
  <p>Hi {{.FirstName}},</p>
  <p>Workflow <code>{{.WorkflowID}}</code> is waiting for your approval.</p>
  <p><a href="{{.ApprovalURL}}">Approve this workflow</a></p>
  <p>This link expires in one hour.</p>
</div>
`))

// WorkflowApproval renders the approval-request email with its signed link.
func WorkflowApproval(firstName, workflowID, approvalURL string) (string, error) {
	return render(workflowApproval, map[string]string{
		"FirstName":   firstName,
		"WorkflowID":  workflowID,
		"ApprovalURL": approvalURL,
	})
}

var workflowConfirmation = template.Must(template.New("confirmation").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h1>Workflow approved</h1>
  <p>Hi {{.FirstName}},</p>
  <p>Workflow <code>{{.WorkflowID}}</code> was approved successfully.</p>
</div>
`))

// WorkflowConfirmation renders the post-approval confirmation email.
func WorkflowConfirmation(firstName, workflowID string) (string, error) {
	return render(workflowConfirmation, map[string]string{
		"FirstName":  firstName,
		"WorkflowID": workflowID,
	})
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var builder strings.Builder

	if err := tmpl.Execute(&builder, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", tmpl.Name(), err)
	}

	return builder.String(), nil
}
