package workflows

import (
	"context"
	"fmt"

	"github.com/start-berlin/cockpit/pkg/emails"
	"github.com/start-berlin/cockpit/pkg/events"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/providers"
	"github.com/start-berlin/cockpit/pkg/workflow"
)

type credentials struct {
	CompanyEmail    string `json:"companyEmail"`
	InitialPassword string `json:"initialPassword"`
}

type accountResult struct {
	AlreadyExisted bool `json:"alreadyExisted"`
}

// OnboardNewUser provisions a company account for a new member: it derives
// the company email, creates the workspace identity, records the member in
// the directory and delivers sign-in instructions. The personal email is the
// dedup key, so replayed signup events do not start a second run.
func OnboardNewUser(services *Services) *workflow.Definition {
	return &workflow.Definition{
		ID:      "onboard-new-user",
		Trigger: events.UserCreatedEvent,
		IdempotencyKey: func(event events.Event) string {
			if created, ok := event.(*events.UserCreated); ok {
				return created.PersonalEmail
			}

			return ""
		},
		Handler: func(ctx context.Context, run *workflow.Context) (map[string]any, error) {
			created, ok := run.Event().(*events.UserCreated)
			if !ok {
				return nil, workflow.NonRetriable(fmt.Errorf("unexpected event %T", run.Event()))
			}

			rawCreds, err := run.RunStep(ctx, "generate-credentials", func(ctx context.Context) (any, error) {
				password, err := GenerateRandomPassword()
				if err != nil {
					return nil, err
				}

				return credentials{
					CompanyEmail:    DeriveCompanyEmail(created.FirstName, created.LastName, services.Config.Domain),
					InitialPassword: password,
				}, nil
			})
			if err != nil {
				return nil, err
			}

			var creds credentials
			if err := workflow.DecodeResult(rawCreds, &creds); err != nil {
				return nil, workflow.NonRetriable(err)
			}

			rawAccount, err := run.RunStep(ctx, "create-workspace-user", func(ctx context.Context) (any, error) {
				err := services.Identity.CreateUser(ctx, providers.NewUser{
					GivenName:           created.FirstName,
					FamilyName:          created.LastName,
					PrimaryEmail:        creds.CompanyEmail,
					RecoveryEmail:       created.PersonalEmail,
					Password:            creds.InitialPassword,
					ForcePasswordChange: true,
				})
				if providers.IsAlreadyExists(err) {
					return accountResult{AlreadyExisted: true}, nil
				}
				if err != nil {
					return nil, err
				}

				return accountResult{}, nil
			})
			if err != nil {
				return nil, err
			}

			var account accountResult
			if err := workflow.DecodeResult(rawAccount, &account); err != nil {
				return nil, workflow.NonRetriable(err)
			}

			status := models.UserStatus(created.Status)
			if status == "" {
				status = models.UserStatusOnboarding
			}

			rawUserID, err := run.RunStep(ctx, "upsert-directory-user", func(ctx context.Context) (any, error) {
				return services.Persistence.UserRepository().UpsertByEmail(ctx, &models.User{
					Email:         creds.CompanyEmail,
					FirstName:     created.FirstName,
					LastName:      created.LastName,
					Name:          created.FirstName + " " + created.LastName,
					PersonalEmail: created.PersonalEmail,
					BatchNumber:   created.BatchNumber,
					Department:    created.Department,
					Status:        status,
				})
			})
			if err != nil {
				return nil, err
			}

			// A pre-existing workspace account means the credentials we
			// generated were never applied, so mailing them would only
			// mislead the member.
			if !account.AlreadyExisted {
				_, err = run.RunStep(ctx, "send-welcome-email", func(ctx context.Context) (any, error) {
					html, err := emails.SignInInstructions(created.FirstName, creds.CompanyEmail, creds.InitialPassword)
					if err != nil {
						return nil, workflow.NonRetriable(err)
					}

					return nil, services.Mailer.Send(ctx, providers.Email{
						From:    services.Config.FromAddress,
						To:      created.PersonalEmail,
						Subject: "Your START Berlin account",
						HTML:    html,
					})
				})
				if err != nil {
					return nil, err
				}
			}

			return map[string]any{
				"companyEmail":   creds.CompanyEmail,
				"userId":         rawUserID,
				"accountCreated": !account.AlreadyExisted,
			}, nil
		},
	}
}
