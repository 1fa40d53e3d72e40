// Package google adapts the Google Workspace Admin SDK to the identity
// provider contract.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/start-berlin/cockpit/pkg/providers"
	directory "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DirectoryProvider implements providers.IdentityProvider against the Admin
// SDK directory API using domain-wide delegation.
type DirectoryProvider struct {
	service *directory.Service
}

// NewDirectoryProvider builds the Admin SDK client. Credentials come from
// Application Default Credentials; subject is the admin account the service
// account impersonates.
func NewDirectoryProvider(ctx context.Context, subject string) (*DirectoryProvider, error) {
	service, err := directory.NewService(ctx,
		option.WithScopes(
			directory.AdminDirectoryUserScope,
			directory.AdminDirectoryGroupScope,
		),
		option.ImpersonateCredentials(subject),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory service: %w", err)
	}

	return &DirectoryProvider{service: service}, nil
}

func NewDirectoryProviderWithService(service *directory.Service) *DirectoryProvider {
	return &DirectoryProvider{service: service}
}

func (dp *DirectoryProvider) CreateUser(ctx context.Context, user providers.NewUser) error {
	_, err := dp.service.Users.Insert(&directory.User{
		Name: &directory.UserName{
			GivenName:  user.GivenName,
			FamilyName: user.FamilyName,
		},
		PrimaryEmail:              user.PrimaryEmail,
		RecoveryEmail:             user.RecoveryEmail,
		Password:                  user.Password,
		ChangePasswordAtNextLogin: user.ForcePasswordChange,
	}).Context(ctx).Do()
	if err != nil {
		return mapError("failed to create user", err)
	}

	return nil
}

func (dp *DirectoryProvider) CreateGroup(ctx context.Context, group providers.NewGroup) error {
	_, err := dp.service.Groups.Insert(&directory.Group{
		Email:       group.Email,
		Name:        group.Name,
		Description: group.Description,
	}).Context(ctx).Do()
	if err != nil {
		return mapError("failed to create group", err)
	}

	return nil
}

// mapError translates the Admin SDK's duplicate-entity responses into
// providers.ErrAlreadyExists and keeps everything else as-is (transient,
// retried at the step level).
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusConflict || strings.Contains(apiErr.Message, "Entity already exists") {
			return providers.ErrAlreadyExists
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
