// Package models defines the core domain models for the Cockpit directory
// and the provisioning workflow runtime.
package models

import "time"

// UserStatus tracks where a member is in the onboarding lifecycle.
type UserStatus string

const (
	UserStatusOnboarding UserStatus = "onboarding"
	UserStatusActive     UserStatus = "active"
	UserStatusAlumni     UserStatus = "alumni"
)

// User is a directory member. Email is the company address and the natural
// unique key for upserts.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"          validate:"required,email"`
	FirstName     string     `json:"first_name"     validate:"required"`
	LastName      string     `json:"last_name"      validate:"required"`
	Name          string     `json:"name"`
	PersonalEmail string     `json:"personal_email" validate:"required,email"`
	BatchNumber   int        `json:"batch_number"`
	Department    string     `json:"department,omitempty"`
	Status        UserStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
