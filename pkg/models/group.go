package models

import "time"

// Group is a directory group. Slug doubles as the Slack channel name and the
// local part of the group's email address.
type Group struct {
	ID        string    `json:"id"   validate:"required"`
	Name      string    `json:"name" validate:"required,min=3"`
	Slug      string    `json:"slug" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}
