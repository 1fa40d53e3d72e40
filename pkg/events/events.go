// Package events defines the event types exchanged between the Cockpit UI,
// inbound webhooks and the provisioning workflows.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single bus topic all Cockpit events are published on.
const Topic = "cockpit.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	UserCreatedEvent      EventType = "user.created"
	GroupCreatedEvent     EventType = "group.created"
	SlackUserJoinedEvent  EventType = "slack/user.joined"
	UserUpdatedEvent      EventType = "cockpit/user.updated"
	WorkflowStartEvent    EventType = "test/workflow.start"
	WorkflowApprovalEvent EventType = "test/workflow.approval"
)

// All lists every event type the bus carries. Workers subscribe to the full
// set: suspended runs can wait on types no definition is triggered by.
func All() []EventType {
	return []EventType{
		UserCreatedEvent,
		GroupCreatedEvent,
		SlackUserJoinedEvent,
		UserUpdatedEvent,
		WorkflowStartEvent,
		WorkflowApprovalEvent,
	}
}

// Known reports whether the event type is part of the catalog.
func Known(eventType EventType) bool {
	_, err := New(eventType)

	return err == nil
}

// Event is implemented by every payload carried on the bus.
type Event interface {
	GetType() EventType
	GetID() string
	GetTimestamp() time.Time
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (b BaseEvent) GetID() string           { return b.ID }
func (b BaseEvent) GetTimestamp() time.Time { return b.Timestamp }

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// UserCreated is emitted when an admin adds a new member.
type UserCreated struct {
	BaseEvent

	FirstName     string `json:"firstName"     validate:"required"`
	LastName      string `json:"lastName"      validate:"required"`
	PersonalEmail string `json:"personalEmail" validate:"required,email"`
	BatchNumber   int    `json:"batchNumber"   validate:"gte=0"`
	Department    string `json:"department"`
	Status        string `json:"status"`
}

func (e UserCreated) GetType() EventType { return UserCreatedEvent }

// GroupCreated is emitted when an admin creates a group. Integrations select
// which external resources get provisioned alongside the directory row.
type GroupCreated struct {
	BaseEvent

	GroupID      string            `json:"id"   validate:"required"`
	Name         string            `json:"name" validate:"required"`
	Slug         string            `json:"slug" validate:"required"`
	Integrations GroupIntegrations `json:"integrations"`
}

type GroupIntegrations struct {
	Slack bool `json:"slack"`
	Email bool `json:"email"`
}

func (e GroupCreated) GetType() EventType { return GroupCreatedEvent }

// SlackUserJoined mirrors the Slack team_join webhook callback.
type SlackUserJoined struct {
	BaseEvent

	SlackUserID string `json:"id" validate:"required"`
}

func (e SlackUserJoined) GetType() EventType { return SlackUserJoinedEvent }

// UserUpdated triggers downstream account synchronization for a directory user.
type UserUpdated struct {
	BaseEvent

	UserID string `json:"id" validate:"required"`
}

func (e UserUpdated) GetType() EventType { return UserUpdatedEvent }

// WorkflowStart kicks off the generic human-in-the-loop approval workflow.
type WorkflowStart struct {
	BaseEvent

	Email     string `json:"email"     validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
}

func (e WorkflowStart) GetType() EventType { return WorkflowStartEvent }

// WorkflowApproval resumes a suspended approval workflow.
type WorkflowApproval struct {
	BaseEvent

	Email      string `json:"email"      validate:"required,email"`
	FirstName  string `json:"firstName"`
	WorkflowID string `json:"workflowId" validate:"required"`
	ApprovedAt string `json:"approvedAt"`
}

func (e WorkflowApproval) GetType() EventType { return WorkflowApprovalEvent }

// New returns an empty event value for the given type, ready to be
// unmarshaled into. Unknown types are an error so that the bus boundary
// rejects payloads nothing subscribes to.
func New(eventType EventType) (Event, error) {
	switch eventType {
	case UserCreatedEvent:
		return &UserCreated{}, nil
	case GroupCreatedEvent:
		return &GroupCreated{}, nil
	case SlackUserJoinedEvent:
		return &SlackUserJoined{}, nil
	case UserUpdatedEvent:
		return &UserUpdated{}, nil
	case WorkflowStartEvent:
		return &WorkflowStart{}, nil
	case WorkflowApprovalEvent:
		return &WorkflowApproval{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// Decode builds a typed event from a raw data payload, stamping a fresh
// identity. Used by the HTTP intake where callers only provide {name, data}.
func Decode(eventType EventType, data []byte) (Event, error) {
	event, err := New(eventType)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", eventType, err)
	}

	base := NewBaseEvent(eventType)

	switch e := event.(type) {
	case *UserCreated:
		e.BaseEvent = base
	case *GroupCreated:
		e.BaseEvent = base
	case *SlackUserJoined:
		e.BaseEvent = base
	case *UserUpdated:
		e.BaseEvent = base
	case *WorkflowStart:
		e.BaseEvent = base
	case *WorkflowApproval:
		e.BaseEvent = base
	}

	return event, nil
}

// Data flattens an event back into the generic payload map used for
// correlation predicates in waitForEvent.
func Data(event Event) map[string]any {
	raw, err := json.Marshal(event)
	if err != nil {
		return map[string]any{}
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]any{}
	}

	return data
}
