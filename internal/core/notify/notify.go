package notify

import (
	"context"
	"time"
)

type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is a user-facing record of a terminal job state change.
// Created once, mutated only by is_read toggles, deleted only by the user.
type Notification struct {
	ID                string
	RecipientID       string
	Title             string
	Message           string
	Type              Type
	RelatedEntityID   string
	RelatedEntityType string
	IsRead            bool
	CreatedAt         time.Time
}

// Store persists notifications.
type Store interface {
	InsertNotification(ctx context.Context, n *Notification) error
}
