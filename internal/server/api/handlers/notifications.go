package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/notify"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api/middleware"
	"github.com/danielgtaylor/huma/v2"
)

type NotificationsHandler struct {
	store *database.Store
}

func NewNotificationsHandler(store *database.Store) *NotificationsHandler {
	return &NotificationsHandler{store: store}
}

type NotificationBody struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	Type              string    `json:"type" enum:"info,success,warning,error"`
	RelatedEntityID   string    `json:"related_entity_id,omitempty"`
	RelatedEntityType string    `json:"related_entity_type,omitempty"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         time.Time `json:"created_at"`
}

func newNotificationBody(n *notify.Notification) NotificationBody {
	return NotificationBody{
		ID:                n.ID,
		Title:             n.Title,
		Message:           n.Message,
		Type:              string(n.Type),
		RelatedEntityID:   n.RelatedEntityID,
		RelatedEntityType: n.RelatedEntityType,
		IsRead:            n.IsRead,
		CreatedAt:         n.CreatedAt,
	}
}

type ListNotificationsInput struct {
	Unread bool `query:"unread" doc:"Only unread notifications"`
	Limit  int  `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Max results"`
	Offset int  `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

type ListNotificationsBody struct {
	Notifications []NotificationBody `json:"notifications"`
	UnreadCount   int64              `json:"unread_count"`
}

type ListNotificationsOutput struct {
	Body ListNotificationsBody
}

func (h *NotificationsHandler) List(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
	recipient := middleware.GetUserID(ctx)

	items, err := h.store.ListNotifications(ctx, database.ListNotificationsParams{
		RecipientID: recipient,
		UnreadOnly:  input.Unread,
		Limit:       int32(input.Limit),
		Offset:      int32(input.Offset),
	})
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	unread, err := h.store.CountUnreadNotifications(ctx, recipient)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	out := make([]NotificationBody, 0, len(items))
	for i := range items {
		out = append(out, newNotificationBody(&items[i]))
	}
	return &ListNotificationsOutput{Body: ListNotificationsBody{
		Notifications: out,
		UnreadCount:   unread,
	}}, nil
}

type NotificationIDInput struct {
	ID string `path:"id" doc:"Notification ID"`
}

type StatusBody struct {
	Status string `json:"status" doc:"Operation result"`
}

type StatusOutput struct {
	Body StatusBody
}

func (h *NotificationsHandler) MarkRead(ctx context.Context, input *NotificationIDInput) (*StatusOutput, error) {
	err := h.store.MarkNotificationRead(ctx, input.ID, middleware.GetUserID(ctx))
	if err != nil {
		if errors.Is(err, database.ErrNotificationNotFound) {
			return nil, huma.Error404NotFound("notification not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "read"}}, nil
}

type MarkAllReadBody struct {
	Updated int64 `json:"updated" doc:"Notifications marked read"`
}

type MarkAllReadOutput struct {
	Body MarkAllReadBody
}

func (h *NotificationsHandler) MarkAllRead(ctx context.Context, _ *struct{}) (*MarkAllReadOutput, error) {
	updated, err := h.store.MarkAllNotificationsRead(ctx, middleware.GetUserID(ctx))
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &MarkAllReadOutput{Body: MarkAllReadBody{Updated: updated}}, nil
}

func (h *NotificationsHandler) Delete(ctx context.Context, input *NotificationIDInput) (*StatusOutput, error) {
	err := h.store.DeleteNotification(ctx, input.ID, middleware.GetUserID(ctx))
	if err != nil {
		if errors.Is(err, database.ErrNotificationNotFound) {
			return nil, huma.Error404NotFound("notification not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "deleted"}}, nil
}
