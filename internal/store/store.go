package store

import (
	"context"

	"github.com/nhle/campus-client/internal/model"
)

// NotificationFilter controls filtering and pagination for history queries.
type NotificationFilter struct {
	Category   *string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Store defines the persistence interface for notification history.
// The push channel's in-memory queue is the bounded live view; the
// store keeps everything delivered so history survives restarts.
type Store interface {
	CreateNotification(ctx context.Context, n model.Notification) error
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	GetUnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	PruneNotifications(ctx context.Context, keep int) error

	Close() error
}
