package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeSyncSucceeded NotificationType = "sync_succeeded"
	TypeSyncRejected  NotificationType = "sync_rejected"
	TypeSyncFailed    NotificationType = "sync_failed"
	TypeConflict      NotificationType = "conflict_detected"
)

// AllNotificationTypes returns all available notification types
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeSyncSucceeded,
		TypeSyncRejected,
		TypeSyncFailed,
		TypeConflict,
	}
}

// Level decides how the UI presents a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a transient, user-visible message. It is not stored.
type Notification struct {
	ID        string                 `json:"id"`
	Type      NotificationType       `json:"type"`
	Level     Level                  `json:"level"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
