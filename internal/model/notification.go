package model

import "time"

// NotificationType enumerates what a notification reports.
type NotificationType string

const (
	NotificationContribution NotificationType = "contribution"
	NotificationMilestone    NotificationType = "milestone"
	NotificationReminder     NotificationType = "reminder"
	NotificationCompletion   NotificationType = "completion"
	NotificationWarning      NotificationType = "warning"
)

// Priority orders notifications for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is a user-visible event produced by mutation handlers.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	ChallengeID string           `json:"challenge_id,omitempty"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
	Read        bool             `json:"read"`
	Priority    Priority         `json:"priority"`
}
