package model

import "time"

// Well-known notification categories. The set is open: the server may send
// any tag, and unknown tags render like CategoryGeneral.
const (
	CategoryAchievement = "achievement"
	CategoryChallenge   = "challenge"
	CategoryBadge       = "badge"
	CategoryGeneral     = "general"
)

// Notification is a single server-originated event delivered over the
// push channel and surfaced to the user.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Category is an open tag interpreted only by presentation
	// (e.g. "achievement", "challenge", "badge", "general").
	Category string `json:"category"`

	// Title is the short headline.
	Title string `json:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"is_read"`

	// RewardPoints is the gamification award attached to the event,
	// zero when the event carries none.
	RewardPoints int `json:"reward_points,omitempty"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
