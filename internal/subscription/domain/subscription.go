package domain

import (
	"fmt"
	"time"
)

// Type is a subscription topic. The set is closed; unknown values are
// rejected at the API boundary.
type Type string

const (
	TypeOmerCount     Type = "omer-count"
	TypeWeeklyPortion Type = "weekly-portion"
	TypeSabbathTimes  Type = "sabbath-times"
)

// AllTypes lists every known topic. The OneSignal tag map always carries one
// entry per topic, so ordering here is irrelevant but completeness is not.
var AllTypes = []Type{TypeOmerCount, TypeWeeklyPortion, TypeSabbathTimes}

// ParseType validates a topic received from a client.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown subscription type %q", s)
}

// Subscription tracks one (user, topic) pair. Cancellation is soft: the
// record is never deleted, only flipped between active and cancelled.
// Invariant: Enabled implies UnsubscribedAt == nil.
type Subscription struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	UserID         string     `json:"user_id" gorm:"not null;uniqueIndex:idx_subscriptions_user_type"`
	Type           Type       `json:"type" gorm:"not null;uniqueIndex:idx_subscriptions_user_type"`
	Enabled        bool       `json:"enabled" gorm:"not null"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
}

// Cancelled reports whether the subscription sits in the soft-cancelled
// state, i.e. it can be reactivated by a new subscribe request.
func (s *Subscription) Cancelled() bool {
	return !s.Enabled && s.UnsubscribedAt != nil
}
