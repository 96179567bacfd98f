package domain

import "time"

// User is a subscriber identified by email. The OneSignal fields are nil
// until the remote identity has been created, and are written exactly once.
type User struct {
	ID    string `json:"id" gorm:"primaryKey"`
	Email string `json:"email" gorm:"uniqueIndex;not null"`

	OneSignalUserID         *string `json:"onesignal_user_id,omitempty"`
	OneSignalSubscriptionID *string `json:"onesignal_subscription_id,omitempty" gorm:"uniqueIndex"`

	Subscriptions []Subscription `json:"subscriptions" gorm:"foreignKey:UserID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubscriptionOf returns the user's subscription for the given topic, or nil.
// At most one exists per topic (unique index on user_id + type).
func (u *User) SubscriptionOf(t Type) *Subscription {
	for i := range u.Subscriptions {
		if u.Subscriptions[i].Type == t {
			return &u.Subscriptions[i]
		}
	}
	return nil
}

// Linked reports whether the user already has a OneSignal identity attached.
func (u *User) Linked() bool {
	return u.OneSignalUserID != nil && u.OneSignalSubscriptionID != nil
}
