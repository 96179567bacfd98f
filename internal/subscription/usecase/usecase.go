package usecase

import (
	"context"
	"errors"
	"time"

	"horajudaica-backend/internal/subscription/domain"
	"horajudaica-backend/pkg/geo"
	"horajudaica-backend/pkg/omer"
	"horajudaica-backend/pkg/onesignal"
)

// State-conflict and lookup errors surfaced to the HTTP layer. Anything else
// coming out of the coordinator is an upstream failure and maps to a 500.
var (
	ErrAlreadySubscribed    = errors.New("already subscribed")
	ErrAlreadyUnsubscribed  = errors.New("subscription already cancelled")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// SubscriptionCoordinator defines the interface for the subscription
// lifecycle business logic: it keeps the local user/subscription records and
// the OneSignal identity consistent across subscribe, re-subscribe and
// unsubscribe.
type SubscriptionCoordinator interface {
	// Subscribe handles a subscribe request for an already-validated
	// topic and email.
	Subscribe(ctx context.Context, req SubscribeRequest) error

	// Unsubscribe soft-cancels the subscription identified by topic and
	// OneSignal channel-subscription id.
	Unsubscribe(ctx context.Context, req UnsubscribeRequest) error
}

// SubscribeRequest carries the validated subscribe input. Geo is an optional
// best-effort hint set for identity creation.
type SubscribeRequest struct {
	Type  domain.Type
	Email string
	Geo   *geo.Data
}

// UnsubscribeRequest carries the validated unsubscribe input.
type UnsubscribeRequest struct {
	Type                    domain.Type
	OneSignalSubscriptionID string
}

// Directory is the notification-provider contract the coordinator depends
// on. pkg/onesignal implements it; tests substitute a fake. Every call is a
// network call and is treated as fallible.
type Directory interface {
	CreateIdentity(ctx context.Context, p onesignal.CreateIdentityParams) (*onesignal.Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (*onesignal.Identity, error)
	UpdateTags(ctx context.Context, oneSignalUserID string, tags map[string]string) error
	SendToSubscription(ctx context.Context, subscriptionID, templateID, subject string, data map[string]any) error
}

// Calendar resolves a date to an Omer entry, nil outside the table.
type Calendar interface {
	DayFor(t time.Time) *omer.Day
}
