package repository

import (
	"errors"
	"time"

	"horajudaica-backend/internal/subscription/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateSubscription is returned when a (user, topic) pair already has
// a subscription record.
var ErrDuplicateSubscription = errors.New("subscription already exists for this topic")

// SubscriptionRepository defines the interface for subscription data access.
// State transitions are partial updates so concurrent requests never clobber
// fields they do not own.
type SubscriptionRepository interface {
	// Create inserts a new active subscription linked to its user.
	Create(sub *domain.Subscription) error

	// Reactivate flips a cancelled subscription back to active.
	Reactivate(id string) error

	// MarkUnsubscribed soft-cancels the subscription.
	MarkUnsubscribed(id string, at time.Time) error

	// MarkSent stamps the time a notification was dispatched for it.
	MarkSent(id string, at time.Time) error
}

// gormSubscriptionRepository implements SubscriptionRepository using GORM
type gormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new instance of gormSubscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &gormSubscriptionRepository{
		db: db,
	}
}

func (r *gormSubscriptionRepository) Create(sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now()
	}
	if err := r.db.Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateSubscription
		}
		return err
	}
	return nil
}

func (r *gormSubscriptionRepository) Reactivate(id string) error {
	return r.db.Model(&domain.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"enabled":         true,
			"unsubscribed_at": nil,
		}).Error
}

func (r *gormSubscriptionRepository) MarkUnsubscribed(id string, at time.Time) error {
	return r.db.Model(&domain.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"enabled":         false,
			"unsubscribed_at": at,
		}).Error
}

func (r *gormSubscriptionRepository) MarkSent(id string, at time.Time) error {
	return r.db.Model(&domain.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sent_at": at,
		}).Error
}
