package repository

import (
	"errors"
	"time"

	"horajudaica-backend/internal/subscription/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateEmail is returned by Create when the email is already
// registered. Callers treat it as "user exists, re-read and continue".
var ErrDuplicateEmail = errors.New("email already registered")

// ErrIdentityAlreadyLinked is returned when a OneSignal identity write would
// overwrite an existing linkage. The linkage is write-once.
var ErrIdentityAlreadyLinked = errors.New("onesignal identity already linked")

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user. Returns ErrDuplicateEmail on a unique
	// violation so concurrent signups for the same email can converge.
	Create(user *domain.User) error

	// FindByEmail returns the user with subscriptions preloaded, or nil.
	FindByEmail(email string) (*domain.User, error)

	// FindByOneSignalSubscriptionID resolves the unsubscribe lookup, or nil.
	FindByOneSignalSubscriptionID(id string) (*domain.User, error)

	// SetOneSignalIdentity stores the remote linkage exactly once.
	SetOneSignalIdentity(userID, oneSignalUserID, oneSignalSubscriptionID string) error
}

// userRepository implements UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) Create(user *domain.User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *userRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := r.db.Preload("Subscriptions").Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByOneSignalSubscriptionID(id string) (*domain.User, error) {
	var user domain.User
	err := r.db.Preload("Subscriptions").Where("one_signal_subscription_id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) SetOneSignalIdentity(userID, oneSignalUserID, oneSignalSubscriptionID string) error {
	res := r.db.Model(&domain.User{}).
		Where("id = ? AND one_signal_user_id IS NULL", userID).
		Updates(map[string]interface{}{
			"one_signal_user_id":         oneSignalUserID,
			"one_signal_subscription_id": oneSignalSubscriptionID,
			"updated_at":                 time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIdentityAlreadyLinked
	}
	return nil
}
