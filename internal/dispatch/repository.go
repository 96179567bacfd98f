package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyDispatched is returned when the (topic, day) marker already
// exists, i.e. another trigger got there first.
var ErrAlreadyDispatched = errors.New("already dispatched for this day")

// DispatchLog is the per-day dispatch marker that makes the daily job
// idempotent against duplicated triggers.
type DispatchLog struct {
	ID     string    `json:"id" gorm:"primaryKey"`
	Topic  string    `json:"topic" gorm:"not null;uniqueIndex:idx_dispatch_topic_day"`
	Day    string    `json:"day" gorm:"not null;uniqueIndex:idx_dispatch_topic_day"` // YYYY-MM-DD
	SentAt time.Time `json:"sent_at"`
}

// LogRepository defines the interface for dispatch marker access
type LogRepository interface {
	// MarkDispatched check-and-sets the marker for (topic, day).
	MarkDispatched(topic, day string, at time.Time) error

	// ClearDispatched removes the marker so a failed send can be retried
	// by the next trigger.
	ClearDispatched(topic, day string) error
}

// gormLogRepository implements LogRepository using GORM
type gormLogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new instance of gormLogRepository
func NewLogRepository(db *gorm.DB) LogRepository {
	return &gormLogRepository{
		db: db,
	}
}

func (r *gormLogRepository) MarkDispatched(topic, day string, at time.Time) error {
	entry := &DispatchLog{
		ID:     uuid.New().String(),
		Topic:  topic,
		Day:    day,
		SentAt: at,
	}
	if err := r.db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyDispatched
		}
		return err
	}
	return nil
}

func (r *gormLogRepository) ClearDispatched(topic, day string) error {
	return r.db.Where("topic = ? AND day = ?", topic, day).Delete(&DispatchLog{}).Error
}
