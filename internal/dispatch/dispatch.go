// Package dispatch runs the daily Omer broadcast: resolve today in the
// reference timezone, look up the table entry, and send one segment-targeted
// notification that OneSignal fans out to all active subscribers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"horajudaica-backend/internal/subscription/domain"
	"horajudaica-backend/pkg/omer"
)

// Sender is the provider operation the job needs. pkg/onesignal implements it.
type Sender interface {
	SendToSegment(ctx context.Context, segment, templateID, subject string, data map[string]any) error
}

// Calendar resolves a date to an Omer entry, nil outside the table.
type Calendar interface {
	DayFor(t time.Time) *omer.Day
}

// Job is the daily lookup-and-send unit of work.
type Job struct {
	calendar   Calendar
	sender     Sender
	markers    LogRepository
	templateID string
	segment    string
	loc        *time.Location

	now func() time.Time
}

// NewJob creates a new dispatch job.
func NewJob(calendar Calendar, sender Sender, markers LogRepository, templateID, segment string, loc *time.Location) *Job {
	return &Job{
		calendar:   calendar,
		sender:     sender,
		markers:    markers,
		templateID: templateID,
		segment:    segment,
		loc:        loc,
		now:        time.Now,
	}
}

// Run performs one dispatch. A date outside the Omer table and a day that
// was already dispatched are both successful no-ops; the returned message is
// the status payload consumed by the trigger's logs.
func (j *Job) Run(ctx context.Context) (string, error) {
	today := j.now().In(j.loc)
	day := j.calendar.DayFor(today)
	if day == nil {
		return fmt.Sprintf("No Omer entry for %s, nothing to send.", today.Format("2006-01-02")), nil
	}

	dayKey := today.Format("2006-01-02")
	if err := j.markers.MarkDispatched(string(domain.TypeOmerCount), dayKey, j.now()); err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			return fmt.Sprintf("Omer day %d already dispatched, skipping.", day.DayOfOmer), nil
		}
		return "", fmt.Errorf("mark dispatched: %w", err)
	}

	data := day.NotificationData()
	data["subscriptionType"] = string(domain.TypeOmerCount)
	if err := j.sender.SendToSegment(ctx, j.segment, j.templateID, day.Subject(), data); err != nil {
		// Release the marker so the next trigger can retry the day.
		if clearErr := j.markers.ClearDispatched(string(domain.TypeOmerCount), dayKey); clearErr != nil {
			log.Printf("[Dispatch] Failed to clear marker for %s: %v", dayKey, clearErr)
		}
		return "", fmt.Errorf("send segment notification: %w", err)
	}

	return fmt.Sprintf("Emails sent for Omer day %d.", day.DayOfOmer), nil
}
