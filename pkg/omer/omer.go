// Package omer resolves calendar dates to Omer count entries. The table for
// the current counting season ships inside the binary; dates outside it are
// not an error, they simply have no entry.
package omer

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

//go:embed omer_2025.json
var rawTable []byte

// Day is one entry of the Omer table.
type Day struct {
	DayOfOmer     int    `json:"dayOfOmer"`
	WeeksAndDays  string `json:"weeksAndDays"`
	HebrewDate    string `json:"hebrewDate"`
	GregorianDate string `json:"gregorianDate"` // YYYY-MM-DD
	Pronunciation string `json:"pronunciation"`
}

// Subject returns the email subject line for this day's notification.
func (d *Day) Subject() string {
	return fmt.Sprintf("Hora Judaica | Omer Count - Day %d", d.DayOfOmer)
}

// NotificationData returns the template payload for this day. Keys match the
// placeholders of the OneSignal email template.
func (d *Day) NotificationData() map[string]any {
	return map[string]any{
		"dayOfOmer":     d.DayOfOmer,
		"gregorianDate": d.GregorianDate,
		"hebrewDate":    d.HebrewDate,
		"weeksAndDays":  d.WeeksAndDays,
		"pronunciation": d.Pronunciation,
	}
}

// Calendar is an immutable date → Day lookup table.
type Calendar struct {
	byDate map[string]Day
}

// NewCalendar parses the embedded table.
func NewCalendar() (*Calendar, error) {
	return newCalendar(rawTable)
}

func newCalendar(raw []byte) (*Calendar, error) {
	var days []Day
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("parse omer table: %w", err)
	}
	byDate := make(map[string]Day, len(days))
	for _, d := range days {
		if _, ok := byDate[d.GregorianDate]; ok {
			return nil, fmt.Errorf("duplicate omer table entry for %s", d.GregorianDate)
		}
		byDate[d.GregorianDate] = d
	}
	return &Calendar{byDate: byDate}, nil
}

// DayFor returns the entry for the calendar date of t, or nil when t falls
// outside the table. Only the date part of t is significant; resolve t in the
// reference timezone before calling.
func (c *Calendar) DayFor(t time.Time) *Day {
	d, ok := c.byDate[t.Format("2006-01-02")]
	if !ok {
		return nil
	}
	return &d
}
