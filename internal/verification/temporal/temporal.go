// Package temporal reconciles a photo's EXIF capture time with the class
// date and time the teacher declared.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"classlog/internal/verification/models"
)

const (
	// DayToleranceDays absorbs timezone slack between device clock and declaration.
	DayToleranceDays = 1
	// HourToleranceHours is the allowed hour-of-day gap on the declared date.
	HourToleranceHours = 2
)

const noExifNote = "no EXIF capture time available; date not verified from photo metadata"

var exifLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05Z0700", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006:01:02 15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{time.DateOnly, false},
	{"2006:01:02", false},
}

var clockLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3 PM",
	"3PM",
	"15:04:05",
	"15:04",
}

// Capture is a parsed EXIF timestamp. HasClock is false for date-only
// values, whose zero hour carries no information.
type Capture struct {
	At       time.Time
	HasClock bool
}

// ParseExif parses the capture timestamp in the ISO-8601 and EXIF forms
// cameras and upload clients commonly produce. The wall clock is kept as
// written.
func ParseExif(raw string) (Capture, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Capture{}, false
	}
	for _, l := range exifLayouts {
		if t, err := time.Parse(l.layout, raw); err == nil {
			return Capture{At: t, HasClock: l.hasClock}, true
		}
	}
	return Capture{}, false
}

// ParseClock returns the hour of day for a declared class time in 12-hour
// ("10:00 AM", "10am") or 24-hour ("14:00") notation.
func ParseClock(raw string) (int, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}

// Reconcile compares the EXIF timestamp against the declared date and
// optional time. It never fails: missing or unreadable EXIF is reported as
// no_exif.
func Reconcile(exif string, declaredDate time.Time, declaredTime string) models.DateValidation {
	capture, ok := ParseExif(exif)
	if !ok {
		return models.DateValidation{DateMatch: models.DateMatchNoExif, Notes: noExifNote}
	}

	taken := capture.At
	takenDay := civilDay(taken)
	declaredDay := civilDay(declaredDate)
	delta := int(takenDay.Sub(declaredDay).Hours() / 24)

	switch {
	case abs(delta) > DayToleranceDays:
		return models.DateValidation{
			DateMatch: models.DateMatchMismatch,
			Notes: fmt.Sprintf("photo taken %d days %s declared date (%s vs %s)",
				abs(delta), direction(delta),
				takenDay.Format(time.DateOnly), declaredDay.Format(time.DateOnly)),
		}
	case delta != 0:
		return models.DateValidation{
			DateMatch: models.DateMatchMatch,
			Notes: fmt.Sprintf("photo date %s is within %d day of declared date %s (timezone tolerance applied)",
				takenDay.Format(time.DateOnly), DayToleranceDays, declaredDay.Format(time.DateOnly)),
		}
	}

	declaredHour, ok := ParseClock(declaredTime)
	if !ok || !capture.HasClock {
		return models.DateValidation{
			DateMatch: models.DateMatchMatch,
			Notes:     "photo date matches declared date",
		}
	}

	hourDelta := abs(taken.Hour() - declaredHour)
	if hourDelta <= HourToleranceHours {
		return models.DateValidation{
			DateMatch: models.DateMatchMatch,
			Notes:     fmt.Sprintf("photo date and time match declared class time (%d hour difference)", hourDelta),
		}
	}
	return models.DateValidation{
		DateMatch: models.DateMatchMismatch,
		Notes: fmt.Sprintf("photo taken at %02d:00, %d hours from declared class time %s",
			taken.Hour(), hourDelta, strings.TrimSpace(declaredTime)),
	}
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func direction(delta int) string {
	if delta > 0 {
		return "after"
	}
	return "before"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
