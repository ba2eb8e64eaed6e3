package util

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Datetime related utility functions.
// General convention for date Functions - suffix Z if utc based, no suffix if localTime.
const (
	DATETIME_FORMAT_YYYYMMDD_HYPHEN string = "2006-01-02"
	DATETIME_FORMAT_DB              string = "2006-01-02 15:04:05"
)

var ErrInvalidTime = errors.New("invalid time, expected RFC3339, YYYY-MM-DD or unix seconds")

const (
	DefaultTrendDays = 30
)

// TimeNowZ Return current time in UTC. Should be used everywhere to avoid local timezone.
func TimeNowZ() time.Time {
	return time.Now().UTC()
}

// DaysBetween fractional days elapsed from 'from' to 'to'. Negative when 'to' is before 'from'.
func DaysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// ParseDateZ parses YYYY-MM-DD as UTC midnight.
func ParseDateZ(date string) (time.Time, error) {
	return time.ParseInLocation(DATETIME_FORMAT_YYYYMMDD_HYPHEN, date, time.UTC)
}

// GetWindowOrDefault returns [from, to] in UTC. A zero 'to' defaults to current time and a
// zero 'from' defaults to 'days' before 'to'.
func GetWindowOrDefault(from, to time.Time, days int, currentTime time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = currentTime
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -days)
	}
	return from.UTC(), to.UTC()
}

// ParseTimeZ parses RFC3339, YYYY-MM-DD or unix seconds as UTC. Empty is zero time.
func ParseTimeZ(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := ParseDateZ(value); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, ErrInvalidTime
}
