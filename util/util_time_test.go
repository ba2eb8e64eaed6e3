package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeZ(t *testing.T) {
	expected := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	parsed, err := ParseTimeZ("2024-03-01")
	assert.Nil(t, err)
	assert.Equal(t, expected, parsed)

	parsed, err = ParseTimeZ("2024-03-01T05:30:00+05:30")
	assert.Nil(t, err)
	assert.Equal(t, expected, parsed)

	parsed, err = ParseTimeZ("1709251200")
	assert.Nil(t, err)
	assert.Equal(t, expected, parsed)

	parsed, err = ParseTimeZ(" ")
	assert.Nil(t, err)
	assert.True(t, parsed.IsZero())

	_, err = ParseTimeZ("yesterday")
	assert.Equal(t, ErrInvalidTime, err)
}

func TestGetWindowOrDefault(t *testing.T) {
	currentTime := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)

	from, to := GetWindowOrDefault(time.Time{}, time.Time{}, DefaultTrendDays, currentTime)
	assert.Equal(t, currentTime, to)
	assert.Equal(t, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), from)

	customFrom := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	from, to = GetWindowOrDefault(customFrom, time.Time{}, DefaultTrendDays, currentTime)
	assert.Equal(t, customFrom, from)
	assert.Equal(t, currentTime, to)
}
