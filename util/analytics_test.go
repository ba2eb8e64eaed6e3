package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBucketStartZ(t *testing.T) {
	// Wednesday.
	ts := time.Date(2023, 1, 4, 15, 30, 0, 0, time.UTC)

	day, err := GetBucketStartZ(ts, GranularityDay)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), day)

	week, err := GetBucketStartZ(ts, GranularityWeek)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), week)
	assert.Equal(t, time.Sunday, week.Weekday())

	month, err := GetBucketStartZ(ts, GranularityMonth)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), month)

	_, err = GetBucketStartZ(ts, "quarter")
	assert.Equal(t, ErrInvalidGranularity, err)
}

func TestGetBucketStartZConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 2023-01-04 02:00 +05:00 is 2023-01-03 21:00 UTC.
	ts := time.Date(2023, 1, 4, 2, 0, 0, 0, loc)

	day, err := GetBucketStartZ(ts, GranularityDay)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), day)
}

func TestGetAllBucketsZ(t *testing.T) {
	from := time.Date(2023, 1, 30, 10, 0, 0, 0, time.UTC)
	to := time.Date(2023, 4, 2, 10, 0, 0, 0, time.UTC)

	months, err := GetAllBucketsZ(from, to, GranularityMonth)
	assert.Nil(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
	}, months)

	days, err := GetAllBucketsZ(from, from.AddDate(0, 0, 2), GranularityDay)
	assert.Nil(t, err)
	assert.Len(t, days, 3)

	weeks, err := GetAllBucketsZ(from, to, GranularityWeek)
	assert.Nil(t, err)
	assert.Equal(t, time.Date(2023, 1, 29, 0, 0, 0, 0, time.UTC), weeks[0])
	assert.Equal(t, time.Date(2023, 4, 2, 0, 0, 0, 0, time.UTC), weeks[len(weeks)-1])
}
