package util

import (
	"errors"
	"time"

	"github.com/jinzhu/now"
)

const (
	GranularityDay   = "day"
	GranularityWeek  = "week"
	GranularityMonth = "month"
)

var ErrInvalidGranularity = errors.New("invalid granularity")

func IsValidGranularity(granularity string) bool {
	return granularity == GranularityDay || granularity == GranularityWeek ||
		granularity == GranularityMonth
}

// GetBucketStartZ returns the start of the bucket containing t, in UTC.
// Weeks start on Sunday.
func GetBucketStartZ(t time.Time, granularity string) (time.Time, error) {
	t = t.UTC()
	switch granularity {
	case GranularityDay:
		return now.New(t).BeginningOfDay(), nil
	case GranularityWeek:
		return now.New(t).BeginningOfWeek(), nil
	case GranularityMonth:
		return now.New(t).BeginningOfMonth(), nil
	default:
		return time.Time{}, ErrInvalidGranularity
	}
}

// GetAllBucketsZ lists bucket starts from the bucket containing 'from' till the one containing 'to'.
func GetAllBucketsZ(from, to time.Time, granularity string) ([]time.Time, error) {
	start, err := GetBucketStartZ(from, granularity)
	if err != nil {
		return nil, err
	}
	end, err := GetBucketStartZ(to, granularity)
	if err != nil {
		return nil, err
	}

	buckets := make([]time.Time, 0, 0)
	for t := start; !t.After(end); {
		buckets = append(buckets, t)
		switch granularity {
		case GranularityDay:
			t = t.AddDate(0, 0, 1)
		case GranularityWeek:
			t = t.AddDate(0, 0, 7)
		case GranularityMonth:
			// some date in next month, normalized back to its first day.
			t = now.New(t.AddDate(0, 0, 35)).BeginningOfMonth()
		}
	}
	return buckets, nil
}
