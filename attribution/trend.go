package attribution

import (
	"context"
	"sort"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type TrendStore interface {
	ListTouchpointsInRange(ctx context.Context, channelID string, from, to time.Time) ([]model.Touchpoint, error)
}

// TrendQuery empty ChannelID covers all channels, empty Interval is day.
// Zero From/To default to the last 30 days ending now.
type TrendQuery struct {
	Metric    string    `json:"metric"`
	ChannelID string    `json:"channel_id"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Interval  string    `json:"interval"`
	// ZeroFill emits every bucket of the window, 0 for buckets without touchpoints.
	ZeroFill bool `json:"zero_fill"`
}

type TrendAnalyzer struct {
	store   TrendStore
	options Options
}

func NewTrendAnalyzer(store TrendStore, options Options) *TrendAnalyzer {
	return &TrendAnalyzer{store: store, options: withDefaults(options)}
}

// Trend metric per bucket, ascending. Buckets without touchpoints are not
// emitted unless ZeroFill is set.
func (analyzer *TrendAnalyzer) Trend(ctx context.Context, query TrendQuery) ([]model.TrendPoint, error) {
	if query.Interval == "" {
		query.Interval = U.GranularityDay
	}
	if !model.IsValidTrendMetric(query.Metric) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "invalid trend metric "+query.Metric)
	}
	if !U.IsValidGranularity(query.Interval) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "invalid trend interval "+query.Interval)
	}

	from, to := U.GetWindowOrDefault(query.From, query.To, U.DefaultTrendDays, analyzer.options.Clock())
	if from.After(to) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "window start is after its end")
	}
	logCtx := log.WithFields(log.Fields{
		"metric":     query.Metric,
		"channel_id": query.ChannelID,
		"interval":   query.Interval,
		"from":       from,
		"to":         to,
	})

	callCtx, cancel := context.WithTimeout(ctx, analyzer.options.CallTimeout)
	defer cancel()
	touchpoints, err := analyzer.store.ListTouchpointsInRange(callCtx, query.ChannelID, from, to)
	if err != nil {
		var attributionErr *model.AttributionError
		if errors.As(err, &attributionErr) {
			return nil, err
		}
		return nil, model.NewPersistenceFailureError(err, "list touchpoints in range")
	}

	valueByBucket := make(map[int64]float64)
	for _, touchpoint := range touchpoints {
		bucketStart, err := U.GetBucketStartZ(touchpoint.Timestamp, query.Interval)
		if err != nil {
			return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", err.Error())
		}

		value := 1.0
		if query.Metric == model.TrendMetricCost {
			value = touchpoint.Cost
		}
		valueByBucket[bucketStart.Unix()] += value
	}

	buckets := make([]int64, 0, len(valueByBucket))
	if query.ZeroFill {
		allBuckets, err := U.GetAllBucketsZ(from, to, query.Interval)
		if err != nil {
			return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", err.Error())
		}
		for _, bucketStart := range allBuckets {
			buckets = append(buckets, bucketStart.Unix())
		}
	} else {
		for bucket := range valueByBucket {
			buckets = append(buckets, bucket)
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	}

	points := make([]model.TrendPoint, 0, len(buckets))
	for _, bucket := range buckets {
		points = append(points, model.TrendPoint{
			BucketStart: time.Unix(bucket, 0).UTC(),
			Value:       valueByBucket[bucket],
		})
	}
	logCtx.WithField("points", len(points)).Debug("Computed trend.")
	return points, nil
}
