package model

import (
	"time"
)

const (
	TrendMetricTouchpoints = "touchpoints"
	TrendMetricCost        = "cost"
)

func IsValidTrendMetric(metric string) bool {
	return metric == TrendMetricTouchpoints || metric == TrendMetricCost
}

// TrendPoint value of a metric for the bucket starting at BucketStart (UTC).
type TrendPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
}
