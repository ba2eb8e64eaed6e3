package model

import (
	"sort"
	"time"

	U "mta/util"
)

// Aggregation modes.
const (
	ROIModeAttribution = "attribution"
	ROIModeRaw         = "raw"
)

// Comparison metrics, ranked descending.
const (
	ROIMetricROI        = "roi"
	ROIMetricROAS       = "roas"
	ROIMetricRevenue    = "revenue"
	ROIMetricEngagement = "engagement"
)

var ROIComparisonMetrics = []string{
	ROIMetricROI,
	ROIMetricROAS,
	ROIMetricRevenue,
	ROIMetricEngagement,
}

// ChannelAttributedTotals sums of persisted results for a channel.
type ChannelAttributedTotals struct {
	ChannelID             string  `json:"channel_id"`
	AttributedRevenue     float64 `json:"attributed_revenue"`
	AttributedConversions float64 `json:"attributed_conversions"`
	ChannelCost           float64 `json:"channel_cost"`
}

// ChannelTouchpointTotals touchpoint count, cost and mean engagement score of a channel.
type ChannelTouchpointTotals struct {
	ChannelID     string  `json:"channel_id"`
	Touchpoints   int64   `json:"touchpoints"`
	Cost          float64 `json:"cost"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// ChannelConversionTotals conversions and revenue of journeys a channel touched.
// A journey is counted once per channel.
type ChannelConversionTotals struct {
	ChannelID   string  `json:"channel_id"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// ChannelROI channel level roll up over a time window.
// Ratios are 0 when their denominator is 0, in both modes.
type ChannelROI struct {
	ChannelID          string    `json:"channel_id"`
	ChannelName        string    `json:"channel_name"`
	ChannelType        string    `json:"channel_type"`
	Mode               string    `json:"mode"`
	ModelID            string    `json:"model_id,omitempty"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	Touchpoints        int64     `json:"touchpoints"`
	Cost               float64   `json:"cost"`
	Conversions        float64   `json:"conversions"`
	Revenue            float64   `json:"revenue"`
	ROI                float64   `json:"roi"`
	ROAS               float64   `json:"roas"`
	AvgConversionValue float64   `json:"avg_conversion_value"`
	CostPerConversion  float64   `json:"cost_per_conversion"`
	ConversionRate     float64   `json:"conversion_rate"`
	Engagement         float64   `json:"engagement"`
}

// DeriveMetrics sets ratios from revenue, cost, conversions and touchpoints.
// Conversion rate is only meaningful on raw data.
func (channelROI *ChannelROI) DeriveMetrics() {
	channelROI.ROI = U.SafeDivide(channelROI.Revenue-channelROI.Cost, channelROI.Cost) * 100
	channelROI.ROAS = U.SafeDivide(channelROI.Revenue, channelROI.Cost)
	channelROI.AvgConversionValue = U.SafeDivide(channelROI.Revenue, channelROI.Conversions)
	channelROI.CostPerConversion = U.SafeDivide(channelROI.Cost, channelROI.Conversions)
	if channelROI.Mode == ROIModeRaw {
		channelROI.ConversionRate = U.SafeDivide(channelROI.Conversions, float64(channelROI.Touchpoints))
	}
}

// GetMetricValue value used to rank on the given comparison metric.
func (channelROI *ChannelROI) GetMetricValue(metric string) (float64, bool) {
	switch metric {
	case ROIMetricROI:
		return channelROI.ROI, true
	case ROIMetricROAS:
		return channelROI.ROAS, true
	case ROIMetricRevenue:
		return channelROI.Revenue, true
	case ROIMetricEngagement:
		return channelROI.Engagement, true
	}
	return 0, false
}

// GetResultROIAndROAS per journey roi and roas. Both nil when the channel had no cost.
func GetResultROIAndROAS(attributedRevenue, channelCost float64) (*float64, *float64) {
	if channelCost <= 0 {
		return nil, nil
	}
	roi := (attributedRevenue - channelCost) / channelCost * 100
	roas := attributedRevenue / channelCost
	return &roi, &roas
}

// ChannelRanking channels ordered best first for one metric.
type ChannelRanking struct {
	Metric     string         `json:"metric"`
	ChannelIDs []string       `json:"channel_ids"`
	Ranks      map[string]int `json:"ranks"`
}

type ChannelComparison struct {
	Mode     string           `json:"mode"`
	ModelID  string           `json:"model_id,omitempty"`
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Channels []ChannelROI     `json:"channels"`
	Rankings []ChannelRanking `json:"rankings"`
}

// GetRanking returns the ranking for the metric, if present.
func (comparison *ChannelComparison) GetRanking(metric string) (ChannelRanking, bool) {
	for _, ranking := range comparison.Rankings {
		if ranking.Metric == metric {
			return ranking, true
		}
	}
	return ChannelRanking{}, false
}

// RankChannels ranks channels descending on metric, 1 is best. Ties keep input order.
func RankChannels(channels []ChannelROI, metric string) (ChannelRanking, error) {
	ranking := ChannelRanking{
		Metric:     metric,
		ChannelIDs: make([]string, 0, len(channels)),
		Ranks:      make(map[string]int, len(channels)),
	}
	if _, valid := (&ChannelROI{}).GetMetricValue(metric); !valid {
		return ranking, NewInvalidStateError(ReasonInvalidInput, "", "", "unknown comparison metric "+metric)
	}

	order := make([]int, len(channels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		left, _ := channels[order[i]].GetMetricValue(metric)
		right, _ := channels[order[j]].GetMetricValue(metric)
		return left > right
	})

	for rank, index := range order {
		channelID := channels[index].ChannelID
		ranking.ChannelIDs = append(ranking.ChannelIDs, channelID)
		ranking.Ranks[channelID] = rank + 1
	}
	return ranking, nil
}
