package model

import (
	"time"
)

// AttributionResult derived credit of one channel for a (journey, model) pair.
// Recomputing a pair replaces all of its rows.
type AttributionResult struct {
	ID                    string  `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	JourneyID             string  `gorm:"not null;unique_index:attribution_results_journey_model_channel_idx" json:"journey_id"`
	ModelID               string  `gorm:"not null;unique_index:attribution_results_journey_model_channel_idx;index" json:"model_id"`
	ChannelID             string  `gorm:"not null;unique_index:attribution_results_journey_model_channel_idx" json:"channel_id"`
	Credit                float64 `gorm:"not null" json:"credit"`
	AttributedRevenue     float64 `gorm:"not null" json:"attributed_revenue"`
	AttributedConversions float64 `gorm:"not null" json:"attributed_conversions"`
	ChannelCost           float64 `gorm:"not null" json:"channel_cost"`
	// ROI and ROAS are nil when the channel had no cost in the journey.
	ROI          *float64  `gorm:"column:roi" json:"roi"`
	ROAS         *float64  `gorm:"column:roas" json:"roas"`
	CalculatedAt time.Time `gorm:"not null;index" json:"calculated_at"`
}
