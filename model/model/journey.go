package model

import (
	"time"
)

// Journey ordered sequence of touchpoints for one user, optionally ending in conversions.
// ConversionValue, HasConversion and TouchpointCount are maintained by the store
// as touchpoints and conversions are appended.
type Journey struct {
	ID              string     `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	UserID          string     `gorm:"not null;index" json:"user_id"`
	SessionID       string     `json:"session_id"`
	StartTime       time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	ConversionValue float64    `gorm:"not null;default:0" json:"conversion_value"`
	HasConversion   bool       `gorm:"not null;default:false" json:"has_conversion"`
	TouchpointCount int        `gorm:"not null;default:0" json:"touchpoint_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Touchpoint types.
const (
	TouchpointTypeImpression = "impression"
	TouchpointTypeClick      = "click"
	TouchpointTypeView       = "view"
	TouchpointTypeEngagement = "engagement"
	TouchpointTypeConversion = "conversion"
)

var TouchpointTypes = []string{
	TouchpointTypeImpression,
	TouchpointTypeClick,
	TouchpointTypeView,
	TouchpointTypeEngagement,
	TouchpointTypeConversion,
}

type Touchpoint struct {
	ID        string    `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	JourneyID string    `gorm:"not null;unique_index:touchpoints_journey_position_idx" json:"journey_id"`
	ChannelID string    `gorm:"not null;index" json:"channel_id"`
	Type      string    `gorm:"not null;type:varchar(32)" json:"type"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	// PositionInJourney 1-based, contiguous within a journey. Assigned on append.
	PositionInJourney int       `gorm:"not null;unique_index:touchpoints_journey_position_idx" json:"position_in_journey"`
	Cost              float64   `gorm:"not null;default:0" json:"cost"`
	TimeSpent         float64   `json:"time_spent"`
	PagesViewed       int       `json:"pages_viewed"`
	EngagementScore   float64   `json:"engagement_score"`
	CreatedAt         time.Time `json:"created_at"`
}

type Conversion struct {
	ID        string    `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	JourneyID string    `gorm:"not null;index" json:"journey_id"`
	Type      string    `gorm:"not null;type:varchar(64)" json:"type"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Revenue   float64   `gorm:"not null;default:0" json:"revenue"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func IsValidTouchpointType(touchpointType string) bool {
	for _, t := range TouchpointTypes {
		if t == touchpointType {
			return true
		}
	}
	return false
}

// IsConverted journey can be attributed only when it has converted with a positive value.
func (journey *Journey) IsConverted() bool {
	return journey.HasConversion && journey.ConversionValue > 0
}

// HasContiguousPositions checks positions are 1..N in the given order.
func HasContiguousPositions(touchpoints []Touchpoint) bool {
	for i := range touchpoints {
		if touchpoints[i].PositionInJourney != i+1 {
			return false
		}
	}
	return true
}
