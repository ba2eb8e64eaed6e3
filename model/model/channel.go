package model

import (
	"time"
)

type Channel struct {
	ID                string    `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	Name              string    `gorm:"not null" json:"name"`
	Type              string    `gorm:"not null;type:varchar(64)" json:"type"`
	CostPerClick      float64   `json:"cost_per_click"`
	CostPerImpression float64   `json:"cost_per_impression"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Channel types.
const (
	ChannelTypeDirect        = "direct"
	ChannelTypeOrganicSearch = "organic_search"
	ChannelTypePaidSearch    = "paid_search"
	ChannelTypeSocialOrganic = "social_organic"
	ChannelTypeSocialPaid    = "social_paid"
	ChannelTypeEmail         = "email"
	ChannelTypeReferral      = "referral"
	ChannelTypeDisplay       = "display"
	ChannelTypeAffiliate     = "affiliate"
	ChannelTypeVideo         = "video"
	ChannelTypeOther         = "other"
)

var ChannelTypes = []string{
	ChannelTypeDirect,
	ChannelTypeOrganicSearch,
	ChannelTypePaidSearch,
	ChannelTypeSocialOrganic,
	ChannelTypeSocialPaid,
	ChannelTypeEmail,
	ChannelTypeReferral,
	ChannelTypeDisplay,
	ChannelTypeAffiliate,
	ChannelTypeVideo,
	ChannelTypeOther,
}

func IsValidChannelType(channelType string) bool {
	for _, t := range ChannelTypes {
		if t == channelType {
			return true
		}
	}
	return false
}
