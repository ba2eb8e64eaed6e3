package model

import (
	"math"
	"time"

	U "mta/util"
)

// Attribution model types.
const (
	AttributionModelFirstTouch    = "first_touch"
	AttributionModelLastTouch     = "last_touch"
	AttributionModelLinear        = "linear"
	AttributionModelTimeDecay     = "time_decay"
	AttributionModelPositionBased = "position_based"
	AttributionModelDataDriven    = "data_driven"
	AttributionModelCustom        = "custom"
)

var AttributionModelTypes = []string{
	AttributionModelFirstTouch,
	AttributionModelLastTouch,
	AttributionModelLinear,
	AttributionModelTimeDecay,
	AttributionModelPositionBased,
	AttributionModelDataDriven,
	AttributionModelCustom,
}

// Defaults for type specific parameters.
const (
	DefaultHalflifeDays = 7.0
	DefaultFirstWeight  = 0.4
	DefaultMiddleWeight = 0.2
	DefaultLastWeight   = 0.4
)

// AttributionModel admin configured attribution policy and its parameters.
// Nil parameters fall back to defaults.
type AttributionModel struct {
	ID           string   `gorm:"primary_key:true;type:varchar(255)" json:"id"`
	Name         string   `gorm:"not null" json:"name"`
	Type         string   `gorm:"not null;type:varchar(32)" json:"type"`
	HalflifeDays *float64 `json:"halflife_days,omitempty"`
	FirstWeight  *float64 `json:"first_weight,omitempty"`
	MiddleWeight *float64 `json:"middle_weight,omitempty"`
	LastWeight   *float64 `json:"last_weight,omitempty"`
	// PreserveTwoTouchWeights keeps V*first and V*last for two touchpoint journeys
	// instead of renormalizing them to sum to V. Compatibility with results computed
	// before renormalization.
	PreserveTwoTouchWeights bool      `gorm:"not null;default:false" json:"preserve_two_touch_weights"`
	IsActive                bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ModelParams resolved parameters handed to a CreditPolicy.
type ModelParams struct {
	HalflifeDays            float64
	FirstWeight             float64
	MiddleWeight            float64
	LastWeight              float64
	PreserveTwoTouchWeights bool
}

func DefaultModelParams() ModelParams {
	return ModelParams{
		HalflifeDays: DefaultHalflifeDays,
		FirstWeight:  DefaultFirstWeight,
		MiddleWeight: DefaultMiddleWeight,
		LastWeight:   DefaultLastWeight,
	}
}

func IsValidAttributionModelType(modelType string) bool {
	for _, t := range AttributionModelTypes {
		if t == modelType {
			return true
		}
	}
	return false
}

// Params returns stored parameters over defaults.
func (model *AttributionModel) Params() ModelParams {
	params := DefaultModelParams()
	if model.HalflifeDays != nil {
		params.HalflifeDays = *model.HalflifeDays
	}
	if model.FirstWeight != nil {
		params.FirstWeight = *model.FirstWeight
	}
	if model.MiddleWeight != nil {
		params.MiddleWeight = *model.MiddleWeight
	}
	if model.LastWeight != nil {
		params.LastWeight = *model.LastWeight
	}
	params.PreserveTwoTouchWeights = model.PreserveTwoTouchWeights
	return params
}

// Validate checks type and parameter consistency. Returns an InvalidState error.
func (model *AttributionModel) Validate() error {
	if !IsValidAttributionModelType(model.Type) {
		return NewInvalidStateError(ReasonUnsupportedModelType, "", model.ID,
			"unknown attribution model type "+model.Type)
	}
	return model.Params().Validate(model.Type)
}

// Validate checks only the parameters used by the given model type.
func (params ModelParams) Validate(modelType string) error {
	switch modelType {
	case AttributionModelTimeDecay:
		if !U.IsFinite(params.HalflifeDays) || params.HalflifeDays <= 0 {
			return NewInvalidStateError(ReasonInconsistentModelParameters, "", "",
				"halflife_days must be a positive number")
		}
	case AttributionModelPositionBased:
		weights := []float64{params.FirstWeight, params.MiddleWeight, params.LastWeight}
		sum := 0.0
		for _, w := range weights {
			if !U.IsFinite(w) || w < 0 || w > 1 {
				return NewInvalidStateError(ReasonInconsistentModelParameters, "", "",
					"position weights must be within [0,1]")
			}
			sum += w
		}
		if math.Abs(sum-1) > U.FloatTolerance {
			return NewInvalidStateError(ReasonInconsistentModelParameters, "", "",
				"position weights must sum to 1")
		}
		if params.FirstWeight+params.LastWeight == 0 {
			return NewInvalidStateError(ReasonInconsistentModelParameters, "", "",
				"first and last position weights cannot both be 0")
		}
	}
	return nil
}
