package model

import (
	"context"
)

// JourneyContext input handed to a JudgmentProvider. Touchpoints are ordered by position.
type JourneyContext struct {
	JourneyID       string       `json:"journey_id"`
	ModelType       string       `json:"model_type"`
	ConversionValue float64      `json:"conversion_value"`
	Touchpoints     []Touchpoint `json:"touchpoints"`
}

// JudgmentProvider infers a weight per touchpoint position for data driven and
// custom models. Weights need not be normalized. Any error or malformed response
// fails only the computation it was called for.
type JudgmentProvider interface {
	Infer(ctx context.Context, journey JourneyContext) (map[int]float64, error)
}

// JudgmentProviderFunc adapts a function to JudgmentProvider.
type JudgmentProviderFunc func(ctx context.Context, journey JourneyContext) (map[int]float64, error)

func (f JudgmentProviderFunc) Infer(ctx context.Context, journey JourneyContext) (map[int]float64, error) {
	return f(ctx, journey)
}
