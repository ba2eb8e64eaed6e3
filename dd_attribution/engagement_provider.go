package dd_attribution

import (
	"context"
	"math"

	"mta/model/model"
)

var touchpointTypeWeight = map[string]float64{
	model.TouchpointTypeImpression: 0.25,
	model.TouchpointTypeView:       0.5,
	model.TouchpointTypeClick:      1,
	model.TouchpointTypeEngagement: 1.25,
	model.TouchpointTypeConversion: 1.5,
}

// EngagementJudgmentProvider deterministic weights from interaction type and
// engagement metrics of each touchpoint.
type EngagementJudgmentProvider struct{}

func (EngagementJudgmentProvider) Infer(ctx context.Context, journey model.JourneyContext) (map[int]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewProviderFailureError(err, "engagement inference cancelled")
	}

	weights := make(map[int]float64, len(journey.Touchpoints))
	for _, touchpoint := range journey.Touchpoints {
		weights[touchpoint.PositionInJourney] += getEngagementWeight(touchpoint)
	}
	return weights, nil
}

// getEngagementWeight type weight, plus engagement score, minutes spent (capped at 10)
// and pages viewed (capped at 20). Never below the type weight.
func getEngagementWeight(touchpoint model.Touchpoint) float64 {
	weight, exists := touchpointTypeWeight[touchpoint.Type]
	if !exists {
		weight = 0.5
	}

	if touchpoint.EngagementScore > 0 && !math.IsInf(touchpoint.EngagementScore, 0) {
		weight += touchpoint.EngagementScore
	}
	if touchpoint.TimeSpent > 0 {
		weight += 0.1 * math.Min(touchpoint.TimeSpent/60, 10)
	}
	if touchpoint.PagesViewed > 0 {
		weight += 0.05 * math.Min(float64(touchpoint.PagesViewed), 20)
	}
	return weight
}
