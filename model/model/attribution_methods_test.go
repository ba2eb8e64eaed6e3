package model

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

func buildTouchpoints(channelIDs ...string) []Touchpoint {
	touchpoints := make([]Touchpoint, 0, len(channelIDs))
	for i, channelID := range channelIDs {
		touchpoints = append(touchpoints, Touchpoint{
			ID:                fmt.Sprintf("tp%d", i+1),
			JourneyID:         "j1",
			ChannelID:         channelID,
			Type:              TouchpointTypeClick,
			Timestamp:         baseTime.AddDate(0, 0, i),
			PositionInJourney: i + 1,
		})
	}
	return touchpoints
}

func assertCreditsReconcile(t *testing.T, credits *ChannelCredits, value float64) {
	assert.InDelta(t, value, credits.Total(), value*1e-6)
}

func allPolicies() map[string]CreditPolicy {
	uniform := JudgmentProviderFunc(func(ctx context.Context, journey JourneyContext) (map[int]float64, error) {
		weights := make(map[int]float64)
		for _, touchpoint := range journey.Touchpoints {
			weights[touchpoint.PositionInJourney] = 1
		}
		return weights, nil
	})
	return NewPolicyRegistry(uniform, uniform).policies
}

func TestAllPoliciesReconcileToConversionValue(t *testing.T) {
	journeys := [][]Touchpoint{
		buildTouchpoints("search"),
		buildTouchpoints("search", "email"),
		buildTouchpoints("search", "email", "display"),
		buildTouchpoints("search", "email", "search", "display", "email", "video"),
	}
	values := []float64{0.01, 1, 150, 987654.321}

	for modelType, policy := range allPolicies() {
		for _, touchpoints := range journeys {
			for _, value := range values {
				credits, err := policy.Allocate(context.Background(), touchpoints, value, DefaultModelParams())
				require.NoError(t, err, modelType)
				assertCreditsReconcile(t, credits, value)
				for _, credit := range credits.List() {
					assert.True(t, credit.Amount >= 0 && credit.Amount <= value+1e-9, modelType)
				}
			}
		}
	}
}

func TestPoliciesRejectEmptyTouchpointsAndNonPositiveValue(t *testing.T) {
	for modelType, policy := range allPolicies() {
		_, err := policy.Allocate(context.Background(), nil, 100, DefaultModelParams())
		assert.True(t, IsInvalidState(err), modelType)
		assert.Equal(t, ReasonNoTouchpoints, GetReason(err))

		_, err = policy.Allocate(context.Background(), buildTouchpoints("search"), 0, DefaultModelParams())
		assert.True(t, IsInvalidState(err), modelType)
		assert.Equal(t, ReasonNoConversion, GetReason(err))

		_, err = policy.Allocate(context.Background(), buildTouchpoints("search"), math.NaN(), DefaultModelParams())
		assert.True(t, IsInvalidState(err), modelType)
	}
}

func TestFirstAndLastTouch(t *testing.T) {
	touchpoints := buildTouchpoints("search", "email", "display")
	// unordered input.
	touchpoints[0], touchpoints[2] = touchpoints[2], touchpoints[0]

	credits, err := FirstTouchPolicy{}.Allocate(context.Background(), touchpoints, 100, DefaultModelParams())
	assert.Nil(t, err)
	assert.Equal(t, []ChannelCredit{{ChannelID: "search", Amount: 100}}, credits.List())

	credits, err = LastTouchPolicy{}.Allocate(context.Background(), touchpoints, 100, DefaultModelParams())
	assert.Nil(t, err)
	assert.Equal(t, []ChannelCredit{{ChannelID: "display", Amount: 100}}, credits.List())

	single := buildTouchpoints("search")
	credits, _ = FirstTouchPolicy{}.Allocate(context.Background(), single, 50, DefaultModelParams())
	assert.Equal(t, 50.0, credits.Get("search"))
	credits, _ = LastTouchPolicy{}.Allocate(context.Background(), single, 50, DefaultModelParams())
	assert.Equal(t, 50.0, credits.Get("search"))
}

func TestFirstTouchTieBreaksOnTimestamp(t *testing.T) {
	touchpoints := []Touchpoint{
		{ChannelID: "late", PositionInJourney: 1, Timestamp: baseTime.Add(time.Hour)},
		{ChannelID: "early", PositionInJourney: 1, Timestamp: baseTime},
		{ChannelID: "same", PositionInJourney: 1, Timestamp: baseTime},
	}
	credits, err := FirstTouchPolicy{}.Allocate(context.Background(), touchpoints, 10, DefaultModelParams())
	assert.Nil(t, err)
	assert.Equal(t, []string{"early"}, credits.ChannelIDs())
}

func TestLinearCreditByOccurrence(t *testing.T) {
	touchpoints := buildTouchpoints("search", "email", "search", "display")
	credits, err := LinearPolicy{}.Allocate(context.Background(), touchpoints, 100, DefaultModelParams())
	assert.Nil(t, err)
	assert.Equal(t, []string{"search", "email", "display"}, credits.ChannelIDs())
	assert.InDelta(t, 50, credits.Get("search"), 1e-9)
	assert.InDelta(t, 25, credits.Get("email"), 1e-9)
	assert.InDelta(t, 25, credits.Get("display"), 1e-9)
}

func TestTimeDecayMonotonicInPosition(t *testing.T) {
	touchpoints := buildTouchpoints("a", "b", "c", "d", "e")
	for _, halflife := range []float64{0.5, 1, 7, 30, 1000} {
		params := DefaultModelParams()
		params.HalflifeDays = halflife
		credits, err := TimeDecayPolicy{}.Allocate(context.Background(), touchpoints, 100, params)
		require.NoError(t, err)
		assertCreditsReconcile(t, credits, 100)
		for i := 1; i < len(touchpoints); i++ {
			assert.GreaterOrEqual(t, credits.Get(touchpoints[i].ChannelID), credits.Get(touchpoints[i-1].ChannelID))
		}
	}
}

func TestTimeDecayHalflife(t *testing.T) {
	touchpoints := buildTouchpoints("old", "new")
	touchpoints[0].Timestamp = touchpoints[1].Timestamp.AddDate(0, 0, -7)

	credits, err := TimeDecayPolicy{}.Allocate(context.Background(), touchpoints, 90, DefaultModelParams())
	assert.Nil(t, err)
	// weights 0.5 and 1.
	assert.InDelta(t, 30, credits.Get("old"), 1e-9)
	assert.InDelta(t, 60, credits.Get("new"), 1e-9)
}

func TestTimeDecayEqualTimestampsEqualWeights(t *testing.T) {
	touchpoints := buildTouchpoints("a", "b", "c")
	for i := range touchpoints {
		touchpoints[i].Timestamp = baseTime
	}
	credits, err := TimeDecayPolicy{}.Allocate(context.Background(), touchpoints, 90, DefaultModelParams())
	assert.Nil(t, err)
	for _, channelID := range []string{"a", "b", "c"} {
		assert.InDelta(t, 30, credits.Get(channelID), 1e-9)
	}
}

func TestTimeDecayRejectsInvalidHalflife(t *testing.T) {
	params := DefaultModelParams()
	params.HalflifeDays = 0
	_, err := TimeDecayPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b"), 10, params)
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, ReasonInconsistentModelParameters, GetReason(err))
}

func TestSearchEmailScenario(t *testing.T) {
	touchpoints := []Touchpoint{
		{ChannelID: "search", PositionInJourney: 1, Cost: 2, Timestamp: baseTime},
		{ChannelID: "email", PositionInJourney: 2, Cost: 1, Timestamp: baseTime.AddDate(0, 0, 3)},
	}

	credits, err := LinearPolicy{}.Allocate(context.Background(), touchpoints, 150, DefaultModelParams())
	assert.Nil(t, err)
	assert.InDelta(t, 75, credits.Get("search"), 1e-9)
	assert.InDelta(t, 75, credits.Get("email"), 1e-9)

	credits, err = TimeDecayPolicy{}.Allocate(context.Background(), touchpoints, 150, DefaultModelParams())
	assert.Nil(t, err)
	assert.Greater(t, credits.Get("email"), credits.Get("search"))
	assertCreditsReconcile(t, credits, 150)

	searchWeight := math.Exp(-math.Ln2 / 7 * 3)
	assert.InDelta(t, 150*searchWeight/(1+searchWeight), credits.Get("search"), 1e-9)
}

func TestPositionBased(t *testing.T) {
	params := DefaultModelParams()

	credits, err := PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a"), 100, params)
	assert.Nil(t, err)
	assert.Equal(t, 100.0, credits.Get("a"))

	// renormalized two touch journey.
	credits, err = PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b"), 100, params)
	assert.Nil(t, err)
	assert.InDelta(t, 50, credits.Get("a"), 1e-9)
	assert.InDelta(t, 50, credits.Get("b"), 1e-9)

	credits, err = PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b", "c", "d"), 100, params)
	assert.Nil(t, err)
	assert.InDelta(t, 40, credits.Get("a"), 1e-9)
	assert.InDelta(t, 10, credits.Get("b"), 1e-9)
	assert.InDelta(t, 10, credits.Get("c"), 1e-9)
	assert.InDelta(t, 40, credits.Get("d"), 1e-9)

	params.FirstWeight, params.MiddleWeight, params.LastWeight = 0.3, 0.3, 0.4
	credits, err = PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b"), 70, params)
	assert.Nil(t, err)
	assert.InDelta(t, 30, credits.Get("a"), 1e-9)
	assert.InDelta(t, 40, credits.Get("b"), 1e-9)
}

func TestPositionBasedPreservedTwoTouchWeights(t *testing.T) {
	params := DefaultModelParams()
	params.PreserveTwoTouchWeights = true

	credits, err := PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b"), 100, params)
	assert.Nil(t, err)
	assert.InDelta(t, 40, credits.Get("a"), 1e-9)
	assert.InDelta(t, 40, credits.Get("b"), 1e-9)
	assert.InDelta(t, 80, credits.Total(), 1e-9)

	// only the two touch case differs.
	credits, err = PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b", "c"), 100, params)
	assert.Nil(t, err)
	assertCreditsReconcile(t, credits, 100)
}

func TestPositionBasedRejectsInconsistentWeights(t *testing.T) {
	for _, weights := range [][3]float64{{0.5, 0.5, 0.5}, {-0.1, 0.6, 0.5}, {0, 1, 0}, {math.NaN(), 0.5, 0.5}} {
		params := DefaultModelParams()
		params.FirstWeight, params.MiddleWeight, params.LastWeight = weights[0], weights[1], weights[2]
		_, err := PositionBasedPolicy{}.Allocate(context.Background(), buildTouchpoints("a", "b", "c"), 100, params)
		assert.True(t, IsInvalidState(err), weights)
		assert.Equal(t, ReasonInconsistentModelParameters, GetReason(err))
	}
}

func TestJudgmentPolicySanitizesWeights(t *testing.T) {
	provider := JudgmentProviderFunc(func(ctx context.Context, journey JourneyContext) (map[int]float64, error) {
		assert.Equal(t, "j1", journey.JourneyID)
		assert.Equal(t, AttributionModelDataDriven, journey.ModelType)
		return map[int]float64{1: 3, 2: -5, 3: 1, 9: 100, 4: math.Inf(1)}, nil
	})
	policy := JudgmentPolicy{ModelType: AttributionModelDataDriven, Provider: provider}

	credits, err := policy.Allocate(context.Background(), buildTouchpoints("a", "b", "c", "d"), 100, DefaultModelParams())
	assert.Nil(t, err)
	assert.InDelta(t, 75, credits.Get("a"), 1e-9)
	assert.InDelta(t, 25, credits.Get("c"), 1e-9)
	assert.Equal(t, 0.0, credits.Get("b"))
	assert.Equal(t, []string{"a", "c"}, credits.ChannelIDs())
}

func TestJudgmentPolicyProviderFailures(t *testing.T) {
	touchpoints := buildTouchpoints("a", "b")

	zero := JudgmentPolicy{Provider: JudgmentProviderFunc(func(ctx context.Context, journey JourneyContext) (map[int]float64, error) {
		return map[int]float64{1: 0, 2: -1, 7: 4}, nil
	})}
	_, err := zero.Allocate(context.Background(), touchpoints, 10, DefaultModelParams())
	assert.True(t, errors.Is(err, ErrProviderFailure))

	failing := JudgmentPolicy{Provider: JudgmentProviderFunc(func(ctx context.Context, journey JourneyContext) (map[int]float64, error) {
		return nil, context.DeadlineExceeded
	})}
	_, err = failing.Allocate(context.Background(), touchpoints, 10, DefaultModelParams())
	assert.True(t, errors.Is(err, ErrProviderFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsRetryable(err))

	_, err = JudgmentPolicy{}.Allocate(context.Background(), touchpoints, 10, DefaultModelParams())
	assert.True(t, errors.Is(err, ErrProviderFailure))
}

func TestPolicyRegistry(t *testing.T) {
	registry := NewPolicyRegistry(nil, nil)
	for _, modelType := range []string{AttributionModelFirstTouch, AttributionModelLastTouch,
		AttributionModelLinear, AttributionModelTimeDecay, AttributionModelPositionBased} {
		policy, err := registry.Get(modelType)
		assert.Nil(t, err)
		assert.NotNil(t, policy)
	}

	_, err := registry.Get(AttributionModelDataDriven)
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, ReasonUnsupportedModelType, GetReason(err))

	registry.Register(AttributionModelCustom, LinearPolicy{})
	policy, err := registry.Get(AttributionModelCustom)
	assert.Nil(t, err)
	assert.Equal(t, LinearPolicy{}, policy)
}

func TestAttributionModelParams(t *testing.T) {
	halflife, first, middle, last := 3.0, 0.0, 0.5, 0.5
	attributionModel := AttributionModel{Type: AttributionModelPositionBased, HalflifeDays: &halflife,
		FirstWeight: &first, MiddleWeight: &middle, LastWeight: &last}
	params := attributionModel.Params()
	assert.Equal(t, 3.0, params.HalflifeDays)
	assert.Equal(t, 0.0, params.FirstWeight)
	assert.Nil(t, attributionModel.Validate())

	assert.Equal(t, DefaultModelParams(), (&AttributionModel{Type: AttributionModelLinear}).Params())

	unknown := AttributionModel{ID: "m1", Type: "markov"}
	err := unknown.Validate()
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, ReasonUnsupportedModelType, GetReason(err))
}

func TestAttributionErrors(t *testing.T) {
	err := WithPair(NewInvalidStateError(ReasonNoConversion, "", "", "not converted"), "j1", "m1")
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "invalid_state", ErrorKindName(err))
	assert.Contains(t, err.Error(), "journey=j1 model=m1")

	assert.Equal(t, "not_found", ErrorKindName(NewNotFoundError("journey", "j1")))
	assert.Equal(t, "persistence_failure", ErrorKindName(NewPersistenceFailureError(errors.New("down"), "write")))
	assert.Equal(t, "unknown", ErrorKindName(errors.New("other")))

	// kinds survive wrapping by callers and keep the cause.
	cause := errors.New("connection reset")
	wrapped := errors.Wrap(NewPersistenceFailureError(cause, "read journey"), "compute")
	assert.True(t, errors.Is(wrapped, ErrPersistenceFailure))
	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, "persistence_failure", ErrorKindName(wrapped))
	assert.Equal(t, ReasonNoConversion, GetReason(errors.Wrap(err, "bulk")))
}
