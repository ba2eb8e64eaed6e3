package model

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	U "mta/util"
)

// CreditPolicy allocates conversionValue across the channels of the given touchpoints.
// Implementations must be safe for concurrent use.
type CreditPolicy interface {
	Allocate(ctx context.Context, touchpoints []Touchpoint, conversionValue float64,
		params ModelParams) (*ChannelCredits, error)
}

type ChannelCredit struct {
	ChannelID string
	Amount    float64
}

// ChannelCredits amount per channel, kept in order of first credited appearance.
type ChannelCredits struct {
	order   []string
	amounts map[string]float64
}

func NewChannelCredits() *ChannelCredits {
	return &ChannelCredits{order: make([]string, 0), amounts: make(map[string]float64)}
}

// Add accumulates amount to the channel. Non positive amounts are ignored.
func (credits *ChannelCredits) Add(channelID string, amount float64) {
	if amount <= 0 {
		return
	}
	if _, exists := credits.amounts[channelID]; !exists {
		credits.order = append(credits.order, channelID)
	}
	credits.amounts[channelID] += amount
}

func (credits *ChannelCredits) Get(channelID string) float64 {
	return credits.amounts[channelID]
}

func (credits *ChannelCredits) Len() int {
	return len(credits.order)
}

func (credits *ChannelCredits) ChannelIDs() []string {
	ids := make([]string, len(credits.order))
	copy(ids, credits.order)
	return ids
}

func (credits *ChannelCredits) List() []ChannelCredit {
	list := make([]ChannelCredit, 0, len(credits.order))
	for _, channelID := range credits.order {
		list = append(list, ChannelCredit{ChannelID: channelID, Amount: credits.amounts[channelID]})
	}
	return list
}

func (credits *ChannelCredits) Total() float64 {
	total := 0.0
	for _, channelID := range credits.order {
		total += credits.amounts[channelID]
	}
	return total
}

// validateAllocationInput guards policies against inputs the engine should have rejected.
func validateAllocationInput(touchpoints []Touchpoint, conversionValue float64) error {
	if len(touchpoints) == 0 {
		return NewInvalidStateError(ReasonNoTouchpoints, "", "", "no touchpoints to attribute")
	}
	if !U.IsFinite(conversionValue) || conversionValue <= 0 {
		return NewInvalidStateError(ReasonNoConversion, "", "", "conversion value must be positive")
	}
	return nil
}

// SortTouchpointsByPosition returns a copy ordered by position, ties by timestamp then input order.
func SortTouchpointsByPosition(touchpoints []Touchpoint) []Touchpoint {
	sorted := make([]Touchpoint, len(touchpoints))
	copy(sorted, touchpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PositionInJourney != sorted[j].PositionInJourney {
			return sorted[i].PositionInJourney < sorted[j].PositionInJourney
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// FirstTouchPolicy gives full credit to the touchpoint with the minimal position.
type FirstTouchPolicy struct{}

func (FirstTouchPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}

	first := 0
	for i := 1; i < len(touchpoints); i++ {
		current, best := touchpoints[i], touchpoints[first]
		if current.PositionInJourney < best.PositionInJourney ||
			(current.PositionInJourney == best.PositionInJourney && current.Timestamp.Before(best.Timestamp)) {
			first = i
		}
	}

	credits := NewChannelCredits()
	credits.Add(touchpoints[first].ChannelID, conversionValue)
	return credits, nil
}

// LastTouchPolicy gives full credit to the touchpoint with the maximal position.
type LastTouchPolicy struct{}

func (LastTouchPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}

	last := 0
	for i := 1; i < len(touchpoints); i++ {
		current, best := touchpoints[i], touchpoints[last]
		if current.PositionInJourney > best.PositionInJourney ||
			(current.PositionInJourney == best.PositionInJourney && !current.Timestamp.Before(best.Timestamp)) {
			last = i
		}
	}

	credits := NewChannelCredits()
	credits.Add(touchpoints[last].ChannelID, conversionValue)
	return credits, nil
}

// LinearPolicy gives V/N to every touchpoint.
type LinearPolicy struct{}

func (LinearPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}

	share := conversionValue / float64(len(touchpoints))
	credits := NewChannelCredits()
	for _, touchpoint := range SortTouchpointsByPosition(touchpoints) {
		credits.Add(touchpoint.ChannelID, share)
	}
	return credits, nil
}

// TimeDecayPolicy weights each touchpoint by exp(-ln2/halflife * days before the last touchpoint).
// A touchpoint halflife days before another receives half of its credit.
type TimeDecayPolicy struct{}

func (TimeDecayPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}
	if err := params.Validate(AttributionModelTimeDecay); err != nil {
		return nil, err
	}

	sorted := SortTouchpointsByPosition(touchpoints)
	reference := sorted[len(sorted)-1].Timestamp

	weights := make([]float64, len(sorted))
	totalWeight := 0.0
	for i, touchpoint := range sorted {
		weights[i] = calculateWeightForTimeDecay(reference, touchpoint.Timestamp, params.HalflifeDays)
		totalWeight += weights[i]
	}
	if totalWeight == 0 || !U.IsFinite(totalWeight) {
		return nil, NewInvalidStateError(ReasonInconsistentModelParameters, "", "",
			"time decay weights cannot be normalized")
	}

	credits := NewChannelCredits()
	for i, touchpoint := range sorted {
		credits.Add(touchpoint.ChannelID, conversionValue*weights[i]/totalWeight)
	}
	return credits, nil
}

func calculateWeightForTimeDecay(reference, interaction time.Time, halflifeDays float64) float64 {
	days := U.DaysBetween(interaction, reference)
	return math.Exp(-math.Ln2 / halflifeDays * days)
}

// PositionBasedPolicy gives the first and last touchpoints their weights and splits
// the middle weight equally across interior touchpoints.
type PositionBasedPolicy struct{}

func (PositionBasedPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}
	if err := params.Validate(AttributionModelPositionBased); err != nil {
		return nil, err
	}

	sorted := SortTouchpointsByPosition(touchpoints)
	first, last := sorted[0], sorted[len(sorted)-1]
	credits := NewChannelCredits()

	switch len(sorted) {
	case 1:
		credits.Add(first.ChannelID, conversionValue)

	case 2:
		firstWeight, lastWeight := params.FirstWeight, params.LastWeight
		if !params.PreserveTwoTouchWeights {
			endsWeight := firstWeight + lastWeight
			firstWeight, lastWeight = firstWeight/endsWeight, lastWeight/endsWeight
		}
		credits.Add(first.ChannelID, conversionValue*firstWeight)
		credits.Add(last.ChannelID, conversionValue*lastWeight)

	default:
		credits.Add(first.ChannelID, conversionValue*params.FirstWeight)
		middleShare := conversionValue * params.MiddleWeight / float64(len(sorted)-2)
		for _, touchpoint := range sorted[1 : len(sorted)-1] {
			credits.Add(touchpoint.ChannelID, middleShare)
		}
		credits.Add(last.ChannelID, conversionValue*params.LastWeight)
	}
	return credits, nil
}

// JudgmentPolicy allocates using weights inferred by a JudgmentProvider.
type JudgmentPolicy struct {
	ModelType string
	Provider  JudgmentProvider
}

func (policy JudgmentPolicy) Allocate(ctx context.Context, touchpoints []Touchpoint,
	conversionValue float64, params ModelParams) (*ChannelCredits, error) {

	if err := validateAllocationInput(touchpoints, conversionValue); err != nil {
		return nil, err
	}
	if policy.Provider == nil {
		return nil, NewProviderFailureError(nil, "no judgment provider configured for "+policy.ModelType)
	}

	sorted := SortTouchpointsByPosition(touchpoints)
	var journeyID string
	if len(sorted) > 0 {
		journeyID = sorted[0].JourneyID
	}

	weights, err := policy.Provider.Infer(ctx, JourneyContext{
		JourneyID:       journeyID,
		ModelType:       policy.ModelType,
		ConversionValue: conversionValue,
		Touchpoints:     sorted,
	})
	if err != nil {
		if errors.Is(err, ErrProviderFailure) {
			return nil, err
		}
		return nil, NewProviderFailureError(err, "judgment provider failed")
	}

	normalized, err := NormalizePositionWeights(weights, sorted)
	if err != nil {
		return nil, err
	}

	credits := NewChannelCredits()
	for _, touchpoint := range sorted {
		credits.Add(touchpoint.ChannelID, conversionValue*normalized[touchpoint.PositionInJourney])
	}
	return credits, nil
}

// NormalizePositionWeights clamps negative or non finite weights to 0, drops positions
// not present in touchpoints and rescales the rest to sum to 1.
func NormalizePositionWeights(weights map[int]float64, touchpoints []Touchpoint) (map[int]float64, error) {
	positions := make(map[int]bool, len(touchpoints))
	for _, touchpoint := range touchpoints {
		positions[touchpoint.PositionInJourney] = true
	}

	clamped := make(map[int]float64, len(weights))
	total := 0.0
	for position, weight := range weights {
		if !positions[position] {
			continue
		}
		if !U.IsFinite(weight) || weight < 0 {
			weight = 0
		}
		clamped[position] = weight
		total += weight
	}
	if total == 0 || !U.IsFinite(total) {
		return nil, NewProviderFailureError(nil, "judgment weights sum to zero")
	}

	for position := range clamped {
		clamped[position] = clamped[position] / total
	}
	return clamped, nil
}

// PolicyRegistry CreditPolicy by attribution model type.
// Register is expected during setup, before concurrent use.
type PolicyRegistry struct {
	policies map[string]CreditPolicy
}

// NewPolicyRegistry registers the built-in policies. Judgment backed policies
// are registered only for non nil providers.
func NewPolicyRegistry(dataDriven, custom JudgmentProvider) *PolicyRegistry {
	registry := &PolicyRegistry{policies: map[string]CreditPolicy{
		AttributionModelFirstTouch:    FirstTouchPolicy{},
		AttributionModelLastTouch:     LastTouchPolicy{},
		AttributionModelLinear:        LinearPolicy{},
		AttributionModelTimeDecay:     TimeDecayPolicy{},
		AttributionModelPositionBased: PositionBasedPolicy{},
	}}
	if dataDriven != nil {
		registry.Register(AttributionModelDataDriven,
			JudgmentPolicy{ModelType: AttributionModelDataDriven, Provider: dataDriven})
	}
	if custom != nil {
		registry.Register(AttributionModelCustom,
			JudgmentPolicy{ModelType: AttributionModelCustom, Provider: custom})
	}
	return registry
}

func (registry *PolicyRegistry) Register(modelType string, policy CreditPolicy) {
	registry.policies[modelType] = policy
}

func (registry *PolicyRegistry) Get(modelType string) (CreditPolicy, error) {
	policy, exists := registry.policies[modelType]
	if !exists {
		return nil, NewInvalidStateError(ReasonUnsupportedModelType, "", "",
			"no credit policy registered for "+modelType)
	}
	return policy, nil
}
