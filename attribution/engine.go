package attribution

import (
	"context"
	"time"

	"mta/metrics"
	"mta/model/model"
	U "mta/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// JourneyStore store methods the engine depends on.
type JourneyStore interface {
	GetJourney(ctx context.Context, journeyID string) (*model.Journey, error)
	ListTouchpoints(ctx context.Context, journeyID string) ([]model.Touchpoint, error)
	GetAttributionModel(ctx context.Context, modelID string) (*model.AttributionModel, error)
	UpsertAttributionResults(ctx context.Context, journeyID, modelID string, results []model.AttributionResult) error
}

// Engine computes and persists attribution results for one (journey, model) pair.
// Concurrent computes of the same pair are last writer wins unless a Locker is set.
type Engine struct {
	store    JourneyStore
	registry *model.PolicyRegistry
	locker   Locker
	options  Options
}

func NewEngine(store JourneyStore, registry *model.PolicyRegistry, options Options) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		options:  withDefaults(options),
	}
}

// WithLocker serializes computes per (journey, model) using locker.
func (engine *Engine) WithLocker(locker Locker) *Engine {
	engine.locker = locker
	return engine
}

// withStore copy of the engine over another store.
func (engine *Engine) withStore(store JourneyStore) *Engine {
	engineCopy := *engine
	engineCopy.store = store
	return &engineCopy
}

// Compute allocates the journey's conversion value across channels with the
// model's policy and replaces the persisted results of the pair.
func (engine *Engine) Compute(ctx context.Context, journeyID, modelID string) ([]model.AttributionResult, error) {
	return engine.compute(ctx, journeyID, modelID, true)
}

// Preview same as Compute without persisting.
func (engine *Engine) Preview(ctx context.Context, journeyID, modelID string) ([]model.AttributionResult, error) {
	return engine.compute(ctx, journeyID, modelID, false)
}

func (engine *Engine) compute(ctx context.Context, journeyID, modelID string,
	persist bool) ([]model.AttributionResult, error) {

	logCtx := log.WithFields(log.Fields{
		"journey_id": journeyID,
		"model_id":   modelID,
		"persist":    persist,
	})
	startTime := time.Now()

	if persist && engine.locker != nil {
		unlock, err := engine.locker.Lock(ctx, GetComputeLockKey(journeyID, modelID))
		if err != nil {
			logCtx.WithError(err).Error("Failed to acquire attribution compute lock.")
			return nil, engine.failed(logCtx, journeyID, modelID,
				model.NewPersistenceFailureError(err, "acquire compute lock"))
		}
		defer unlock()
	}

	results, err := engine.computeResults(ctx, logCtx, journeyID, modelID, persist)
	if err != nil {
		return nil, engine.failed(logCtx, journeyID, modelID, err)
	}

	metrics.Increment(metrics.IncrAttributionComputed)
	metrics.CountInt(metrics.CountAttributionResultRows, int64(len(results)))
	metrics.RecordLatencySince(metrics.LatencyAttributionCompute, startTime)
	logCtx.WithFields(log.Fields{"results": len(results),
		"time_taken_in_ms": time.Since(startTime).Milliseconds()}).Debug("Computed attribution.")
	return results, nil
}

func (engine *Engine) failed(logCtx *log.Entry, journeyID, modelID string, err error) error {
	err = model.WithPair(err, journeyID, modelID)
	metrics.Increment(metrics.IncrAttributionFailed)
	if errors.Is(err, model.ErrProviderFailure) {
		metrics.Increment(metrics.IncrAttributionProviderFailure)
	}
	logCtx.WithField("error_kind", model.ErrorKindName(err)).WithError(err).Debug("Attribution compute failed.")
	return err
}

func (engine *Engine) computeResults(ctx context.Context, logCtx *log.Entry, journeyID, modelID string,
	persist bool) ([]model.AttributionResult, error) {

	var journey *model.Journey
	err := engine.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
		journey, err = engine.store.GetJourney(callCtx, journeyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !journey.IsConverted() {
		return nil, model.NewInvalidStateError(model.ReasonNoConversion, journeyID, modelID,
			"journey has no conversion with a positive value")
	}

	var attributionModel *model.AttributionModel
	err = engine.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
		attributionModel, err = engine.store.GetAttributionModel(callCtx, modelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := attributionModel.Validate(); err != nil {
		return nil, err
	}

	var touchpoints []model.Touchpoint
	err = engine.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
		touchpoints, err = engine.store.ListTouchpoints(callCtx, journeyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(touchpoints) == 0 {
		return nil, model.NewInvalidStateError(model.ReasonNoTouchpoints, journeyID, modelID,
			"journey has no touchpoints")
	}
	touchpoints = model.SortTouchpointsByPosition(touchpoints)
	if !model.HasContiguousPositions(touchpoints) {
		logCtx.WithField("touchpoints", len(touchpoints)).Warn("Touchpoint positions are not contiguous.")
	}

	policy, err := engine.registry.Get(attributionModel.Type)
	if err != nil {
		return nil, err
	}

	credits, err := engine.allocate(ctx, policy, attributionModel.Type, touchpoints,
		journey.ConversionValue, attributionModel.Params())
	if err != nil {
		return nil, err
	}

	results := buildAttributionResults(journeyID, modelID, journey.ConversionValue, touchpoints, credits,
		engine.options.Clock())
	if !persist {
		return results, nil
	}

	err = engine.withCallTimeout(ctx, func(callCtx context.Context) error {
		return engine.store.UpsertAttributionResults(callCtx, journeyID, modelID, results)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (engine *Engine) allocate(ctx context.Context, policy model.CreditPolicy, modelType string,
	touchpoints []model.Touchpoint, conversionValue float64, params model.ModelParams) (*model.ChannelCredits, error) {

	providerCtx, cancel := context.WithTimeout(ctx, engine.options.ProviderTimeout)
	defer cancel()

	startTime := time.Now()
	credits, err := policy.Allocate(providerCtx, touchpoints, conversionValue, params)
	if modelType == model.AttributionModelDataDriven || modelType == model.AttributionModelCustom {
		metrics.RecordLatencySince(metrics.LatencyJudgmentProvider, startTime)
	}
	if err != nil {
		var attributionErr *model.AttributionError
		if errors.As(err, &attributionErr) {
			return nil, err
		}
		return nil, model.NewProviderFailureError(err, "credit allocation failed")
	}
	return credits, nil
}

// withCallTimeout runs a store call bounded by CallTimeout. Untyped errors,
// including deadlines, surface as PersistenceFailure.
func (engine *Engine) withCallTimeout(ctx context.Context, call func(callCtx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, engine.options.CallTimeout)
	defer cancel()

	err := call(callCtx)
	if err == nil {
		return nil
	}
	var attributionErr *model.AttributionError
	if errors.As(err, &attributionErr) {
		return err
	}
	return model.NewPersistenceFailureError(err, "store call failed")
}

// buildAttributionResults one result per credited channel, in credit order.
func buildAttributionResults(journeyID, modelID string, conversionValue float64, touchpoints []model.Touchpoint,
	credits *model.ChannelCredits, calculatedAt time.Time) []model.AttributionResult {

	channelCost := make(map[string]float64)
	for _, touchpoint := range touchpoints {
		channelCost[touchpoint.ChannelID] += touchpoint.Cost
	}

	results := make([]model.AttributionResult, 0, credits.Len())
	for _, credit := range credits.List() {
		share := credit.Amount / conversionValue
		cost := channelCost[credit.ChannelID]
		roi, roas := model.GetResultROIAndROAS(credit.Amount, cost)
		results = append(results, model.AttributionResult{
			ID:                    U.GetUUID(),
			JourneyID:             journeyID,
			ModelID:               modelID,
			ChannelID:             credit.ChannelID,
			Credit:                share,
			AttributedRevenue:     credit.Amount,
			AttributedConversions: share,
			ChannelCost:           cost,
			ROI:                   roi,
			ROAS:                  roas,
			CalculatedAt:          calculatedAt.UTC(),
		})
	}
	return results
}
