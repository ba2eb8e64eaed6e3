package attribution

import (
	"context"
	"time"

	"mta/metrics"
	"mta/model/model"
	U "mta/util"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PairOutcome result of one (journey, model) compute in a bulk run.
type PairOutcome struct {
	JourneyID   string `json:"journey_id"`
	ModelID     string `json:"model_id"`
	ResultCount int    `json:"result_count"`
	Err         error  `json:"-"`
}

func (outcome PairOutcome) Succeeded() bool {
	return outcome.Err == nil
}

type BulkResult struct {
	RunID string `json:"run_id"`
	// ByModel results of succeeded pairs per model. Every requested model has an entry.
	ByModel map[string][]model.AttributionResult `json:"by_model"`
	// Outcomes one per pair, journeys major, in request order.
	Outcomes []PairOutcome `json:"outcomes"`
}

func (result *BulkResult) Succeeded() []PairOutcome {
	succeeded := make([]PairOutcome, 0)
	for _, outcome := range result.Outcomes {
		if outcome.Succeeded() {
			succeeded = append(succeeded, outcome)
		}
	}
	return succeeded
}

func (result *BulkResult) Failed() []PairOutcome {
	failed := make([]PairOutcome, 0)
	for _, outcome := range result.Outcomes {
		if !outcome.Succeeded() {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// BulkRunner computes journeys x models on a bounded worker pool. A failing
// pair never aborts the run.
type BulkRunner struct {
	engine  *Engine
	options Options
}

func NewBulkRunner(engine *Engine, options Options) *BulkRunner {
	options = withDefaults(options)
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}
	return &BulkRunner{engine: engine, options: options}
}

// ComputeMany returns an error only when ctx is done before all pairs ran.
// Pairs not started by then carry ctx.Err() as their outcome.
func (runner *BulkRunner) ComputeMany(ctx context.Context, journeyIDs, modelIDs []string) (*BulkResult, error) {
	journeyIDs = U.UniqueStrings(journeyIDs)
	modelIDs = U.UniqueStrings(modelIDs)

	result := &BulkResult{
		RunID:    xid.New().String(),
		ByModel:  make(map[string][]model.AttributionResult, len(modelIDs)),
		Outcomes: make([]PairOutcome, 0, len(journeyIDs)*len(modelIDs)),
	}
	for _, modelID := range modelIDs {
		result.ByModel[modelID] = make([]model.AttributionResult, 0)
	}
	for _, journeyID := range journeyIDs {
		for _, modelID := range modelIDs {
			result.Outcomes = append(result.Outcomes, PairOutcome{JourneyID: journeyID, ModelID: modelID})
		}
	}

	logCtx := log.WithFields(log.Fields{
		"run_id":      result.RunID,
		"journeys":    len(journeyIDs),
		"models":      len(modelIDs),
		"concurrency": runner.options.Concurrency,
	})
	logCtx.Info("Started bulk attribution run.")
	startTime := time.Now()

	engine, err := runner.getBatchEngine()
	if err != nil {
		logCtx.WithError(err).Warn("Failed to create model cache. Running without it.")
		engine = runner.engine
	}

	pairResults := make([][]model.AttributionResult, len(result.Outcomes))
	var group errgroup.Group
	group.SetLimit(runner.options.Concurrency)

	for i := range result.Outcomes {
		if ctx.Err() != nil {
			for j := i; j < len(result.Outcomes); j++ {
				result.Outcomes[j].Err = ctx.Err()
			}
			break
		}

		index := i
		group.Go(func() error {
			outcome := &result.Outcomes[index]
			if err := ctx.Err(); err != nil {
				outcome.Err = err
				return nil
			}

			results, err := engine.Compute(ctx, outcome.JourneyID, outcome.ModelID)
			if err != nil {
				outcome.Err = err
				logPairFailure(logCtx, outcome)
				metrics.Increment(metrics.IncrBulkPairFailed)
				return nil
			}
			pairResults[index] = results
			outcome.ResultCount = len(results)
			metrics.Increment(metrics.IncrBulkPairSucceeded)
			return nil
		})
	}
	group.Wait()

	for i, outcome := range result.Outcomes {
		if outcome.Succeeded() {
			result.ByModel[outcome.ModelID] = append(result.ByModel[outcome.ModelID], pairResults[i]...)
		}
	}

	metrics.RecordLatencySince(metrics.LatencyAttributionBulk, startTime)
	logCtx.WithFields(log.Fields{
		"succeeded":        len(result.Succeeded()),
		"failed":           len(result.Failed()),
		"time_taken_in_ms": time.Since(startTime).Milliseconds(),
	}).Info("Finished bulk attribution run.")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func logPairFailure(logCtx *log.Entry, outcome *PairOutcome) {
	pairLogCtx := logCtx.WithFields(log.Fields{
		"journey_id": outcome.JourneyID,
		"model_id":   outcome.ModelID,
		"error_kind": model.ErrorKindName(outcome.Err),
		"reason":     model.GetReason(outcome.Err),
	}).WithError(outcome.Err)

	if model.IsNotFound(outcome.Err) || model.IsInvalidState(outcome.Err) {
		pairLogCtx.Warn("Skipped attribution pair.")
		return
	}
	pairLogCtx.Error("Failed attribution pair.")
}

// getBatchEngine engine whose attribution models are cached for this run only.
func (runner *BulkRunner) getBatchEngine() (*Engine, error) {
	cache, err := lru.New(runner.options.ModelCacheSize)
	if err != nil {
		return nil, err
	}
	return runner.engine.withStore(&modelCachingStore{JourneyStore: runner.engine.store, cache: cache}), nil
}

type cachedModel struct {
	attributionModel *model.AttributionModel
	err              error
}

// modelCachingStore caches models and terminal model errors. Transient
// failures are not cached.
type modelCachingStore struct {
	JourneyStore
	cache *lru.Cache
}

func (store *modelCachingStore) GetAttributionModel(ctx context.Context,
	modelID string) (*model.AttributionModel, error) {

	if value, exists := store.cache.Get(modelID); exists {
		cached := value.(cachedModel)
		return cached.attributionModel, cached.err
	}

	attributionModel, err := store.JourneyStore.GetAttributionModel(ctx, modelID)
	if err == nil || errors.Is(err, model.ErrNotFound) {
		store.cache.Add(modelID, cachedModel{attributionModel: attributionModel, err: err})
	}
	return attributionModel, err
}
