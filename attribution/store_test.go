package attribution

import (
	"context"
	"sync"
	"time"

	"mta/model/model"
	U "mta/util"
)

var testTime = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

// testStore in memory store with failure injection.
type testStore struct {
	mu                sync.Mutex
	journeys          map[string]*model.Journey
	touchpoints       map[string][]model.Touchpoint
	attributionModels map[string]*model.AttributionModel
	results           map[string][]model.AttributionResult
	channels          []model.Channel

	attributedTotals []model.ChannelAttributedTotals
	touchpointTotals []model.ChannelTouchpointTotals
	conversionTotals []model.ChannelConversionTotals

	upsertErr   error
	callDelay   time.Duration
	modelLoads  int
	inflight    int
	maxInflight int
}

func newTestStore() *testStore {
	return &testStore{
		journeys:          make(map[string]*model.Journey),
		touchpoints:       make(map[string][]model.Touchpoint),
		attributionModels: make(map[string]*model.AttributionModel),
		results:           make(map[string][]model.AttributionResult),
	}
}

func (store *testStore) addJourney(journeyID string, value float64, channelIDs []string, costs []float64) {
	store.journeys[journeyID] = &model.Journey{ID: journeyID, UserID: "u1", StartTime: testTime,
		ConversionValue: value, HasConversion: value > 0, TouchpointCount: len(channelIDs)}
	for i, channelID := range channelIDs {
		store.touchpoints[journeyID] = append(store.touchpoints[journeyID], model.Touchpoint{
			ID:                U.GetUUID(),
			JourneyID:         journeyID,
			ChannelID:         channelID,
			Type:              model.TouchpointTypeClick,
			Timestamp:         testTime.AddDate(0, 0, 3*i),
			PositionInJourney: i + 1,
			Cost:              costs[i],
		})
	}
}

func (store *testStore) addModel(modelID, modelType string) *model.AttributionModel {
	attributionModel := &model.AttributionModel{ID: modelID, Name: modelID, Type: modelType, IsActive: true}
	store.attributionModels[modelID] = attributionModel
	return attributionModel
}

func (store *testStore) storedResults(journeyID, modelID string) []model.AttributionResult {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.results[journeyID+":"+modelID]
}

// enter simulates a store call taking callDelay, bounded by ctx.
func (store *testStore) enter(ctx context.Context) error {
	store.mu.Lock()
	store.inflight++
	if store.inflight > store.maxInflight {
		store.maxInflight = store.inflight
	}
	delay := store.callDelay
	store.mu.Unlock()

	defer func() {
		store.mu.Lock()
		store.inflight--
		store.mu.Unlock()
	}()

	if delay == 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (store *testStore) GetJourney(ctx context.Context, journeyID string) (*model.Journey, error) {
	if err := store.enter(ctx); err != nil {
		return nil, err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	journey, exists := store.journeys[journeyID]
	if !exists {
		return nil, model.NewNotFoundError("journey", journeyID)
	}
	journeyCopy := *journey
	return &journeyCopy, nil
}

func (store *testStore) ListTouchpoints(ctx context.Context, journeyID string) ([]model.Touchpoint, error) {
	if err := store.enter(ctx); err != nil {
		return nil, err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	touchpoints := make([]model.Touchpoint, len(store.touchpoints[journeyID]))
	copy(touchpoints, store.touchpoints[journeyID])
	return touchpoints, nil
}

func (store *testStore) GetAttributionModel(ctx context.Context, modelID string) (*model.AttributionModel, error) {
	if err := store.enter(ctx); err != nil {
		return nil, err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.modelLoads++
	attributionModel, exists := store.attributionModels[modelID]
	if !exists {
		return nil, model.NewNotFoundError("attribution model", modelID)
	}
	return attributionModel, nil
}

func (store *testStore) UpsertAttributionResults(ctx context.Context, journeyID, modelID string,
	results []model.AttributionResult) error {
	if err := store.enter(ctx); err != nil {
		return err
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.upsertErr != nil {
		return store.upsertErr
	}
	stored := make([]model.AttributionResult, len(results))
	copy(stored, results)
	store.results[journeyID+":"+modelID] = stored
	return nil
}

func (store *testStore) GetChannelsByIDs(ctx context.Context, channelIDs []string) ([]model.Channel, error) {
	channels := make([]model.Channel, 0)
	for _, channel := range store.channels {
		if U.StringValueIn(channel.ID, channelIDs) {
			channels = append(channels, channel)
		}
	}
	return channels, nil
}

func (store *testStore) ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error) {
	channels := make([]model.Channel, 0)
	for _, channel := range store.channels {
		if !activeOnly || channel.IsActive {
			channels = append(channels, channel)
		}
	}
	return channels, nil
}

func (store *testStore) GetAttributedChannelTotals(ctx context.Context, modelID string, channelIDs []string,
	from, to time.Time) ([]model.ChannelAttributedTotals, error) {
	totals := make([]model.ChannelAttributedTotals, 0)
	for _, total := range store.attributedTotals {
		if U.StringValueIn(total.ChannelID, channelIDs) {
			totals = append(totals, total)
		}
	}
	return totals, nil
}

func (store *testStore) GetRawChannelTouchpointTotals(ctx context.Context, channelIDs []string,
	from, to time.Time) ([]model.ChannelTouchpointTotals, error) {
	totals := make([]model.ChannelTouchpointTotals, 0)
	for _, total := range store.touchpointTotals {
		if U.StringValueIn(total.ChannelID, channelIDs) {
			totals = append(totals, total)
		}
	}
	return totals, nil
}

func (store *testStore) GetRawChannelConversionTotals(ctx context.Context, channelIDs []string,
	from, to time.Time) ([]model.ChannelConversionTotals, error) {
	totals := make([]model.ChannelConversionTotals, 0)
	for _, total := range store.conversionTotals {
		if U.StringValueIn(total.ChannelID, channelIDs) {
			totals = append(totals, total)
		}
	}
	return totals, nil
}

func (store *testStore) ListTouchpointsInRange(ctx context.Context, channelID string,
	from, to time.Time) ([]model.Touchpoint, error) {
	touchpoints := make([]model.Touchpoint, 0)
	for _, journeyTouchpoints := range store.touchpoints {
		for _, touchpoint := range journeyTouchpoints {
			if channelID != "" && touchpoint.ChannelID != channelID {
				continue
			}
			if touchpoint.Timestamp.Before(from) || touchpoint.Timestamp.After(to) {
				continue
			}
			touchpoints = append(touchpoints, touchpoint)
		}
	}
	return touchpoints, nil
}

func testOptions() Options {
	return Options{
		CallTimeout:     time.Second,
		ProviderTimeout: time.Second,
		Concurrency:     4,
		Clock:           func() time.Time { return testTime.AddDate(0, 0, 10) },
	}
}
