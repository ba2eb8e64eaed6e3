package model

import (
	"context"
	"time"

	"mta/model/model"
)

// Model - Interface of all methods to be implemented by the stores.
// Errors returned are *model.AttributionError kinds: NotFound for missing
// entities, InvalidState for rejected input and PersistenceFailure otherwise.
type Model interface {
	// channel
	CreateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, error)
	GetChannel(ctx context.Context, channelID string) (*model.Channel, error)
	GetChannelsByIDs(ctx context.Context, channelIDs []string) ([]model.Channel, error)
	ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error)
	DeactivateChannel(ctx context.Context, channelID string) error

	// attribution_model
	CreateAttributionModel(ctx context.Context, attributionModel *model.AttributionModel) (*model.AttributionModel, error)
	GetAttributionModel(ctx context.Context, modelID string) (*model.AttributionModel, error)
	ListAttributionModels(ctx context.Context, activeOnly bool) ([]model.AttributionModel, error)
	DeactivateAttributionModel(ctx context.Context, modelID string) error

	// journey
	CreateJourney(ctx context.Context, journey *model.Journey) (*model.Journey, error)
	GetJourney(ctx context.Context, journeyID string) (*model.Journey, error)
	AppendTouchpoint(ctx context.Context, journeyID string, touchpoint *model.Touchpoint) (*model.Touchpoint, error)
	AddConversion(ctx context.Context, journeyID string, conversion *model.Conversion) (*model.Conversion, error)
	ListTouchpoints(ctx context.Context, journeyID string) ([]model.Touchpoint, error)
	ListConvertedJourneyIDs(ctx context.Context, from, to time.Time) ([]string, error)

	// attribution_result
	UpsertAttributionResults(ctx context.Context, journeyID, modelID string, results []model.AttributionResult) error
	ListAttributionResults(ctx context.Context, journeyID, modelID string) ([]model.AttributionResult, error)

	// attribution_analytics
	GetAttributedChannelTotals(ctx context.Context, modelID string, channelIDs []string,
		from, to time.Time) ([]model.ChannelAttributedTotals, error)
	GetRawChannelTouchpointTotals(ctx context.Context, channelIDs []string,
		from, to time.Time) ([]model.ChannelTouchpointTotals, error)
	GetRawChannelConversionTotals(ctx context.Context, channelIDs []string,
		from, to time.Time) ([]model.ChannelConversionTotals, error)
	ListTouchpointsInRange(ctx context.Context, channelID string, from, to time.Time) ([]model.Touchpoint, error)
}
