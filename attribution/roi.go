package attribution

import (
	"context"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AnalyticsStore store methods used by the ROI aggregator.
type AnalyticsStore interface {
	GetAttributionModel(ctx context.Context, modelID string) (*model.AttributionModel, error)
	GetChannelsByIDs(ctx context.Context, channelIDs []string) ([]model.Channel, error)
	ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error)
	GetAttributedChannelTotals(ctx context.Context, modelID string, channelIDs []string,
		from, to time.Time) ([]model.ChannelAttributedTotals, error)
	GetRawChannelTouchpointTotals(ctx context.Context, channelIDs []string,
		from, to time.Time) ([]model.ChannelTouchpointTotals, error)
	GetRawChannelConversionTotals(ctx context.Context, channelIDs []string,
		from, to time.Time) ([]model.ChannelConversionTotals, error)
}

// ROIQuery empty ModelID aggregates raw touchpoint and conversion data.
// Empty ChannelIDs selects all active channels. Zero From/To default to the
// last 30 days ending now.
type ROIQuery struct {
	ModelID    string    `json:"model_id"`
	ChannelIDs []string  `json:"channel_ids"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

type ROIAggregator struct {
	store   AnalyticsStore
	options Options
}

func NewROIAggregator(store AnalyticsStore, options Options) *ROIAggregator {
	return &ROIAggregator{store: store, options: withDefaults(options)}
}

// Aggregate channel roll up in requested channel order. Every requested channel
// is present, with zeros when it has no data.
func (aggregator *ROIAggregator) Aggregate(ctx context.Context, query ROIQuery) ([]model.ChannelROI, error) {
	from, to := U.GetWindowOrDefault(query.From, query.To, U.DefaultTrendDays, aggregator.options.Clock())
	logCtx := log.WithFields(log.Fields{
		"model_id":    query.ModelID,
		"channel_ids": query.ChannelIDs,
		"from":        from,
		"to":          to,
	})

	if from.After(to) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", query.ModelID,
			"window start is after its end")
	}

	mode := model.ROIModeRaw
	if query.ModelID != "" {
		mode = model.ROIModeAttribution
		err := aggregator.withCallTimeout(ctx, func(callCtx context.Context) error {
			_, err := aggregator.store.GetAttributionModel(callCtx, query.ModelID)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	channels, err := aggregator.getChannels(ctx, query.ChannelIDs)
	if err != nil {
		return nil, err
	}
	channelIDs := make([]string, 0, len(channels))
	for _, channel := range channels {
		channelIDs = append(channelIDs, channel.ChannelID)
	}
	if len(channelIDs) == 0 {
		return channels, nil
	}
	byChannel := make(map[string]*model.ChannelROI, len(channels))
	for i := range channels {
		channels[i].Mode = mode
		channels[i].ModelID = query.ModelID
		channels[i].From = from
		channels[i].To = to
		byChannel[channels[i].ChannelID] = &channels[i]
	}

	var touchpointTotals []model.ChannelTouchpointTotals
	err = aggregator.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
		touchpointTotals, err = aggregator.store.GetRawChannelTouchpointTotals(callCtx, channelIDs, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, total := range touchpointTotals {
		if channel, exists := byChannel[total.ChannelID]; exists {
			channel.Touchpoints = total.Touchpoints
			channel.Engagement = total.AvgEngagement
			if mode == model.ROIModeRaw {
				channel.Cost = total.Cost
			}
		}
	}

	if mode == model.ROIModeAttribution {
		var attributedTotals []model.ChannelAttributedTotals
		err = aggregator.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
			attributedTotals, err = aggregator.store.GetAttributedChannelTotals(callCtx, query.ModelID,
				channelIDs, from, to)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, total := range attributedTotals {
			if channel, exists := byChannel[total.ChannelID]; exists {
				channel.Revenue = total.AttributedRevenue
				channel.Conversions = total.AttributedConversions
				channel.Cost = total.ChannelCost
			}
		}
	} else {
		var conversionTotals []model.ChannelConversionTotals
		err = aggregator.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
			conversionTotals, err = aggregator.store.GetRawChannelConversionTotals(callCtx, channelIDs, from, to)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, total := range conversionTotals {
			if channel, exists := byChannel[total.ChannelID]; exists {
				channel.Revenue = total.Revenue
				channel.Conversions = float64(total.Conversions)
			}
		}
	}

	for i := range channels {
		channels[i].DeriveMetrics()
	}
	logCtx.WithFields(log.Fields{"mode": mode, "channels": len(channels)}).Debug("Aggregated channel ROI.")
	return channels, nil
}

// Compare ranks the aggregated channels on roi, roas, revenue and engagement.
func (aggregator *ROIAggregator) Compare(ctx context.Context, query ROIQuery) (*model.ChannelComparison, error) {
	channels, err := aggregator.Aggregate(ctx, query)
	if err != nil {
		return nil, err
	}

	from, to := U.GetWindowOrDefault(query.From, query.To, U.DefaultTrendDays, aggregator.options.Clock())
	if len(channels) > 0 {
		from, to = channels[0].From, channels[0].To
	}
	mode := model.ROIModeRaw
	if query.ModelID != "" {
		mode = model.ROIModeAttribution
	}

	comparison := &model.ChannelComparison{
		Mode:     mode,
		ModelID:  query.ModelID,
		From:     from,
		To:       to,
		Channels: channels,
		Rankings: make([]model.ChannelRanking, 0, len(model.ROIComparisonMetrics)),
	}
	for _, metric := range model.ROIComparisonMetrics {
		ranking, err := model.RankChannels(channels, metric)
		if err != nil {
			return nil, err
		}
		comparison.Rankings = append(comparison.Rankings, ranking)
	}
	return comparison, nil
}

// getChannels zero valued rows for the requested channels, or all active channels.
func (aggregator *ROIAggregator) getChannels(ctx context.Context, channelIDs []string) ([]model.ChannelROI, error) {
	var channels []model.Channel
	channelIDs = U.UniqueStrings(channelIDs)
	err := aggregator.withCallTimeout(ctx, func(callCtx context.Context) (err error) {
		if len(channelIDs) == 0 {
			channels, err = aggregator.store.ListChannels(callCtx, true)
		} else {
			channels, err = aggregator.store.GetChannelsByIDs(callCtx, channelIDs)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(channelIDs) == 0 {
		for _, channel := range channels {
			channelIDs = append(channelIDs, channel.ID)
		}
	}
	channelByID := make(map[string]model.Channel, len(channels))
	for _, channel := range channels {
		channelByID[channel.ID] = channel
	}

	rows := make([]model.ChannelROI, 0, len(channelIDs))
	for _, channelID := range channelIDs {
		row := model.ChannelROI{ChannelID: channelID}
		if channel, exists := channelByID[channelID]; exists {
			row.ChannelName = channel.Name
			row.ChannelType = channel.Type
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (aggregator *ROIAggregator) withCallTimeout(ctx context.Context, call func(callCtx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, aggregator.options.CallTimeout)
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
