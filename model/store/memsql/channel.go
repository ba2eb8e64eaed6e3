package memsql

import (
	"context"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

func (store *MemSQL) CreateChannel(ctx context.Context, channel *model.Channel) (*model.Channel, error) {
	logFields := log.Fields{
		"channel": channel,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if channel == nil || channel.Name == "" {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "channel name is required")
	}
	if channel.Type == "" {
		channel.Type = model.ChannelTypeOther
	}
	if !model.IsValidChannelType(channel.Type) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "",
			"invalid channel type "+channel.Type)
	}
	if channel.CostPerClick < 0 || channel.CostPerImpression < 0 {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "channel costs cannot be negative")
	}
	if err := checkContext(ctx, "create channel"); err != nil {
		return nil, err
	}

	if channel.ID == "" {
		channel.ID = U.GetUUID()
	}
	channel.IsActive = true

	db := store.getDB()
	if err := db.Create(channel).Error; err != nil {
		if IsDuplicateRecordError(err) {
			return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "channel already exists")
		}
		logCtx.WithError(err).Error("Failed to create channel.")
		return nil, persistenceFailure(err, "create channel")
	}
	return channel, nil
}

func (store *MemSQL) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	logFields := log.Fields{
		"channel_id": channelID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "get channel"); err != nil {
		return nil, err
	}

	var channel model.Channel
	db := store.getDB()
	if err := db.Where("id = ?", channelID).First(&channel).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, model.NewNotFoundError("channel", channelID)
		}
		logCtx.WithError(err).Error("Failed to get channel.")
		return nil, persistenceFailure(err, "get channel")
	}
	return &channel, nil
}

func (store *MemSQL) GetChannelsByIDs(ctx context.Context, channelIDs []string) ([]model.Channel, error) {
	logFields := log.Fields{
		"channel_ids": channelIDs,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	channels := make([]model.Channel, 0)
	if len(channelIDs) == 0 {
		return channels, nil
	}
	if err := checkContext(ctx, "get channels"); err != nil {
		return nil, err
	}

	db := store.getDB()
	if err := db.Where("id IN (?)", channelIDs).Find(&channels).Error; err != nil {
		logCtx.WithError(err).Error("Failed to get channels by ids.")
		return nil, persistenceFailure(err, "get channels")
	}
	return channels, nil
}

func (store *MemSQL) ListChannels(ctx context.Context, activeOnly bool) ([]model.Channel, error) {
	logFields := log.Fields{
		"active_only": activeOnly,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "list channels"); err != nil {
		return nil, err
	}

	channels := make([]model.Channel, 0)
	dbx := store.getDB().Order("created_at ASC, id ASC")
	if activeOnly {
		dbx = dbx.Where("is_active = ?", true)
	}
	if err := dbx.Find(&channels).Error; err != nil {
		logCtx.WithError(err).Error("Failed to list channels.")
		return nil, persistenceFailure(err, "list channels")
	}
	return channels, nil
}

// DeactivateChannel soft deactivation. Existing touchpoints and results stay.
func (store *MemSQL) DeactivateChannel(ctx context.Context, channelID string) error {
	logFields := log.Fields{
		"channel_id": channelID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "deactivate channel"); err != nil {
		return err
	}

	db := store.getDB()
	dbx := db.Model(&model.Channel{}).Where("id = ?", channelID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": U.TimeNowZ()})
	if dbx.Error != nil {
		logCtx.WithError(dbx.Error).Error("Failed to deactivate channel.")
		return persistenceFailure(dbx.Error, "deactivate channel")
	}
	if dbx.RowsAffected == 0 {
		return model.NewNotFoundError("channel", channelID)
	}
	return nil
}
