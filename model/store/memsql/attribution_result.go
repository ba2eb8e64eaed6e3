package memsql

import (
	"context"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// UpsertAttributionResults replaces the full row set of the (journey, model) pair
// in one transaction. Readers never observe a partially written set.
func (store *MemSQL) UpsertAttributionResults(ctx context.Context, journeyID, modelID string,
	results []model.AttributionResult) error {

	logFields := log.Fields{
		"journey_id": journeyID,
		"model_id":   modelID,
		"results":    len(results),
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if journeyID == "" || modelID == "" {
		return model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, modelID,
			"journey_id and model_id are required")
	}
	for i := range results {
		if results[i].JourneyID != journeyID || results[i].ModelID != modelID {
			return model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, modelID,
				"result does not belong to the journey and model")
		}
	}

	return store.withTransaction(ctx, logCtx, "upsert attribution results", func(tx *gorm.DB) error {
		err := tx.Where("journey_id = ? AND model_id = ?", journeyID, modelID).
			Delete(&model.AttributionResult{}).Error
		if err != nil {
			return err
		}

		for i := range results {
			if results[i].ID == "" {
				results[i].ID = U.GetUUID()
			}
			if err := tx.Create(&results[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (store *MemSQL) ListAttributionResults(ctx context.Context, journeyID,
	modelID string) ([]model.AttributionResult, error) {

	logFields := log.Fields{
		"journey_id": journeyID,
		"model_id":   modelID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "list attribution results"); err != nil {
		return nil, err
	}

	results := make([]model.AttributionResult, 0)
	db := store.getDB()
	err := db.Where("journey_id = ? AND model_id = ?", journeyID, modelID).
		Order("attributed_revenue DESC, channel_id ASC").Find(&results).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to list attribution results.")
		return nil, persistenceFailure(err, "list attribution results")
	}
	return results, nil
}
