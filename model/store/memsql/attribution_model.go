package memsql

import (
	"context"
	"database/sql"
	"time"

	"mta/model/model"
	U "mta/util"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"
)

// CreateAttributionModel validates type and parameters before persisting.
func (store *MemSQL) CreateAttributionModel(ctx context.Context,
	attributionModel *model.AttributionModel) (*model.AttributionModel, error) {

	logFields := log.Fields{
		"attribution_model": attributionModel,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if attributionModel == nil || attributionModel.Name == "" {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "attribution model name is required")
	}
	if err := attributionModel.Validate(); err != nil {
		return nil, err
	}
	if err := checkContext(ctx, "create attribution model"); err != nil {
		return nil, err
	}

	if attributionModel.ID == "" {
		attributionModel.ID = U.GetUUID()
	}
	attributionModel.IsActive = true

	db := store.getDB()
	if err := db.Create(attributionModel).Error; err != nil {
		if IsDuplicateRecordError(err) {
			return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", attributionModel.ID,
				"attribution model already exists")
		}
		logCtx.WithError(err).Error("Failed to create attribution model.")
		return nil, persistenceFailure(err, "create attribution model")
	}
	return attributionModel, nil
}

func (store *MemSQL) GetAttributionModel(ctx context.Context, modelID string) (*model.AttributionModel, error) {
	logFields := log.Fields{
		"model_id": modelID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	attributionModels := make([]model.AttributionModel, 0, 1)
	err := store.selectContext(ctx, logCtx, "get attribution model",
		"SELECT * FROM attribution_models WHERE id = ? LIMIT 1",
		[]interface{}{modelID}, func(db *gorm.DB, rows *sql.Rows) error {
			var attributionModel model.AttributionModel
			if err := db.ScanRows(rows, &attributionModel); err != nil {
				return err
			}
			attributionModels = append(attributionModels, attributionModel)
			return nil
		})
	if err != nil {
		return nil, err
	}
	if len(attributionModels) == 0 {
		return nil, model.NewNotFoundError("attribution model", modelID)
	}
	return &attributionModels[0], nil
}

func (store *MemSQL) ListAttributionModels(ctx context.Context, activeOnly bool) ([]model.AttributionModel, error) {
	logFields := log.Fields{
		"active_only": activeOnly,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "list attribution models"); err != nil {
		return nil, err
	}

	attributionModels := make([]model.AttributionModel, 0)
	dbx := store.getDB().Order("created_at ASC, id ASC")
	if activeOnly {
		dbx = dbx.Where("is_active = ?", true)
	}
	if err := dbx.Find(&attributionModels).Error; err != nil {
		logCtx.WithError(err).Error("Failed to list attribution models.")
		return nil, persistenceFailure(err, "list attribution models")
	}
	return attributionModels, nil
}

func (store *MemSQL) DeactivateAttributionModel(ctx context.Context, modelID string) error {
	logFields := log.Fields{
		"model_id": modelID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "deactivate attribution model"); err != nil {
		return err
	}

	db := store.getDB()
	dbx := db.Model(&model.AttributionModel{}).Where("id = ?", modelID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": U.TimeNowZ()})
	if dbx.Error != nil {
		logCtx.WithError(dbx.Error).Error("Failed to deactivate attribution model.")
		return persistenceFailure(dbx.Error, "deactivate attribution model")
	}
	if dbx.RowsAffected == 0 {
		return model.NewNotFoundError("attribution model", modelID)
	}
	return nil
}
