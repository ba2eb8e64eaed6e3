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

func (store *MemSQL) CreateJourney(ctx context.Context, journey *model.Journey) (*model.Journey, error) {
	logFields := log.Fields{
		"journey": journey,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if journey == nil || journey.UserID == "" {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, "", "", "journey user_id is required")
	}
	if err := checkContext(ctx, "create journey"); err != nil {
		return nil, err
	}

	if journey.ID == "" {
		journey.ID = U.GetUUID()
	}
	if journey.StartTime.IsZero() {
		journey.StartTime = U.TimeNowZ()
	}
	journey.StartTime = journey.StartTime.UTC()
	// Derived from appended touchpoints and conversions only.
	journey.EndTime = nil
	journey.ConversionValue = 0
	journey.HasConversion = false
	journey.TouchpointCount = 0

	db := store.getDB()
	if err := db.Create(journey).Error; err != nil {
		if IsDuplicateRecordError(err) {
			return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journey.ID, "", "journey already exists")
		}
		logCtx.WithError(err).Error("Failed to create journey.")
		return nil, persistenceFailure(err, "create journey")
	}
	return journey, nil
}

func (store *MemSQL) GetJourney(ctx context.Context, journeyID string) (*model.Journey, error) {
	logFields := log.Fields{
		"journey_id": journeyID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	journeys := make([]model.Journey, 0, 1)
	err := store.selectContext(ctx, logCtx, "get journey", "SELECT * FROM journeys WHERE id = ? LIMIT 1",
		[]interface{}{journeyID}, func(db *gorm.DB, rows *sql.Rows) error {
			var journey model.Journey
			if err := db.ScanRows(rows, &journey); err != nil {
				return err
			}
			journeys = append(journeys, journey)
			return nil
		})
	if err != nil {
		return nil, err
	}
	if len(journeys) == 0 {
		return nil, model.NewNotFoundError("journey", journeyID)
	}
	return &journeys[0], nil
}

func getJourneyWithDB(db *gorm.DB, journeyID string) (*model.Journey, error) {
	var journey model.Journey
	if err := db.Where("id = ?", journeyID).First(&journey).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, model.NewNotFoundError("journey", journeyID)
		}
		return nil, persistenceFailure(err, "get journey")
	}
	return &journey, nil
}

// AppendTouchpoint assigns the next position in the journey and increments its
// touchpoint_count in the same transaction. A concurrent append on the same journey
// fails on the journey, position unique index and can be retried.
func (store *MemSQL) AppendTouchpoint(ctx context.Context, journeyID string,
	touchpoint *model.Touchpoint) (*model.Touchpoint, error) {

	logFields := log.Fields{
		"journey_id": journeyID,
		"touchpoint": touchpoint,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if touchpoint == nil || touchpoint.ChannelID == "" {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, "", "touchpoint channel_id is required")
	}
	if touchpoint.Type == "" {
		touchpoint.Type = model.TouchpointTypeClick
	}
	if !model.IsValidTouchpointType(touchpoint.Type) {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, "",
			"invalid touchpoint type "+touchpoint.Type)
	}
	if !U.IsFinite(touchpoint.Cost) || touchpoint.Cost < 0 {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, "", "touchpoint cost cannot be negative")
	}

	err := store.withTransaction(ctx, logCtx, "append touchpoint", func(tx *gorm.DB) error {
		journey, err := getJourneyWithDB(tx, journeyID)
		if err != nil {
			return err
		}

		var channel model.Channel
		if err := tx.Where("id = ?", touchpoint.ChannelID).First(&channel).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return model.NewNotFoundError("channel", touchpoint.ChannelID)
			}
			return err
		}

		if touchpoint.ID == "" {
			touchpoint.ID = U.GetUUID()
		}
		if touchpoint.Timestamp.IsZero() {
			touchpoint.Timestamp = U.TimeNowZ()
		}
		touchpoint.Timestamp = touchpoint.Timestamp.UTC()
		touchpoint.JourneyID = journeyID
		touchpoint.PositionInJourney = journey.TouchpointCount + 1

		if err := tx.Create(touchpoint).Error; err != nil {
			return err
		}

		return tx.Model(&model.Journey{}).Where("id = ?", journeyID).
			UpdateColumns(map[string]interface{}{
				"touchpoint_count": gorm.Expr("touchpoint_count + 1"),
				"updated_at":       U.TimeNowZ(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return touchpoint, nil
}

// AddConversion adds the revenue to the journey's conversion_value, marks it
// converted and moves end_time forward to the conversion time.
func (store *MemSQL) AddConversion(ctx context.Context, journeyID string,
	conversion *model.Conversion) (*model.Conversion, error) {

	logFields := log.Fields{
		"journey_id": journeyID,
		"conversion": conversion,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if conversion == nil {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, "", "conversion is required")
	}
	if !U.IsFinite(conversion.Revenue) || conversion.Revenue < 0 {
		return nil, model.NewInvalidStateError(model.ReasonInvalidInput, journeyID, "", "conversion revenue cannot be negative")
	}

	err := store.withTransaction(ctx, logCtx, "add conversion", func(tx *gorm.DB) error {
		journey, err := getJourneyWithDB(tx, journeyID)
		if err != nil {
			return err
		}

		if conversion.ID == "" {
			conversion.ID = U.GetUUID()
		}
		if conversion.Type == "" {
			conversion.Type = "purchase"
		}
		if conversion.Quantity <= 0 {
			conversion.Quantity = 1
		}
		if conversion.Timestamp.IsZero() {
			conversion.Timestamp = U.TimeNowZ()
		}
		conversion.Timestamp = conversion.Timestamp.UTC()
		conversion.JourneyID = journeyID

		if err := tx.Create(conversion).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"conversion_value": gorm.Expr("conversion_value + ?", conversion.Revenue),
			"has_conversion":   true,
			"updated_at":       U.TimeNowZ(),
		}
		if journey.EndTime == nil || conversion.Timestamp.After(*journey.EndTime) {
			updates["end_time"] = conversion.Timestamp
		}
		return tx.Model(&model.Journey{}).Where("id = ?", journeyID).UpdateColumns(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return conversion, nil
}

// ListTouchpoints ordered by position.
func (store *MemSQL) ListTouchpoints(ctx context.Context, journeyID string) ([]model.Touchpoint, error) {
	logFields := log.Fields{
		"journey_id": journeyID,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	touchpoints := make([]model.Touchpoint, 0)
	err := store.selectContext(ctx, logCtx, "list touchpoints",
		"SELECT * FROM touchpoints WHERE journey_id = ? ORDER BY position_in_journey ASC",
		[]interface{}{journeyID}, func(db *gorm.DB, rows *sql.Rows) error {
			var touchpoint model.Touchpoint
			if err := db.ScanRows(rows, &touchpoint); err != nil {
				return err
			}
			touchpoints = append(touchpoints, touchpoint)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return touchpoints, nil
}

// ListConvertedJourneyIDs journeys with a positive conversion value started within [from, to].
func (store *MemSQL) ListConvertedJourneyIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	logFields := log.Fields{
		"from": from,
		"to":   to,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "list converted journeys"); err != nil {
		return nil, err
	}

	journeyIDs := make([]string, 0)
	db := store.getDB()
	err := db.Model(&model.Journey{}).
		Where("has_conversion = ? AND conversion_value > 0 AND start_time BETWEEN ? AND ?", true, from.UTC(), to.UTC()).
		Order("start_time ASC, id ASC").Pluck("id", &journeyIDs).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed to list converted journeys.")
		return nil, persistenceFailure(err, "list converted journeys")
	}
	return journeyIDs, nil
}
