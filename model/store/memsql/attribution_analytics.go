package memsql

import (
	"context"
	"fmt"
	"time"

	"mta/model/model"
	U "mta/util"

	log "github.com/sirupsen/logrus"
)

// getChannelFilter returns " AND <column> IN (?,...)" and its params. Empty for no channels.
func getChannelFilter(column string, channelIDs []string) (string, []interface{}) {
	if len(channelIDs) == 0 {
		return "", nil
	}
	return fmt.Sprintf(" AND %s IN (%s)", column, U.GetValuePlaceHolder(len(channelIDs))),
		U.GetInterfaceList(channelIDs)
}

// GetAttributedChannelTotals sums persisted results of the model per channel
// for results calculated within [from, to].
func (store *MemSQL) GetAttributedChannelTotals(ctx context.Context, modelID string, channelIDs []string,
	from, to time.Time) ([]model.ChannelAttributedTotals, error) {

	logFields := log.Fields{
		"model_id":    modelID,
		"channel_ids": channelIDs,
		"from":        from,
		"to":          to,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	channelFilter, channelParams := getChannelFilter("channel_id", channelIDs)
	stmnt := "SELECT channel_id, COALESCE(SUM(attributed_revenue), 0), COALESCE(SUM(attributed_conversions), 0)," +
		" COALESCE(SUM(channel_cost), 0) FROM attribution_results" +
		" WHERE model_id = ? AND calculated_at BETWEEN ? AND ?" + channelFilter +
		" GROUP BY channel_id"
	params := append([]interface{}{modelID, from.UTC(), to.UTC()}, channelParams...)

	rows, err := store.queryContext(ctx, logCtx, "attributed channel totals", stmnt, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]model.ChannelAttributedTotals, 0)
	for rows.Next() {
		var total model.ChannelAttributedTotals
		if err := rows.Scan(&total.ChannelID, &total.AttributedRevenue,
			&total.AttributedConversions, &total.ChannelCost); err != nil {
			logCtx.WithError(err).Error("Failed to scan attributed channel totals.")
			return nil, persistenceFailure(err, "attributed channel totals")
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceFailure(err, "attributed channel totals")
	}
	return totals, nil
}

// GetRawChannelTouchpointTotals touchpoint count, cost and mean engagement score per
// channel over touchpoints with timestamp within [from, to].
func (store *MemSQL) GetRawChannelTouchpointTotals(ctx context.Context, channelIDs []string,
	from, to time.Time) ([]model.ChannelTouchpointTotals, error) {

	logFields := log.Fields{
		"channel_ids": channelIDs,
		"from":        from,
		"to":          to,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	channelFilter, channelParams := getChannelFilter("channel_id", channelIDs)
	stmnt := "SELECT channel_id, COUNT(*), COALESCE(SUM(cost), 0), COALESCE(AVG(engagement_score), 0)" +
		" FROM touchpoints WHERE timestamp BETWEEN ? AND ?" + channelFilter +
		" GROUP BY channel_id"
	params := append([]interface{}{from.UTC(), to.UTC()}, channelParams...)

	rows, err := store.queryContext(ctx, logCtx, "raw channel touchpoint totals", stmnt, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]model.ChannelTouchpointTotals, 0)
	for rows.Next() {
		var total model.ChannelTouchpointTotals
		if err := rows.Scan(&total.ChannelID, &total.Touchpoints, &total.Cost, &total.AvgEngagement); err != nil {
			logCtx.WithError(err).Error("Failed to scan raw channel touchpoint totals.")
			return nil, persistenceFailure(err, "raw channel touchpoint totals")
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceFailure(err, "raw channel touchpoint totals")
	}
	return totals, nil
}

// GetRawChannelConversionTotals conversions and revenue per channel through
// touchpoint -> journey -> conversion for journeys started within [from, to].
// A journey touching a channel several times is counted once for it.
func (store *MemSQL) GetRawChannelConversionTotals(ctx context.Context, channelIDs []string,
	from, to time.Time) ([]model.ChannelConversionTotals, error) {

	logFields := log.Fields{
		"channel_ids": channelIDs,
		"from":        from,
		"to":          to,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	channelFilter, channelParams := getChannelFilter("touchpoints.channel_id", channelIDs)
	stmnt := "SELECT channel_journeys.channel_id, COUNT(conversions.id), COALESCE(SUM(conversions.revenue), 0)" +
		" FROM (SELECT DISTINCT touchpoints.channel_id AS channel_id, touchpoints.journey_id AS journey_id" +
		" FROM touchpoints INNER JOIN journeys ON journeys.id = touchpoints.journey_id" +
		" WHERE journeys.start_time BETWEEN ? AND ?" + channelFilter + ") channel_journeys" +
		" INNER JOIN conversions ON conversions.journey_id = channel_journeys.journey_id" +
		" GROUP BY channel_journeys.channel_id"
	params := append([]interface{}{from.UTC(), to.UTC()}, channelParams...)

	rows, err := store.queryContext(ctx, logCtx, "raw channel conversion totals", stmnt, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]model.ChannelConversionTotals, 0)
	for rows.Next() {
		var total model.ChannelConversionTotals
		if err := rows.Scan(&total.ChannelID, &total.Conversions, &total.Revenue); err != nil {
			logCtx.WithError(err).Error("Failed to scan raw channel conversion totals.")
			return nil, persistenceFailure(err, "raw channel conversion totals")
		}
		totals = append(totals, total)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceFailure(err, "raw channel conversion totals")
	}
	return totals, nil
}

// ListTouchpointsInRange touchpoints with timestamp within [from, to], optionally of one channel.
func (store *MemSQL) ListTouchpointsInRange(ctx context.Context, channelID string,
	from, to time.Time) ([]model.Touchpoint, error) {

	logFields := log.Fields{
		"channel_id": channelID,
		"from":       from,
		"to":         to,
	}
	defer model.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if err := checkContext(ctx, "list touchpoints in range"); err != nil {
		return nil, err
	}

	touchpoints := make([]model.Touchpoint, 0)
	dbx := store.getDB().Where("timestamp BETWEEN ? AND ?", from.UTC(), to.UTC())
	if channelID != "" {
		dbx = dbx.Where("channel_id = ?", channelID)
	}
	if err := dbx.Order("timestamp ASC").Find(&touchpoints).Error; err != nil {
		logCtx.WithError(err).Error("Failed to list touchpoints in range.")
		return nil, persistenceFailure(err, "list touchpoints in range")
	}
	return touchpoints, nil
}
