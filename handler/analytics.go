package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"mta/attribution"
	"mta/filestore"
	H "mta/handler/helpers"
	"mta/task/roi_report"
	U "mta/util"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ROIRequestPayload from and to accept RFC3339, YYYY-MM-DD or unix seconds.
type ROIRequestPayload struct {
	ModelID    string   `json:"model_id"`
	ChannelIDs []string `json:"channel_ids"`
	From       string   `json:"from"`
	To         string   `json:"to"`
}

func getROIQuery(c *gin.Context, logCtx *log.Entry) (attribution.ROIQuery, bool) {
	var payload ROIRequestPayload
	if !decodePayload(c, logCtx, &payload, nil) {
		return attribution.ROIQuery{}, false
	}

	from, err := U.ParseTimeZ(payload.From)
	if err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Invalid from.")
		return attribution.ROIQuery{}, false
	}
	to, err := U.ParseTimeZ(payload.To)
	if err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Invalid to.")
		return attribution.ROIQuery{}, false
	}

	return attribution.ROIQuery{
		ModelID:    payload.ModelID,
		ChannelIDs: payload.ChannelIDs,
		From:       from,
		To:         to,
	}, true
}

func ROIHandler(c *gin.Context) {
	logCtx := getLogCtx(c)
	query, ok := getROIQuery(c, logCtx)
	if !ok {
		return
	}

	channels, err := getServices().ROI.Aggregate(c.Request.Context(), query)
	if err != nil {
		H.AbortWithError(c, logCtx.WithField("query", query), err, "ROI aggregation failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func ROICompareHandler(c *gin.Context) {
	logCtx := getLogCtx(c)
	query, ok := getROIQuery(c, logCtx)
	if !ok {
		return
	}

	comparison, err := getServices().ROI.Compare(c.Request.Context(), query)
	if err != nil {
		H.AbortWithError(c, logCtx.WithField("query", query), err, "Channel comparison failed.")
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// ROICompareExportHandler channel comparison as an xlsx attachment.
func ROICompareExportHandler(c *gin.Context) {
	logCtx := getLogCtx(c)
	query, ok := getROIQuery(c, logCtx)
	if !ok {
		return
	}

	comparison, err := getServices().ROI.Compare(c.Request.Context(), query)
	if err != nil {
		H.AbortWithError(c, logCtx.WithField("query", query), err, "Channel comparison failed.")
		return
	}

	var buffer bytes.Buffer
	if err := roi_report.WriteComparison(&buffer, comparison); err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to write roi report.")
		return
	}

	fileName := filestore.GetROIReportFileName(comparison.From, comparison.To)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, roi_report.ContentType, buffer.Bytes())
}

func TrendHandler(c *gin.Context) {
	logCtx := getLogCtx(c)

	from, err := U.ParseTimeZ(c.Query("from"))
	if err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Invalid from.")
		return
	}
	to, err := U.ParseTimeZ(c.Query("to"))
	if err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Invalid to.")
		return
	}

	query := attribution.TrendQuery{
		Metric:    c.Query("metric"),
		ChannelID: c.Query("channel_id"),
		From:      from,
		To:        to,
		Interval:  c.Query("interval"),
		ZeroFill:  H.ParseBoolParam(c.Query("zero_fill")),
	}

	points, err := getServices().Trend.Trend(c.Request.Context(), query)
	if err != nil {
		H.AbortWithError(c, logCtx.WithField("query", query), err, "Trend analysis failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": query.Metric, "points": points})
}
