package roi_report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"mta/attribution"
	"mta/filestore"
	"mta/model/model"
	U "mta/util"

	"github.com/360EntSecGroup-Skylar/excelize/v2"
	log "github.com/sirupsen/logrus"
)

const (
	SheetName   = "ROI"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportColumns = []string{
	"Channel ID",
	"Channel",
	"Channel Type",
	"Touchpoints",
	"Cost",
	"Conversions",
	"Revenue",
	"ROI (%)",
	"ROAS",
	"Avg Conversion Value",
	"Cost Per Conversion",
	"Conversion Rate",
	"Engagement",
}

func getReportRow(channel *model.ChannelROI) []interface{} {
	return []interface{}{
		channel.ChannelID,
		channel.ChannelName,
		channel.ChannelType,
		channel.Touchpoints,
		channel.Cost,
		channel.Conversions,
		channel.Revenue,
		channel.ROI,
		channel.ROAS,
		channel.AvgConversionValue,
		channel.CostPerConversion,
		channel.ConversionRate,
		channel.Engagement,
	}
}

func setRow(file *excelize.File, row int, values []interface{}) error {
	for i, value := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(SheetName, cell, value); err != nil {
			return err
		}
	}
	return nil
}

// BuildComparisonWorkbook one row per channel in comparison order, followed by
// a rank column per comparison metric. Window and mode are on the first row.
func BuildComparisonWorkbook(comparison *model.ChannelComparison) (*excelize.File, error) {
	if comparison == nil {
		return nil, fmt.Errorf("nil comparison")
	}

	file := excelize.NewFile()
	file.SetSheetName("Sheet1", SheetName)

	summary := []interface{}{
		"Mode", comparison.Mode,
		"Model", comparison.ModelID,
		"From", comparison.From.UTC().Format(time.RFC3339),
		"To", comparison.To.UTC().Format(time.RFC3339),
	}
	if err := setRow(file, 1, summary); err != nil {
		return nil, err
	}

	header := make([]interface{}, 0, len(reportColumns)+len(comparison.Rankings))
	for _, column := range reportColumns {
		header = append(header, column)
	}
	for _, ranking := range comparison.Rankings {
		header = append(header, "Rank by "+ranking.Metric)
	}
	if err := setRow(file, 3, header); err != nil {
		return nil, err
	}

	for i := range comparison.Channels {
		channel := &comparison.Channels[i]
		row := getReportRow(channel)
		for _, ranking := range comparison.Rankings {
			row = append(row, ranking.Ranks[channel.ChannelID])
		}
		if err := setRow(file, 4+i, row); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func WriteComparison(w io.Writer, comparison *model.ChannelComparison) error {
	file, err := BuildComparisonWorkbook(comparison)
	if err != nil {
		return err
	}
	return file.Write(w)
}

// ExportROIComparison task: compares channels for the configured query and
// writes the workbook through fileManager. configs["fileName"] overrides the
// generated name.
func ExportROIComparison(ctx context.Context, aggregator *attribution.ROIAggregator,
	fileManager filestore.FileManager, configs map[string]interface{}) (map[string]interface{}, bool) {

	status := make(map[string]interface{})

	if fileManager == nil {
		status["error"] = "missing file manager"
		return status, false
	}

	query := attribution.ROIQuery{}
	query.ModelID, _ = configs["modelID"].(string)
	query.ChannelIDs, _ = configs["channelIDs"].([]string)
	query.From, _ = configs["from"].(time.Time)
	query.To, _ = configs["to"].(time.Time)

	logCtx := log.WithFields(log.Fields{"query": query, "bucket": fileManager.GetBucketName()})

	comparison, err := aggregator.Compare(ctx, query)
	if err != nil {
		logCtx.WithError(err).Error("Failed to compare channels.")
		status["error"] = err.Error()
		status["errorKind"] = model.ErrorKindName(err)
		return status, false
	}

	var buffer bytes.Buffer
	if err := WriteComparison(&buffer, comparison); err != nil {
		logCtx.WithError(err).Error("Failed to write report.")
		status["error"] = err.Error()
		return status, false
	}

	dir, fileName := fileManager.GetROIReportFilePathAndName(comparison.ModelID, comparison.From, comparison.To)
	if name, _ := configs["fileName"].(string); name != "" {
		fileName = name
	}
	if err := fileManager.Create(dir, fileName, &buffer); err != nil {
		logCtx.WithError(err).Error("Failed to store report.")
		status["error"] = err.Error()
		return status, false
	}

	status["dir"] = dir
	status["fileName"] = fileName
	status["channels"] = len(comparison.Channels)
	status["mode"] = comparison.Mode
	status["from"] = comparison.From.Format(U.DATETIME_FORMAT_DB)
	status["to"] = comparison.To.Format(U.DATETIME_FORMAT_DB)
	logCtx.WithField("status", status).Info("Exported ROI comparison.")
	return status, true
}
