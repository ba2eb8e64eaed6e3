package main

import (
	"context"
	"flag"
	"os"

	"mta/attribution"
	C "mta/config"
	"mta/filestore"
	"mta/model/store"
	"mta/services/disk"
	"mta/services/gcstorage"
	"mta/task/roi_report"
	U "mta/util"

	log "github.com/sirupsen/logrus"
)

// ./run_roi_report --db_host=localhost --db_user=mta --db_name=mta --model_id=<id> --from=2024-03-01 --to=2024-03-31 --bucket_name=<bucket>
func main() {
	env := flag.String("env", C.DEVELOPMENT, "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 3306, "")
	dbUser := flag.String("db_user", "mta", "")
	dbName := flag.String("db_name", "mta", "")
	dbPass := flag.String("db_pass", "", "")

	sentryDSN := flag.String("sentry_dsn", "", "Sentry DSN")

	modelID := flag.String("model_id", "", "Attribution model. Raw touchpoint data when empty.")
	channelIDs := flag.String("channel_ids", "", "Comma separated channel ids. All active channels when empty.")
	from := flag.String("from", "", "RFC3339, YYYY-MM-DD or unix seconds. Defaults to 30 days before to.")
	to := flag.String("to", "", "Defaults to now.")
	outputDir := flag.String("output_dir", ".", "Base dir for the report when no bucket is given.")
	bucketName := flag.String("bucket_name", "", "GCS bucket. Writes to output_dir when empty.")
	fileName := flag.String("file_name", "", "Defaults to roi_<from>_<to>.xlsx")
	flag.Parse()

	appName := "run_roi_report"

	config := &C.Configuration{
		AppName: appName,
		Env:     *env,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		SentryDSN: *sentryDSN,
	}
	if err := C.Init(config); err != nil {
		log.WithError(err).Error("Failed to initialize.")
		os.Exit(1)
	}
	defer C.SafeFlushSentryHook()

	fromTime, err := U.ParseTimeZ(*from)
	if err != nil {
		log.WithError(err).Error("Invalid from.")
		os.Exit(1)
	}
	toTime, err := U.ParseTimeZ(*to)
	if err != nil {
		log.WithError(err).Error("Invalid to.")
		os.Exit(1)
	}

	var fileManager filestore.FileManager
	if *bucketName != "" {
		gcsDriver, err := gcstorage.New(*bucketName)
		if err != nil {
			log.WithError(err).Error("Failed to init gcs driver.")
			os.Exit(1)
		}
		defer gcsDriver.Close()
		fileManager = gcsDriver
	} else {
		fileManager = disk.New(*outputDir)
	}

	aggregator := attribution.NewROIAggregator(store.GetStore(), attribution.GetDefaultOptions())
	status, ok := roi_report.ExportROIComparison(context.Background(), aggregator, fileManager, map[string]interface{}{
		"modelID":    *modelID,
		"channelIDs": U.CleanSplitByDelimiter(*channelIDs, ","),
		"from":       fromTime,
		"to":         toTime,
		"fileName":   *fileName,
	})
	if !ok {
		log.WithField("status", status).Error("ROI report failed.")
		os.Exit(1)
	}
	log.WithField("status", status).Info("ROI report written.")
}
