package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mta/attribution"
	redisCache "mta/cache/redis"
	C "mta/config"
	"mta/dd_attribution"
	M "mta/model"
	"mta/model/model"
	"mta/model/store"
	U "mta/util"

	log "github.com/sirupsen/logrus"
)

// ./run_attribution --env=development --db_host=localhost --db_user=mta --db_name=mta --all_converted --start=2024-03-01 --end=2024-03-31
func main() {
	env := flag.String("env", C.DEVELOPMENT, "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 3306, "")
	dbUser := flag.String("db_user", "mta", "")
	dbName := flag.String("db_name", "mta", "")
	dbPass := flag.String("db_pass", "", "")
	dbMaxOpenConns := flag.Int("db_max_open_conns", C.DefaultMaxOpenConns, "")

	redisHost := flag.String("redis_host", "", "Distributed compute lock. In process lock when empty.")
	redisPort := flag.Int("redis_port", 6379, "")

	openAIKey := flag.String("openai_api_key", "", "")
	openAIModel := flag.String("openai_model", dd_attribution.DefaultOpenAIModel, "")

	sentryDSN := flag.String("sentry_dsn", "", "Sentry DSN")

	journeyIDs := flag.String("journey_ids", "", "Comma separated journey ids.")
	modelIDs := flag.String("model_ids", "", "Comma separated model ids. All active models when empty.")
	allConverted := flag.Bool("all_converted", false, "Run for all converted journeys started between start and end.")
	start := flag.String("start", "", "Journey start window begin. RFC3339, YYYY-MM-DD or unix seconds.")
	end := flag.String("end", "", "Journey start window end. Defaults to now.")
	concurrency := flag.Int("concurrency", 0, "Defaults to half of db_max_open_conns.")
	flag.Parse()

	appName := "run_attribution"

	config := &C.Configuration{
		AppName: appName,
		Env:     *env,
		DBInfo: C.DBConf{
			Host:         *dbHost,
			Port:         *dbPort,
			User:         *dbUser,
			Name:         *dbName,
			Password:     *dbPass,
			MaxOpenConns: *dbMaxOpenConns,
		},
		Redis:           C.RedisConf{Host: *redisHost, Port: *redisPort},
		OpenAI:          C.OpenAIConf{APIKey: *openAIKey, Model: *openAIModel},
		BulkConcurrency: *concurrency,
		SentryDSN:       *sentryDSN,
	}

	if err := C.Init(config); err != nil {
		log.WithError(err).Error("Failed to initialize.")
		os.Exit(1)
	}
	defer C.SafeFlushSentryHook()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Warn("Received signal. Cancelling pending pairs.")
		cancel()
	}()

	from, err := U.ParseTimeZ(*start)
	if err != nil {
		log.WithError(err).Error("Invalid start.")
		os.Exit(1)
	}
	to, err := U.ParseTimeZ(*end)
	if err != nil {
		log.WithError(err).Error("Invalid end.")
		os.Exit(1)
	}

	modelStore := store.GetStore()
	journeys, models, err := getPairsToRun(ctx, modelStore, U.CleanSplitByDelimiter(*journeyIDs, ","),
		U.CleanSplitByDelimiter(*modelIDs, ","), *allConverted, from, to)
	if err != nil {
		log.WithError(err).Error("Failed to get journeys and models to run.")
		os.Exit(1)
	}
	if len(journeys) == 0 || len(models) == 0 {
		log.WithFields(log.Fields{"journeys": len(journeys), "models": len(models)}).
			Warn("Nothing to run. Pass --journey_ids or --all_converted.")
		return
	}

	dataDrivenProvider, customProvider := dd_attribution.GetJudgmentProviders()
	registry := model.NewPolicyRegistry(dataDrivenProvider, customProvider)
	options := attribution.GetDefaultOptions()

	engine := attribution.NewEngine(modelStore, registry, options)
	if C.GetCacheRedisPool() != nil {
		engine.WithLocker(redisCache.NewLocker(attribution.GetComputeLockTTL(options)))
	} else {
		engine.WithLocker(attribution.NewKeyedMutex())
	}

	startTime := time.Now()
	result, err := attribution.NewBulkRunner(engine, options).ComputeMany(ctx, journeys, models)
	logCtx := log.WithFields(log.Fields{
		"journeys":  len(journeys),
		"models":    len(models),
		"timeTaken": time.Since(startTime).String(),
	})
	if result != nil {
		logCtx = logCtx.WithFields(log.Fields{
			"runId":     result.RunID,
			"succeeded": len(result.Succeeded()),
			"failed":    len(result.Failed()),
		})
	}
	if err != nil {
		logCtx.WithError(err).Error("Attribution run cancelled.")
		os.Exit(1)
	}
	logCtx.Info("Attribution run completed.")
}

// getPairsToRun journeys from ids or converted journeys in window and models from ids or all active models.
func getPairsToRun(ctx context.Context, modelStore M.Model, journeyIDs, modelIDs []string,
	allConverted bool, from, to time.Time) ([]string, []string, error) {

	if allConverted {
		from, to = U.GetWindowOrDefault(from, to, U.DefaultTrendDays, U.TimeNowZ())
		convertedJourneyIDs, err := modelStore.ListConvertedJourneyIDs(ctx, from, to)
		if err != nil {
			return nil, nil, err
		}
		journeyIDs = append(journeyIDs, convertedJourneyIDs...)
	}

	if len(modelIDs) == 0 {
		attributionModels, err := modelStore.ListAttributionModels(ctx, true)
		if err != nil {
			return nil, nil, err
		}
		for _, attributionModel := range attributionModels {
			modelIDs = append(modelIDs, attributionModel.ID)
		}
	}
	return U.UniqueStrings(journeyIDs), U.UniqueStrings(modelIDs), nil
}
