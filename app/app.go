package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mta/attribution"
	redisCache "mta/cache/redis"
	C "mta/config"
	"mta/dd_attribution"
	H "mta/handler"
	"mta/metrics"
	"mta/model/model"
	"mta/model/store"
	"mta/model/store/memsql"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ./app --env=development --api_http_port=8080 --db_host=localhost --db_port=3306 --db_user=mta --db_name=mta --db_pass=mta --redis_host=localhost --redis_port=6379
func main() {
	env := flag.String("env", C.DEVELOPMENT, "")
	port := flag.Int("api_http_port", 8080, "")

	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 3306, "")
	dbUser := flag.String("db_user", "mta", "")
	dbName := flag.String("db_name", "mta", "")
	dbPass := flag.String("db_pass", "", "")
	dbMaxOpenConns := flag.Int("db_max_open_conns", C.DefaultMaxOpenConns, "")
	autoMigrate := flag.Bool("auto_migrate", false, "Create or update tables on start.")

	redisHost := flag.String("redis_host", "", "Distributed compute lock. In process lock when empty.")
	redisPort := flag.Int("redis_port", 6379, "")

	openAIKey := flag.String("openai_api_key", "", "Enables the LLM judgment provider for data_driven models.")
	openAIModel := flag.String("openai_model", dd_attribution.DefaultOpenAIModel, "")
	openAITimeoutMs := flag.Int("openai_timeout_ms", 0, "")

	bulkConcurrency := flag.Int("bulk_concurrency", 0, "Defaults to half of db_max_open_conns.")
	callTimeoutMs := flag.Int("call_timeout_ms", 0, "")

	sentryDSN := flag.String("sentry_dsn", "", "Sentry DSN")
	gcpProjectID := flag.String("gcp_project_id", "", "Metrics are exported to stackdriver when set.")
	gcpProjectLocation := flag.String("gcp_project_location", "", "")
	flag.Parse()

	config := &C.Configuration{
		AppName: "mta_server",
		Env:     *env,
		Port:    *port,
		DBInfo: C.DBConf{
			Host:         *dbHost,
			Port:         *dbPort,
			User:         *dbUser,
			Name:         *dbName,
			Password:     *dbPass,
			MaxOpenConns: *dbMaxOpenConns,
		},
		Redis: C.RedisConf{
			Host: *redisHost,
			Port: *redisPort,
		},
		OpenAI: C.OpenAIConf{
			APIKey:    *openAIKey,
			Model:     *openAIModel,
			TimeoutMs: *openAITimeoutMs,
		},
		BulkConcurrency:    *bulkConcurrency,
		CallTimeoutMs:      *callTimeoutMs,
		SentryDSN:          *sentryDSN,
		GCPProjectID:       *gcpProjectID,
		GCPProjectLocation: *gcpProjectLocation,
	}

	// Initialize configs and connections.
	err := C.Init(config)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize.")
		return
	}
	defer C.SafeFlushSentryHook()

	if *autoMigrate {
		if err := memsql.AutoMigrate(C.GetServices().Db); err != nil {
			log.WithError(err).Fatal("Failed to migrate tables.")
		}
	}

	exporter := metrics.InitMetrics(config.Env, config.AppName, config.GCPProjectID, config.GCPProjectLocation)
	if exporter != nil {
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	dataDrivenProvider, customProvider := dd_attribution.GetJudgmentProviders()
	registry := model.NewPolicyRegistry(dataDrivenProvider, customProvider)

	var locker attribution.Locker
	if C.GetCacheRedisPool() != nil {
		locker = redisCache.NewLocker(attribution.GetComputeLockTTL(attribution.GetDefaultOptions()))
	}

	if !C.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	H.InitRoutes(r, H.NewServices(store.GetStore(), registry, locker, attribution.GetDefaultOptions()))

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(C.GetConfig().Port),
		Handler: r,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed.")
		}
	}()
	log.WithField("port", C.GetConfig().Port).Info("Server started.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed.")
	}
	log.Info("Server stopped.")
}
