package config

import (
	json "encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evalphobia/logrus_sentry"
	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var configFilePath = flag.String("config_filepath", "", "Optional json config file. Env variables prefixed MTA_ override it.")
var initiated bool = false

const (
	DEVELOPMENT = "development"
	STAGING     = "staging"
	PRODUCTION  = "production"
)

const (
	EnvPrefix = "mta"

	DefaultCallTimeout     = 10 * time.Second
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxOpenConns    = 20
)

type DBConf struct {
	Host         string `json:"host" envconfig:"HOST"`
	Port         int    `json:"port" envconfig:"PORT"`
	User         string `json:"user" envconfig:"USER"`
	Name         string `json:"name" envconfig:"NAME"`
	Password     string `json:"password" envconfig:"PASSWORD"`
	MaxOpenConns int    `json:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
}

type RedisConf struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

type OpenAIConf struct {
	APIKey    string `json:"api_key" envconfig:"API_KEY"`
	Model     string `json:"model" envconfig:"MODEL"`
	TimeoutMs int    `json:"timeout_ms" envconfig:"TIMEOUT_MS"`
}

type Configuration struct {
	AppName            string     `json:"app_name" envconfig:"APP_NAME"`
	Env                string     `json:"env" envconfig:"ENV"`
	Port               int        `json:"port" envconfig:"PORT"`
	DBInfo             DBConf     `json:"db" envconfig:"DB"`
	Redis              RedisConf  `json:"redis" envconfig:"REDIS"`
	OpenAI             OpenAIConf `json:"openai" envconfig:"OPENAI"`
	BulkConcurrency    int        `json:"bulk_concurrency" envconfig:"BULK_CONCURRENCY"`
	CallTimeoutMs      int        `json:"call_timeout_ms" envconfig:"CALL_TIMEOUT_MS"`
	SentryDSN          string     `json:"sentry_dsn" envconfig:"SENTRY_DSN"`
	GCPProjectID       string     `json:"gcp_project_id" envconfig:"GCP_PROJECT_ID"`
	GCPProjectLocation string     `json:"gcp_project_location" envconfig:"GCP_PROJECT_LOCATION"`
}

type Services struct {
	Db         *gorm.DB
	Redis      *redis.Pool
	SentryHook *logrus_sentry.SentryHook
}

var configuration *Configuration = nil
var services *Services = nil

func initLogging() {
	if IsDevelopment() {
		log.SetLevel(log.DebugLevel)
		return
	}
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})
}

// initConfigFromFile loads the json config file when one is given.
func initConfigFromFile(config *Configuration) error {
	if configFilePath == nil || *configFilePath == "" {
		return nil
	}

	configFileAbsPath, _ := filepath.Abs(*configFilePath)
	logCtx := log.WithFields(log.Fields{
		"file": configFileAbsPath,
	})

	raw, err := os.ReadFile(configFileAbsPath)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load config")
		return err
	}

	if err := json.Unmarshal(raw, config); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal json")
		return err
	}
	logCtx.Info("Config File Loaded")
	return nil
}

// initConfigFromEnv overrides values with MTA_ prefixed environment variables.
func initConfigFromEnv(config *Configuration) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		log.WithError(err).Error("Failed to process env config")
		return err
	}
	return nil
}

func setDefaults(config *Configuration) {
	if config.Env == "" {
		config.Env = DEVELOPMENT
	}
	if config.DBInfo.MaxOpenConns <= 0 {
		config.DBInfo.MaxOpenConns = DefaultMaxOpenConns
	}
	if config.BulkConcurrency <= 0 {
		config.BulkConcurrency = config.DBInfo.MaxOpenConns / 2
	}
	if config.BulkConcurrency <= 0 {
		config.BulkConcurrency = 1
	}
}

// LoadConfig merges the config file and env overrides on top of given
// flag based configuration.
func LoadConfig(config *Configuration) error {
	if config == nil {
		return fmt.Errorf("nil configuration")
	}
	if err := initConfigFromFile(config); err != nil {
		return err
	}
	if err := initConfigFromEnv(config); err != nil {
		return err
	}
	setDefaults(config)
	if !IsValidEnv(config.Env) {
		return fmt.Errorf("invalid env %s", config.Env)
	}
	return nil
}

func InitDB(dbConf DBConf) error {
	db, err := gorm.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConf.User,
		dbConf.Password,
		dbConf.Host,
		dbConf.Port,
		dbConf.Name))
	if err != nil {
		log.WithFields(log.Fields{"err": err}).Error("Failed Db Initialization")
		return err
	}

	// Connection Pooling and Logging.
	db.DB().SetMaxIdleConns(dbConf.MaxOpenConns / 2)
	db.DB().SetMaxOpenConns(dbConf.MaxOpenConns)
	if IsDevelopment() {
		db.LogMode(true)
	}

	getOrInitServices().Db = db
	log.Info("Db Service initialized")
	return nil
}

func InitRedis(host string, port int) {
	if host == "" {
		log.Info("Redis not configured. Skipped initialization.")
		return
	}

	address := fmt.Sprintf("%s:%d", host, port)
	// A redis that accepts connections but never replies fails within one call timeout.
	callTimeout := GetCallTimeout()
	getOrInitServices().Redis = &redis.Pool{
		MaxIdle:     10,
		MaxActive:   100,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", address,
				redis.DialConnectTimeout(callTimeout),
				redis.DialReadTimeout(callTimeout),
				redis.DialWriteTimeout(callTimeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
	log.WithField("address", address).Info("Redis Service initialized")
}

// InitSentryLogging sends error and above log entries to sentry.
func InitSentryLogging(sentryDSN string, appName string) {
	if sentryDSN == "" {
		return
	}

	hook, err := logrus_sentry.NewSentryHook(sentryDSN, []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
	})
	if err != nil {
		log.WithError(err).Error("Failed to initialize sentry hook.")
		return
	}
	hook.Timeout = 5 * time.Second
	hook.SetEnvironment(configuration.Env)
	hook.SetServerName(appName)
	log.AddHook(hook)

	getOrInitServices().SentryHook = hook
	log.Info("Sentry hook initialized")
}

func getOrInitServices() *Services {
	if services == nil {
		services = &Services{}
	}
	return services
}

// Init initializes configuration, logging and connections.
func Init(config *Configuration) error {
	if initiated {
		return fmt.Errorf("Config already initialized")
	}

	if err := LoadConfig(config); err != nil {
		return err
	}
	configuration = config
	initLogging()
	InitSentryLogging(config.SentryDSN, config.AppName)

	if err := InitDB(config.DBInfo); err != nil {
		return err
	}
	InitRedis(config.Redis.Host, config.Redis.Port)

	initiated = true
	return nil
}

// InitTestServices sets up configuration and services around the given db. Used by tests.
func InitTestServices(db *gorm.DB) {
	configuration = &Configuration{Env: DEVELOPMENT}
	setDefaults(configuration)
	services = &Services{Db: db}
}

// SafeFlushSentryHook flushes pending sentry events if hook is initialized.
func SafeFlushSentryHook() {
	if services != nil && services.SentryHook != nil {
		services.SentryHook.Flush()
	}
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

// GetCacheRedisPool nil when redis is not configured.
func GetCacheRedisPool() *redis.Pool {
	if services == nil {
		return nil
	}
	return services.Redis
}

func IsDevelopment() bool {
	return configuration == nil || strings.Compare(configuration.Env, DEVELOPMENT) == 0
}

func IsValidEnv(env string) bool {
	return env == DEVELOPMENT || env == STAGING || env == PRODUCTION
}

// GetCallTimeout timeout applied to each store and provider call.
func GetCallTimeout() time.Duration {
	if configuration == nil || configuration.CallTimeoutMs <= 0 {
		return DefaultCallTimeout
	}
	return time.Duration(configuration.CallTimeoutMs) * time.Millisecond
}

func GetBulkConcurrency() int {
	if configuration == nil || configuration.BulkConcurrency <= 0 {
		return 1
	}
	return configuration.BulkConcurrency
}

func GetProviderTimeout() time.Duration {
	if configuration == nil || configuration.OpenAI.TimeoutMs <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(configuration.OpenAI.TimeoutMs) * time.Millisecond
}
