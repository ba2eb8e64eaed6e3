package attribution

import (
	"time"

	C "mta/config"
	U "mta/util"

	"github.com/imdario/mergo"
	log "github.com/sirupsen/logrus"
)

const DefaultModelCacheSize = 256

// Options zero values are replaced by defaults from config.
type Options struct {
	// CallTimeout bounds every store call.
	CallTimeout time.Duration
	// ProviderTimeout bounds credit allocation, i.e. judgment provider calls.
	ProviderTimeout time.Duration
	// Concurrency of the bulk runner worker pool.
	Concurrency int
	// ModelCacheSize attribution models cached per bulk run.
	ModelCacheSize int
	// Clock used for calculated_at and default windows.
	Clock func() time.Time
}

func GetDefaultOptions() Options {
	return Options{
		CallTimeout:     C.GetCallTimeout(),
		ProviderTimeout: C.GetProviderTimeout(),
		Concurrency:     C.GetBulkConcurrency(),
		ModelCacheSize:  DefaultModelCacheSize,
		Clock:           U.TimeNowZ,
	}
}

func withDefaults(options Options) Options {
	if err := mergo.Merge(&options, GetDefaultOptions()); err != nil {
		log.WithError(err).Error("Failed to merge attribution options with defaults.")
		return GetDefaultOptions()
	}
	return options
}
