package handler

import (
	"mta/attribution"
	mid "mta/middleware"
	M "mta/model"
	"mta/model/model"

	"github.com/gin-gonic/gin"
)

// Services compute and analytics over the store, shared by the handlers.
type Services struct {
	Engine     *attribution.Engine
	BulkRunner *attribution.BulkRunner
	ROI        *attribution.ROIAggregator
	Trend      *attribution.TrendAnalyzer
}

var services *Services

// NewServices engine, bulk runner and analytics over the store. A nil locker
// serializes computes in process only.
func NewServices(store M.Model, registry *model.PolicyRegistry, locker attribution.Locker,
	options attribution.Options) *Services {

	if locker == nil {
		locker = attribution.NewKeyedMutex()
	}
	engine := attribution.NewEngine(store, registry, options).WithLocker(locker)
	return &Services{
		Engine:     engine,
		BulkRunner: attribution.NewBulkRunner(engine, options),
		ROI:        attribution.NewROIAggregator(store, options),
		Trend:      attribution.NewTrendAnalyzer(store, options),
	}
}

func getServices() *Services {
	return services
}

// InitRoutes registers the routes. Handlers reach the store with store.GetStore()
// and compute through the given services.
func InitRoutes(r *gin.Engine, routeServices *Services) {
	services = routeServices

	r.Use(mid.RequestIdGenerator())
	r.Use(mid.CustomCors())
	r.Use(mid.Logger())

	r.GET("/status", StatusHandler)

	// ingestion
	r.POST("/channels", CreateChannelHandler)
	r.GET("/channels", ListChannelsHandler)
	r.GET("/channels/:channel_id", GetChannelHandler)
	r.DELETE("/channels/:channel_id", DeactivateChannelHandler)
	r.POST("/journeys", CreateJourneyHandler)
	r.GET("/journeys/:journey_id", GetJourneyHandler)
	r.POST("/journeys/:journey_id/touchpoints", AppendTouchpointHandler)
	r.GET("/journeys/:journey_id/touchpoints", ListTouchpointsHandler)
	r.POST("/journeys/:journey_id/conversions", AddConversionHandler)

	// attribution
	r.POST("/attribution/models", CreateAttributionModelHandler)
	r.GET("/attribution/models", ListAttributionModelsHandler)
	r.GET("/attribution/models/:model_id", GetAttributionModelHandler)
	r.DELETE("/attribution/models/:model_id", DeactivateAttributionModelHandler)
	r.POST("/attribution/journeys/:journey_id/models/:model_id/compute", ComputeAttributionHandler)
	r.GET("/attribution/journeys/:journey_id/models/:model_id/results", ListAttributionResultsHandler)
	r.POST("/attribution/compute", BulkComputeAttributionHandler)

	// analytics
	r.POST("/analytics/roi", ROIHandler)
	r.POST("/analytics/roi/compare", ROICompareHandler)
	r.POST("/analytics/roi/compare/export", ROICompareExportHandler)
	r.GET("/analytics/trend", TrendHandler)
}
