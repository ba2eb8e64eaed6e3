package handler

import (
	"encoding/json"
	"net/http"
	"time"

	H "mta/handler/helpers"
	mid "mta/middleware"
	"mta/model/model"
	"mta/model/store"
	U "mta/util"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	log "github.com/sirupsen/logrus"
)

func StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ChannelPayload struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	CostPerClick      float64 `json:"cost_per_click"`
	CostPerImpression float64 `json:"cost_per_impression"`
}

type JourneyPayload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
}

type TouchpointPayload struct {
	ChannelID       string    `json:"channel_id"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	Cost            float64   `json:"cost"`
	TimeSpent       float64   `json:"time_spent"`
	PagesViewed     int       `json:"pages_viewed"`
	EngagementScore float64   `json:"engagement_score"`
}

type ConversionPayload struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Revenue   float64   `json:"revenue"`
	Quantity  int       `json:"quantity"`
}

func getLogCtx(c *gin.Context) *log.Entry {
	return log.WithFields(log.Fields{
		"reqId": U.GetScopeByKeyAsString(c, mid.SCOPE_REQ_ID),
	})
}

// decodePayload strict json decode of the request body into payload and copy to entity.
func decodePayload(c *gin.Context, logCtx *log.Entry, payload interface{}, entity interface{}) bool {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Json decode failed.")
		return false
	}
	if entity == nil {
		return true
	}
	if err := copier.Copy(entity, payload); err != nil {
		H.AbortWithBadRequest(c, logCtx, err, "Invalid payload.")
		return false
	}
	return true
}

func CreateChannelHandler(c *gin.Context) {
	logCtx := getLogCtx(c)

	var payload ChannelPayload
	var channel model.Channel
	if !decodePayload(c, logCtx, &payload, &channel) {
		return
	}

	created, err := store.GetStore().CreateChannel(c.Request.Context(), &channel)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to create channel.")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func ListChannelsHandler(c *gin.Context) {
	logCtx := getLogCtx(c)
	channels, err := store.GetStore().ListChannels(c.Request.Context(), H.ParseBoolParam(c.Query("active_only")))
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to list channels.")
		return
	}
	c.JSON(http.StatusOK, channels)
}

func GetChannelHandler(c *gin.Context) {
	logCtx := getLogCtx(c).WithField("channel_id", c.Param("channel_id"))
	channel, err := store.GetStore().GetChannel(c.Request.Context(), c.Param("channel_id"))
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to get channel.")
		return
	}
	c.JSON(http.StatusOK, channel)
}

func DeactivateChannelHandler(c *gin.Context) {
	logCtx := getLogCtx(c).WithField("channel_id", c.Param("channel_id"))
	if err := store.GetStore().DeactivateChannel(c.Request.Context(), c.Param("channel_id")); err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to deactivate channel.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("channel_id"), "is_active": false})
}

func CreateJourneyHandler(c *gin.Context) {
	logCtx := getLogCtx(c)

	var payload JourneyPayload
	var journey model.Journey
	if !decodePayload(c, logCtx, &payload, &journey) {
		return
	}

	created, err := store.GetStore().CreateJourney(c.Request.Context(), &journey)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to create journey.")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func GetJourneyHandler(c *gin.Context) {
	logCtx := getLogCtx(c).WithField("journey_id", c.Param("journey_id"))
	journey, err := store.GetStore().GetJourney(c.Request.Context(), c.Param("journey_id"))
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to get journey.")
		return
	}
	c.JSON(http.StatusOK, journey)
}

func AppendTouchpointHandler(c *gin.Context) {
	journeyID := c.Param("journey_id")
	logCtx := getLogCtx(c).WithField("journey_id", journeyID)

	var payload TouchpointPayload
	var touchpoint model.Touchpoint
	if !decodePayload(c, logCtx, &payload, &touchpoint) {
		return
	}

	created, err := store.GetStore().AppendTouchpoint(c.Request.Context(), journeyID, &touchpoint)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to append touchpoint.")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func ListTouchpointsHandler(c *gin.Context) {
	journeyID := c.Param("journey_id")
	logCtx := getLogCtx(c).WithField("journey_id", journeyID)

	touchpoints, err := store.GetStore().ListTouchpoints(c.Request.Context(), journeyID)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to list touchpoints.")
		return
	}
	c.JSON(http.StatusOK, touchpoints)
}

func AddConversionHandler(c *gin.Context) {
	journeyID := c.Param("journey_id")
	logCtx := getLogCtx(c).WithField("journey_id", journeyID)

	var payload ConversionPayload
	var conversion model.Conversion
	if !decodePayload(c, logCtx, &payload, &conversion) {
		return
	}

	created, err := store.GetStore().AddConversion(c.Request.Context(), journeyID, &conversion)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to add conversion.")
		return
	}
	c.JSON(http.StatusCreated, created)
}
