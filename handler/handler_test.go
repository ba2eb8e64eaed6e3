package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mta/attribution"
	C "mta/config"
	"mta/dd_attribution"
	H "mta/handler/helpers"
	"mta/model/model"
	"mta/model/store/memsql"
	"mta/task/roi_report"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

func setupTestRouter(t *testing.T) *gin.Engine {
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	require.NoError(t, memsql.AutoMigrate(db))
	C.InitTestServices(db)
	t.Cleanup(func() { db.Close() })

	registry := model.NewPolicyRegistry(dd_attribution.EngagementJudgmentProvider{},
		dd_attribution.EngagementJudgmentProvider{})
	options := attribution.Options{
		CallTimeout:     5 * time.Second,
		ProviderTimeout: 5 * time.Second,
		Concurrency:     2,
		Clock:           func() time.Time { return testTime.AddDate(0, 0, 1) },
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	InitRoutes(r, NewServices(memsql.GetStore(), registry, nil, options))
	return r
}

func sendRequest(t *testing.T, r *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, response interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), response), w.Body.String())
}

// createTestJourney converted journey with search (cost 50) and email touchpoints and revenue 150.
func createTestJourney(t *testing.T, r *gin.Engine) (journeyID, modelID string) {
	for _, channel := range []ChannelPayload{
		{ID: "search", Name: "Search", Type: model.ChannelTypePaidSearch},
		{ID: "email", Name: "Email", Type: model.ChannelTypeEmail},
	} {
		w := sendRequest(t, r, http.MethodPost, "/channels", channel)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	var journey model.Journey
	w := sendRequest(t, r, http.MethodPost, "/journeys", JourneyPayload{UserID: "u1", StartTime: testTime})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeResponse(t, w, &journey)

	for i, touchpoint := range []TouchpointPayload{
		{ChannelID: "search", Type: model.TouchpointTypeClick, Timestamp: testTime, Cost: 50},
		{ChannelID: "email", Type: model.TouchpointTypeView, Timestamp: testTime.Add(time.Hour)},
	} {
		var created model.Touchpoint
		w := sendRequest(t, r, http.MethodPost, "/journeys/"+journey.ID+"/touchpoints", touchpoint)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		decodeResponse(t, w, &created)
		assert.Equal(t, i+1, created.PositionInJourney)
	}

	w = sendRequest(t, r, http.MethodPost, "/journeys/"+journey.ID+"/conversions",
		ConversionPayload{Type: "purchase", Timestamp: testTime.Add(2 * time.Hour), Revenue: 150})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var attributionModel model.AttributionModel
	w = sendRequest(t, r, http.MethodPost, "/attribution/models",
		AttributionModelPayload{Name: "Linear", Type: model.AttributionModelLinear})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decodeResponse(t, w, &attributionModel)

	return journey.ID, attributionModel.ID
}

func TestComputeAttributionHandler(t *testing.T) {
	r := setupTestRouter(t)
	journeyID, modelID := createTestJourney(t, r)
	computePath := "/attribution/journeys/" + journeyID + "/models/" + modelID + "/compute"
	resultsPath := "/attribution/journeys/" + journeyID + "/models/" + modelID + "/results"

	var response struct {
		Results []model.AttributionResult `json:"results"`
		DryRun  bool                      `json:"dry_run"`
	}
	w := sendRequest(t, r, http.MethodPost, computePath+"?dry_run=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &response)
	assert.True(t, response.DryRun)
	assert.Len(t, response.Results, 2)

	var persisted []model.AttributionResult
	w = sendRequest(t, r, http.MethodGet, resultsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &persisted)
	assert.Len(t, persisted, 0)

	w = sendRequest(t, r, http.MethodPost, computePath, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &response)
	assert.False(t, response.DryRun)
	require.Len(t, response.Results, 2)
	assert.Equal(t, "search", response.Results[0].ChannelID)
	assert.InDelta(t, 75, response.Results[0].AttributedRevenue, 1e-9)
	require.NotNil(t, response.Results[0].ROI)
	assert.InDelta(t, 50, *response.Results[0].ROI, 1e-9)
	assert.Nil(t, response.Results[1].ROI)

	w = sendRequest(t, r, http.MethodGet, resultsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &persisted)
	assert.Len(t, persisted, 2)
}

func TestComputeAttributionHandlerErrors(t *testing.T) {
	r := setupTestRouter(t)
	journeyID, modelID := createTestJourney(t, r)

	w := sendRequest(t, r, http.MethodPost, "/attribution/journeys/unknown/models/"+modelID+"/compute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = sendRequest(t, r, http.MethodPost, "/attribution/journeys/"+journeyID+"/models/unknown/compute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var journey model.Journey
	w = sendRequest(t, r, http.MethodPost, "/journeys", JourneyPayload{UserID: "u2", StartTime: testTime})
	require.Equal(t, http.StatusCreated, w.Code)
	decodeResponse(t, w, &journey)

	var errorResponse map[string]string
	w = sendRequest(t, r, http.MethodPost, "/attribution/journeys/"+journey.ID+"/models/"+modelID+"/compute", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decodeResponse(t, w, &errorResponse)
	assert.Equal(t, "invalid_state", errorResponse["kind"])
	assert.Equal(t, model.ReasonNoConversion, errorResponse["reason"])
}

func TestBulkComputeAttributionHandler(t *testing.T) {
	r := setupTestRouter(t)
	journeyID, modelID := createTestJourney(t, r)

	var response BulkComputeResponsePayload
	w := sendRequest(t, r, http.MethodPost, "/attribution/compute",
		BulkComputePayload{JourneyIDs: []string{journeyID, "missing"}, ModelIDs: []string{modelID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &response)

	assert.NotEmpty(t, response.RunID)
	assert.Equal(t, 1, response.Succeeded)
	assert.Equal(t, 1, response.Failed)
	assert.Len(t, response.ByModel[modelID], 2)
	require.Len(t, response.Outcomes, 2)
	assert.Equal(t, journeyID, response.Outcomes[0].JourneyID)
	assert.Equal(t, 2, response.Outcomes[0].ResultCount)
	assert.Empty(t, response.Outcomes[0].Error)
	assert.Equal(t, "missing", response.Outcomes[1].JourneyID)
	assert.Equal(t, "not_found", response.Outcomes[1].ErrorKind)

	w = sendRequest(t, r, http.MethodPost, "/attribution/compute", BulkComputePayload{JourneyIDs: []string{journeyID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = sendRequest(t, r, http.MethodPost, "/attribution/compute", map[string]interface{}{"journeys": []string{"j1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestROIHandlers(t *testing.T) {
	r := setupTestRouter(t)
	journeyID, modelID := createTestJourney(t, r)
	w := sendRequest(t, r, http.MethodPost, "/attribution/journeys/"+journeyID+"/models/"+modelID+"/compute", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	query := ROIRequestPayload{ModelID: modelID, From: "2024-03-01", To: "2024-03-31"}

	var roiResponse struct {
		Channels []model.ChannelROI `json:"channels"`
	}
	w = sendRequest(t, r, http.MethodPost, "/analytics/roi", query)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &roiResponse)
	channels := make(map[string]model.ChannelROI)
	for _, channel := range roiResponse.Channels {
		channels[channel.ChannelID] = channel
	}
	require.Len(t, channels, 2)
	assert.InDelta(t, 75, channels["search"].Revenue, 1e-9)
	assert.InDelta(t, 50, channels["search"].ROI, 1e-9)
	assert.Equal(t, 0.0, channels["email"].ROI)

	var comparison model.ChannelComparison
	w = sendRequest(t, r, http.MethodPost, "/analytics/roi/compare", query)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &comparison)
	ranking, exists := comparison.GetRanking(model.ROIMetricROI)
	require.True(t, exists)
	assert.Equal(t, 1, ranking.Ranks["search"])

	w = sendRequest(t, r, http.MethodPost, "/analytics/roi/compare/export", query)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, roi_report.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roi_20240301_20240331.xlsx")

	w = sendRequest(t, r, http.MethodPost, "/analytics/roi", ROIRequestPayload{ModelID: "unknown"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = sendRequest(t, r, http.MethodPost, "/analytics/roi", ROIRequestPayload{From: "last week"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrendHandler(t *testing.T) {
	r := setupTestRouter(t)
	createTestJourney(t, r)

	var response struct {
		Metric string             `json:"metric"`
		Points []model.TrendPoint `json:"points"`
	}
	w := sendRequest(t, r, http.MethodGet,
		"/analytics/trend?metric=cost&from=2024-03-01&to=2024-03-07&interval=day", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &response)
	require.Len(t, response.Points, 1)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), response.Points[0].BucketStart.UTC())
	assert.InDelta(t, 50, response.Points[0].Value, 1e-9)

	w = sendRequest(t, r, http.MethodGet,
		"/analytics/trend?metric=touchpoints&channel_id=email&from=2024-03-01&to=2024-03-03&zero_fill=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeResponse(t, w, &response)
	require.Len(t, response.Points, 3)
	assert.Equal(t, 1.0, response.Points[0].Value)
	assert.Equal(t, 0.0, response.Points[2].Value)

	w = sendRequest(t, r, http.MethodGet, "/analytics/trend?metric=clicks", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = sendRequest(t, r, http.MethodGet, "/analytics/trend?metric=cost&from=someday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestionHandlers(t *testing.T) {
	r := setupTestRouter(t)
	journeyID, modelID := createTestJourney(t, r)

	var journey model.Journey
	w := sendRequest(t, r, http.MethodGet, "/journeys/"+journeyID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &journey)
	assert.True(t, journey.IsConverted())
	assert.Equal(t, 2, journey.TouchpointCount)
	assert.InDelta(t, 150, journey.ConversionValue, 1e-9)

	var touchpoints []model.Touchpoint
	w = sendRequest(t, r, http.MethodGet, "/journeys/"+journeyID+"/touchpoints", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &touchpoints)
	assert.Len(t, touchpoints, 2)

	w = sendRequest(t, r, http.MethodPost, "/journeys/"+journeyID+"/touchpoints",
		TouchpointPayload{ChannelID: "unknown", Type: model.TouchpointTypeClick})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var errorResponse map[string]string
	w = sendRequest(t, r, http.MethodPost, "/channels", map[string]interface{}{"name": "Bad", "budget": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decodeResponse(t, w, &errorResponse)
	assert.Equal(t, H.INVALID_INPUT, errorResponse["kind"])

	w = sendRequest(t, r, http.MethodDelete, "/channels/email", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var channels []model.Channel
	w = sendRequest(t, r, http.MethodGet, "/channels?active_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &channels)
	require.Len(t, channels, 1)
	assert.Equal(t, "search", channels[0].ID)

	w = sendRequest(t, r, http.MethodDelete, "/attribution/models/"+modelID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var attributionModel model.AttributionModel
	w = sendRequest(t, r, http.MethodGet, "/attribution/models/"+modelID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &attributionModel)
	assert.False(t, attributionModel.IsActive)

	w = sendRequest(t, r, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestHandlersUseConfiguredStore(t *testing.T) {
	setupTestRouter(t)

	// handlers registered on their own reach the store through config services.
	r := gin.New()
	r.POST("/channels", CreateChannelHandler)
	r.GET("/channels/:channel_id", GetChannelHandler)

	w := sendRequest(t, r, http.MethodPost, "/channels",
		ChannelPayload{ID: "display", Name: "Display", Type: model.ChannelTypeDisplay})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var channel model.Channel
	w = sendRequest(t, r, http.MethodGet, "/channels/display", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &channel)
	assert.Equal(t, "Display", channel.Name)

	stored, err := memsql.GetStore().GetChannel(context.Background(), "display")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelTypeDisplay, stored.Type)
}
