package handler

import (
	"errors"
	"net/http"

	"mta/attribution"
	H "mta/handler/helpers"
	"mta/model/model"
	"mta/model/store"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	log "github.com/sirupsen/logrus"
)

type AttributionModelPayload struct {
	ID                      string   `json:"id"`
	Name                    string   `json:"name"`
	Type                    string   `json:"type"`
	HalflifeDays            *float64 `json:"halflife_days"`
	FirstWeight             *float64 `json:"first_weight"`
	MiddleWeight            *float64 `json:"middle_weight"`
	LastWeight              *float64 `json:"last_weight"`
	PreserveTwoTouchWeights bool     `json:"preserve_two_touch_weights"`
}

type BulkComputePayload struct {
	JourneyIDs []string `json:"journey_ids"`
	ModelIDs   []string `json:"model_ids"`
}

type PairOutcomePayload struct {
	JourneyID   string `json:"journey_id"`
	ModelID     string `json:"model_id"`
	ResultCount int    `json:"result_count"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type BulkComputeResponsePayload struct {
	RunID     string                               `json:"run_id"`
	ByModel   map[string][]model.AttributionResult `json:"by_model"`
	Outcomes  []PairOutcomePayload                 `json:"outcomes"`
	Succeeded int                                  `json:"succeeded"`
	Failed    int                                  `json:"failed"`
}

func CreateAttributionModelHandler(c *gin.Context) {
	logCtx := getLogCtx(c)

	var payload AttributionModelPayload
	var attributionModel model.AttributionModel
	if !decodePayload(c, logCtx, &payload, &attributionModel) {
		return
	}

	created, err := store.GetStore().CreateAttributionModel(c.Request.Context(), &attributionModel)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to create attribution model.")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func ListAttributionModelsHandler(c *gin.Context) {
	logCtx := getLogCtx(c)
	attributionModels, err := store.GetStore().ListAttributionModels(c.Request.Context(),
		H.ParseBoolParam(c.Query("active_only")))
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to list attribution models.")
		return
	}
	c.JSON(http.StatusOK, attributionModels)
}

func GetAttributionModelHandler(c *gin.Context) {
	logCtx := getLogCtx(c).WithField("model_id", c.Param("model_id"))
	attributionModel, err := store.GetStore().GetAttributionModel(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to get attribution model.")
		return
	}
	c.JSON(http.StatusOK, attributionModel)
}

func DeactivateAttributionModelHandler(c *gin.Context) {
	logCtx := getLogCtx(c).WithField("model_id", c.Param("model_id"))
	if err := store.GetStore().DeactivateAttributionModel(c.Request.Context(), c.Param("model_id")); err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to deactivate attribution model.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("model_id"), "is_active": false})
}

// ComputeAttributionHandler computes and persists the pair. dry_run=true only previews.
func ComputeAttributionHandler(c *gin.Context) {
	journeyID, modelID := c.Param("journey_id"), c.Param("model_id")
	dryRun := H.ParseBoolParam(c.Query("dry_run"))
	logCtx := getLogCtx(c).WithFields(log.Fields{
		"journey_id": journeyID,
		"model_id":   modelID,
		"dry_run":    dryRun,
	})

	var results []model.AttributionResult
	var err error
	if dryRun {
		results, err = getServices().Engine.Preview(c.Request.Context(), journeyID, modelID)
	} else {
		results, err = getServices().Engine.Compute(c.Request.Context(), journeyID, modelID)
	}
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Attribution compute failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "dry_run": dryRun})
}

func ListAttributionResultsHandler(c *gin.Context) {
	journeyID, modelID := c.Param("journey_id"), c.Param("model_id")
	logCtx := getLogCtx(c).WithFields(log.Fields{"journey_id": journeyID, "model_id": modelID})

	results, err := store.GetStore().ListAttributionResults(c.Request.Context(), journeyID, modelID)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to list attribution results.")
		return
	}
	c.JSON(http.StatusOK, results)
}

func getPairOutcomePayloads(outcomes []attribution.PairOutcome) ([]PairOutcomePayload, error) {
	payloads := make([]PairOutcomePayload, 0, len(outcomes))
	if err := copier.Copy(&payloads, &outcomes); err != nil {
		return nil, err
	}
	for i := range outcomes {
		if outcomes[i].Err == nil {
			continue
		}
		payloads[i].Error = outcomes[i].Err.Error()
		payloads[i].ErrorKind = model.ErrorKindName(outcomes[i].Err)
		payloads[i].Reason = model.GetReason(outcomes[i].Err)
	}
	return payloads, nil
}

// BulkComputeAttributionHandler responds with per pair outcomes. Failed pairs
// do not fail the request.
func BulkComputeAttributionHandler(c *gin.Context) {
	logCtx := getLogCtx(c)

	var payload BulkComputePayload
	if !decodePayload(c, logCtx, &payload, nil) {
		return
	}
	if len(payload.JourneyIDs) == 0 || len(payload.ModelIDs) == 0 {
		H.AbortWithBadRequest(c, logCtx, errors.New("empty journey_ids or model_ids"),
			"journey_ids and model_ids are required.")
		return
	}
	logCtx = logCtx.WithFields(log.Fields{
		"journeys": len(payload.JourneyIDs),
		"models":   len(payload.ModelIDs),
	})

	result, err := getServices().BulkRunner.ComputeMany(c.Request.Context(), payload.JourneyIDs, payload.ModelIDs)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Bulk attribution compute cancelled.")
		return
	}

	outcomes, err := getPairOutcomePayloads(result.Outcomes)
	if err != nil {
		H.AbortWithError(c, logCtx, err, "Failed to build bulk compute response.")
		return
	}
	c.JSON(http.StatusOK, BulkComputeResponsePayload{
		RunID:     result.RunID,
		ByModel:   result.ByModel,
		Outcomes:  outcomes,
		Succeeded: len(result.Succeeded()),
		Failed:    len(result.Failed()),
	})
}
