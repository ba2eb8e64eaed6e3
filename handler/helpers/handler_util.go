package helpers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"mta/model/model"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const INVALID_INPUT = "invalid_input"

// GetStatusCodeForError maps the attribution error kinds to http status codes.
func GetStatusCodeForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsInvalidState(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrProviderFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError responds with the status code of the error kind.
func AbortWithError(c *gin.Context, logCtx *log.Entry, err error, message string) {
	statusCode := GetStatusCodeForError(err)
	logCtx = logCtx.WithError(err).WithField("statusCode", statusCode)
	if statusCode >= http.StatusInternalServerError {
		logCtx.Error(message)
	} else {
		logCtx.Warn(message)
	}

	response := gin.H{"error": err.Error(), "kind": model.ErrorKindName(err)}
	if reason := model.GetReason(err); reason != "" {
		response["reason"] = reason
	}
	c.AbortWithStatusJSON(statusCode, response)
}

func AbortWithBadRequest(c *gin.Context, logCtx *log.Entry, err error, message string) {
	logCtx.WithError(err).Warn(message)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message, "kind": INVALID_INPUT})
}

// ParseBoolParam false when empty or invalid.
func ParseBoolParam(value string) bool {
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
