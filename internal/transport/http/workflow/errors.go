package workflowhttp

import (
	"errors"
	"net/http"

	"backdesk/internal/gateway/remote"
	"backdesk/internal/indicator"
	"backdesk/internal/ingest"
	"backdesk/internal/normalize"
	"backdesk/internal/request"
	"backdesk/internal/result"
	"backdesk/internal/workflow"

	"github.com/gin-gonic/gin"
)

// abortWithError maps the error taxonomy onto a status code and a
// {"error": ...} body.
func abortWithError(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, gin.H{"error": err.Error()}

	var (
		inputErr  *ingest.InputValidationError
		cfgErr    *request.ConfigValidationError
		shapeErr  *normalize.DataShapeError
		netErr    *remote.NetworkError
		resultErr *result.ResultShapeError
	)
	switch {
	case errors.As(err, &inputErr):
		status = http.StatusBadRequest
		body["field"] = inputErr.Field
	case errors.As(err, &cfgErr):
		status = http.StatusUnprocessableEntity
		body["field"] = cfgErr.Field
	case errors.As(err, &shapeErr):
		status = http.StatusUnprocessableEntity
		keys := shapeErr.Keys
		if keys == nil {
			keys = []string{}
		}
		body["keys"] = keys
	case errors.As(err, &netErr):
		status = http.StatusBadGateway
		if netErr.Message != "" {
			body["error"] = netErr.Message
		}
		if netErr.Status != 0 {
			body["upstreamStatus"] = netErr.Status
		}
	case errors.As(err, &resultErr):
		status = http.StatusBadGateway
	case errors.Is(err, workflow.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrUnknownSession), errors.Is(err, indicator.ErrUnknownIndicator):
		status = http.StatusNotFound
	case errors.Is(err, indicator.ErrNotSelected), errors.Is(err, indicator.ErrUnknownParam):
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		log.Warnf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, body)
}
