package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
)

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   []string          `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:      http.StatusBadRequest,
	apperr.KindNotFound:        http.StatusNotFound,
	apperr.KindUnauthenticated: http.StatusUnauthorized,
	apperr.KindForbidden:       http.StatusForbidden,
	apperr.KindConflict:        http.StatusConflict,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err. Internal failures are logged with their cause and
// answered with a generic message.
func writeError(c *gin.Context, log zerolog.Logger, err error) {
	body := errorBody{RequestID: requestID(c)}
	kind := apperr.KindOf(err)
	status := StatusOf(kind)

	if kind == apperr.KindInternal {
		log.Error().Err(err).
			Str("request_id", body.RequestID).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		body.Error = "internal server error"
		c.AbortWithStatusJSON(status, body)
		return
	}

	var ae *apperr.Error
	errors.As(err, &ae)
	body.Error = ae.Message
	body.Fields = ae.Fields
	body.Details = ae.Details
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, log zerolog.Logger, field, reason string) {
	writeError(c, log, apperr.ValidationFields(map[string]string{field: reason}))
}

// idParam reads a positive integer path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
