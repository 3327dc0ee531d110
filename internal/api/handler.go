// Package api adapts the services to HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/judyrop/tequilas-restaurant/internal/service"
)

// Handler holds the gin handlers for every route.
type Handler struct {
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Identity *service.IdentityService
	Log      zerolog.Logger
}

// bindJSON decodes the body into v and answers 400 when it cannot.
func (h *Handler) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:     "invalid request body: " + err.Error(),
			RequestID: requestID(c),
		})
		return false
	}
	return true
}

func (h *Handler) id(c *gin.Context) (uint, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, h.Log, "id", "must be a positive integer")
	}
	return id, ok
}

// respond writes v with status, or the error.
func (h *Handler) respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	if v == nil {
		c.Status(status)
		return
	}
	c.JSON(status, v)
}
