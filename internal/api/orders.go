package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/tequilas-restaurant/internal/service"
)

func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.Orders.CreateOrder(c.Request.Context(), Claims(c), req)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) MyOrders(c *gin.Context) {
	orders, err := h.Orders.GetMyOrders(c.Request.Context(), Claims(c))
	h.respond(c, http.StatusOK, orders, err)
}

// AllOrders accepts optional fromDate and toDate query parameters.
func (h *Handler) AllOrders(c *gin.Context) {
	summary, err := h.Orders.GetAllOrders(c.Request.Context(), Claims(c), c.Query("fromDate"), c.Query("toDate"))
	h.respond(c, http.StatusOK, summary, err)
}

func (h *Handler) OrderByID(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	order, err := h.Orders.GetOrderByID(c.Request.Context(), Claims(c), id)
	h.respond(c, http.StatusOK, order, err)
}
