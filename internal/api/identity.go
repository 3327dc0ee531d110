package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/tequilas-restaurant/internal/service"
)

func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	user, err := h.Identity.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User registered successfully", "user": user})
}

func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.Identity.Login(c.Request.Context(), req)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) LoginWithIDToken(c *gin.Context) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.Identity.LoginWithIDToken(c.Request.Context(), req.IDToken)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) Me(c *gin.Context) {
	me, err := h.Identity.Me(Claims(c))
	h.respond(c, http.StatusOK, me, err)
}
