package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/internal/profiles"
	"github.com/lacuina/content-service/pkg/middleware"
)

// ProfileHandler reads and writes the caller's own admin profile.
type ProfileHandler struct {
	svc *profiles.Service
}

func NewProfileHandler(svc *profiles.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/profile", h.Get)
	rg.PUT("/profile", h.Put)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	uid := middleware.UID(c)
	p, err := h.svc.Get(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": uid, "email": middleware.Email(c), "displayName": p.DisplayName})
}

func (h *ProfileHandler) Put(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid := middleware.UID(c)
	p, err := h.svc.SetDisplayName(c.Request.Context(), uid, req.DisplayName)
	if errors.Is(err, profiles.ErrInvalidName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": uid, "displayName": p.DisplayName})
}
