package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/internal/backup"
	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/pkg/logger"
)

type BackupHandler struct {
	svc *backup.Service
}

func NewBackupHandler(svc *backup.Service) *BackupHandler {
	return &BackupHandler{svc: svc}
}

// Register mounts the backup routes on an authenticated group.
func (h *BackupHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/backups", h.List)
	rg.POST("/backups", h.Create)
	rg.POST("/backups/master", h.SetMaster)
	rg.GET("/backups/:id", h.Get)
	rg.DELETE("/backups/:id", h.Delete)
	rg.POST("/backups/:id/restore", h.Restore)
	rg.GET("/backups/:id/export", h.Export)
	rg.POST("/factory-reset", h.FactoryReset)
}

func backupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, backup.ErrCorrupt):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, siteconfig.ErrWriteFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "No s'han pogut desar els canvis. Torna-ho a provar."})
	default:
		logger.Errorf("backups: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backup operation failed"})
	}
}

func (h *BackupHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BackupHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	// an empty body means "name it for me"
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	rec, err := h.svc.Create(c.Request.Context(), req.Name)
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID, "name": rec.Name, "timestamp": rec.Timestamp})
}

func (h *BackupHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *BackupHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		backupError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BackupHandler) Restore(c *gin.Context) {
	doc, err := h.svc.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *BackupHandler) SetMaster(c *gin.Context) {
	rec, err := h.svc.SetMaster(c.Request.Context())
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "name": rec.Name, "timestamp": rec.Timestamp})
}

func (h *BackupHandler) FactoryReset(c *gin.Context) {
	src, err := h.svc.FactoryReset(c.Request.Context())
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": src})
}

// Export hands out a short-lived link to the archived copy, or the record
// itself as an attachment when no archive is configured.
func (h *BackupHandler) Export(c *gin.Context) {
	id := c.Param("id")
	url, err := h.svc.Export(c.Request.Context(), id)
	if errors.Is(err, backup.ErrArchiveDisabled) {
		rec, err := h.svc.Get(c.Request.Context(), id)
		if err != nil {
			backupError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "backup-"+id+".json"))
		c.JSON(http.StatusOK, rec)
		return
	}
	if err != nil {
		backupError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
