package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/internal/inbox"
	"github.com/lacuina/content-service/pkg/logger"
)

// InboxHandler serves the public contact and reservation forms and the
// admin views over what they collect.
type InboxHandler struct {
	messages     *inbox.Messages
	reservations *inbox.Reservations
}

func NewInboxHandler(m *inbox.Messages, r *inbox.Reservations) *InboxHandler {
	return &InboxHandler{messages: m, reservations: r}
}

// RegisterPublic mounts the submission endpoints. Extra handlers (rate
// limiting) run before each.
func (h *InboxHandler) RegisterPublic(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	rg.POST("/contact", append(mw, h.SubmitMessage)...)
	rg.POST("/reservations", append(mw, h.SubmitReservation)...)
}

func (h *InboxHandler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.GET("/messages", h.ListMessages)
	rg.GET("/messages/stream", h.StreamMessages)
	rg.PUT("/messages/:id/read", h.MarkRead)
	rg.DELETE("/messages/:id", h.DeleteMessage)

	rg.GET("/reservations", h.ListReservations)
	rg.GET("/reservations/stream", h.StreamReservations)
	rg.PUT("/reservations/:id/status", h.SetStatus)
	rg.DELETE("/reservations/:id", h.DeleteReservation)
}

func inboxError(c *gin.Context, err error) {
	var verr *inbox.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
	case errors.Is(err, inbox.ErrInvalid), errors.Is(err, inbox.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, inbox.ErrReservationsClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Ara mateix no acceptem reserves en línia."})
	case errors.Is(err, inbox.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		logger.Errorf("inbox: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No s'ha pogut enviar. Torna-ho a provar."})
	}
}

func (h *InboxHandler) SubmitMessage(c *gin.Context) {
	var m inbox.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.messages.Submit(c.Request.Context(), m)
	if err != nil {
		inboxError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": saved.ID})
}

func (h *InboxHandler) SubmitReservation(c *gin.Context) {
	var r inbox.Reservation
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.reservations.Submit(c.Request.Context(), r)
	if err != nil {
		inboxError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": saved.ID, "status": saved.Status})
}

func (h *InboxHandler) ListMessages(c *gin.Context) {
	list, err := h.messages.List(c.Request.Context(), c.Query("unread") == "true")
	if err != nil {
		inboxError(c, err)
		return
	}
	unread := 0
	for _, m := range list {
		if !m.Read {
			unread++
		}
	}
	c.JSON(http.StatusOK, gin.H{"messages": list, "unread": unread})
}

func (h *InboxHandler) StreamMessages(c *gin.Context) {
	stream(c, "messages", nil, func(fn func([]inbox.Message)) (func(), error) {
		return h.messages.Watch(c.Request.Context(), fn)
	})
}

func (h *InboxHandler) MarkRead(c *gin.Context) {
	var req struct {
		Read *bool `json:"read"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	read := req.Read == nil || *req.Read
	if err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), read); err != nil {
		inboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "read": read})
}

func (h *InboxHandler) DeleteMessage(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), c.Param("id")); err != nil {
		inboxError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InboxHandler) ListReservations(c *gin.Context) {
	var f inbox.Filter
	if s := c.Query("status"); s != "" {
		st, err := inbox.ParseStatus(s)
		if err != nil {
			inboxError(c, err)
			return
		}
		f.Status = st
	}
	f.From = c.Query("from")
	list, err := h.reservations.List(c.Request.Context(), f)
	if err != nil {
		inboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *InboxHandler) StreamReservations(c *gin.Context) {
	stream(c, "reservations", nil, func(fn func([]inbox.Reservation)) (func(), error) {
		return h.reservations.Watch(c.Request.Context(), fn)
	})
}

func (h *InboxHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status inbox.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.reservations.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		inboxError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": req.Status})
}

func (h *InboxHandler) DeleteReservation(c *gin.Context) {
	if err := h.reservations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		inboxError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
