package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"presence-backend/internal/model"
	"presence-backend/internal/store"
)

// eventResponse is the dashboard read model for one presence event.
type eventResponse struct {
	ID               string    `json:"id"`
	OrgID            string    `json:"org_id"`
	ReceiverID       string    `json:"receiver_id"`
	ServerTimestamp  time.Time `json:"server_timestamp"`
	ClientTimestamp  int64     `json:"client_timestamp"`
	TimeSlot         uint32    `json:"time_slot"`
	TokenPrefix      string    `json:"token_prefix"`
	TokenHash        string    `json:"token_hash"`
	DeviceID         string    `json:"device_id,omitempty"`
	UserRef          *string   `json:"user_ref,omitempty"`
	IsAnonymous      bool      `json:"is_anonymous"`
	ValidationStatus string    `json:"validation_status"`
	SignatureValid   bool      `json:"signature_valid"`
	Reason           string    `json:"reason,omitempty"`
}

func toEventResponse(e model.PresenceEvent) eventResponse {
	return eventResponse{
		ID:               e.ID,
		OrgID:            e.OrgID,
		ReceiverID:       e.ReceiverID,
		ServerTimestamp:  e.ServerTimestamp,
		ClientTimestamp:  e.ClientTimestamp,
		TimeSlot:         e.TimeSlot,
		TokenPrefix:      e.TokenPrefix,
		TokenHash:        e.TokenHash,
		DeviceID:         e.DeviceID,
		UserRef:          e.UserRef,
		IsAnonymous:      e.IsAnonymous,
		ValidationStatus: e.Status,
		SignatureValid:   e.SignatureValid,
		Reason:           e.Reason,
	}
}

// GetEvents handles GET /api/v2/events, the dashboard read model.
func (h *Handler) GetEvents(c *gin.Context) {
	filter := store.EventFilter{
		OrgID:      c.Query("org_id"),
		ReceiverID: c.Query("receiver_id"),
		Status:     c.Query("status"),
	}
	if filter.OrgID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}
	if sinceParam := c.Query("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'since' timestamp format. Use RFC3339."})
			return
		}
		filter.Since = since
	}
	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		filter.Limit = limit
	}

	events, err := h.store.ListEvents(c.Request.Context(), filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	responses := make([]eventResponse, 0, len(events))
	for _, e := range events {
		responses = append(responses, toEventResponse(e))
	}
	c.JSON(http.StatusOK, responses)
}

// GetEvent handles GET /api/v2/events/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.store.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event"})
		return
	}
	c.JSON(http.StatusOK, toEventResponse(*event))
}
