package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presence-backend/internal/notify"
	"presence-backend/internal/validate"
	"presence-backend/internal/wire"
)

// statusCodes maps a validation outcome to the HTTP status returned to the
// receiver. Every outcome, accepted or not, has already been recorded as a
// presence event by the time the response is written.
var statusCodes = map[validate.Status]int{
	validate.StatusVerified:      http.StatusOK,
	validate.StatusReplay:        http.StatusConflict,
	validate.StatusOutOfWindow:   http.StatusBadRequest,
	validate.StatusWrongReceiver: http.StatusUnauthorized,
	validate.StatusInvalid:       http.StatusUnauthorized,
	validate.StatusMalformed:     http.StatusBadRequest,
	validate.StatusUnknown:       http.StatusForbidden,
}

// PostPresence handles POST /api/v2/presence, the receiver-to-backend
// ingest endpoint.
func (h *Handler) PostPresence(c *gin.Context) {
	var report wire.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	event := h.validator.Process(c.Request.Context(), report)

	status := validate.Status(event.Status)
	if status.Alertworthy() && h.alerts != nil {
		h.alerts.Dispatch(notify.Alert{
			OrgID:      event.OrgID,
			ReceiverID: event.ReceiverID,
			Status:     event.Status,
			Reason:     event.Reason,
		})
	}

	code, ok := statusCodes[status]
	if !ok {
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{
		"event_id": event.ID,
		"status":   event.Status,
	})
}
