package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"presence-backend/internal/notify"
	"presence-backend/internal/store"
	"presence-backend/internal/validate"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	validator *validate.Validator
	alerts    *notify.WorkerPool
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, v *validate.Validator, alerts *notify.WorkerPool, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:     s,
		validator: v,
		alerts:    alerts,
		webpush:   webpushOptions,
	}
}
