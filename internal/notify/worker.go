// Package notify pushes alerts to subscribed operators when validation
// produces alertworthy outcomes (receiver auth failures, device spoofing).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"presence-backend/internal/model"
	"presence-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is one queued alert job.
type Alert struct {
	OrgID      string `json:"org_id"`
	ReceiverID string `json:"receiver_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

// WorkerPool fans alert jobs out to a bounded set of push workers so a slow
// push endpoint cannot back up report validation.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	store   store.Store
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new alert worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*4),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	for {
		select {
		case alert := <-wp.jobs:
			wp.deliver(ctx, alert)
		case <-ctx.Done():
			log.Printf("alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert. It never blocks the caller; if the queue is
// full the alert is dropped, since presence validation must not stall on
// push delivery.
func (wp *WorkerPool) Dispatch(alert Alert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("alert queue full, dropping %s alert for org %s", alert.Status, alert.OrgID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, alert Alert) {
	subscriptions, err := wp.store.ListSubscriptions(ctx, alert.OrgID)
	if err != nil {
		log.Printf("error fetching alert subscriptions for org %s: %v", alert.OrgID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": fmt.Sprintf("Presence alert: %s", alert.Status),
		"body":  fmt.Sprintf("receiver %s/%s: %s", alert.OrgID, alert.ReceiverID, alert.Reason),
	})
	if err != nil {
		log.Printf("error marshalling alert payload: %v", err)
		return
	}

	for _, sub := range subscriptions {
		wp.push(ctx, sub, payload)
	}
}

func (wp *WorkerPool) push(ctx context.Context, sub model.AlertSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending alert to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are pruned on the spot.
	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
