package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"presence-backend/internal/model"
)

// EventFilter narrows the dashboard read model.
type EventFilter struct {
	OrgID      string
	ReceiverID string
	Status     string
	Since      time.Time
	Limit      int
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// SaveEvent persists a presence event. Event IDs are derived
	// deterministically from the report, so replaying a save after a
	// timeout is idempotent.
	SaveEvent(ctx context.Context, event *model.PresenceEvent) error
	GetEvent(ctx context.Context, id string) (*model.PresenceEvent, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]model.PresenceEvent, error)

	GetReceiver(ctx context.Context, orgID, receiverID string) (*model.Receiver, error)
	ListDevices(ctx context.Context, orgID string) ([]model.Device, error)

	UpsertSubscription(ctx context.Context, sub *model.AlertSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, orgID string) ([]model.AlertSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) SaveEvent(ctx context.Context, event *model.PresenceEvent) error {
	// DoNothing on conflict keeps retried saves idempotent: the first write
	// wins and the event stays immutable.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(event).Error
	if err != nil {
		return fmt.Errorf("failed to save presence event %s: %w", event.ID, err)
	}
	return nil
}

func (s *gormStore) GetEvent(ctx context.Context, id string) (*model.PresenceEvent, error) {
	var event model.PresenceEvent
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *gormStore) ListEvents(ctx context.Context, filter EventFilter) ([]model.PresenceEvent, error) {
	q := s.db.WithContext(ctx).Model(&model.PresenceEvent{})
	if filter.OrgID != "" {
		q = q.Where("org_id = ?", filter.OrgID)
	}
	if filter.ReceiverID != "" {
		q = q.Where("receiver_id = ?", filter.ReceiverID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		q = q.Where("server_timestamp >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []model.PresenceEvent
	if err := q.Order("server_timestamp DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list presence events: %w", err)
	}
	return events, nil
}

func (s *gormStore) GetReceiver(ctx context.Context, orgID, receiverID string) (*model.Receiver, error) {
	var receiver model.Receiver
	err := s.db.WithContext(ctx).
		First(&receiver, "org_id = ? AND id = ?", orgID, receiverID).Error
	if err != nil {
		return nil, err
	}
	return &receiver, nil
}

func (s *gormStore) ListDevices(ctx context.Context, orgID string) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Find(&devices, "org_id = ?", orgID).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices for org %s: %w", orgID, err)
	}
	return devices, nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.AlertSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"org_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.AlertSubscription{}, "endpoint = ?", endpoint).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context, orgID string) ([]model.AlertSubscription, error) {
	var subs []model.AlertSubscription
	if err := s.db.WithContext(ctx).Find(&subs, "org_id = ?", orgID).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for org %s: %w", orgID, err)
	}
	return subs, nil
}
