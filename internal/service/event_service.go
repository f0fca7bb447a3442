package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edupagos/colegio-api/internal/models"
)

// Entity names carried on change events.
const (
	EntityStudent  = "student"
	EntityDebt     = "debt"
	EntityPayment  = "payment"
	EntityPlan     = "payment_plan"
	EntityGuardian = "guardian"
)

// Event actions.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
	EventSettled   = "settled"
	EventCancelled = "cancelled"
)

type eventPublisher interface {
	Publish(ctx context.Context, event models.ChangeEvent) error
}

type eventSubscriber interface {
	Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error)
}

// EventService fans entity change notifications out to connected clients.
// Publish failures are logged and swallowed so the stream never blocks a
// write path.
type EventService struct {
	publisher  eventPublisher
	subscriber eventSubscriber
	logger     *zap.Logger
}

// NewEventService constructs an EventService. Either dependency may be nil,
// disabling that half of the stream.
func NewEventService(publisher eventPublisher, subscriber eventSubscriber, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{publisher: publisher, subscriber: subscriber, logger: logger}
}

// Notify publishes one change event.
func (s *EventService) Notify(ctx context.Context, entity, entityID, studentID, action string) {
	if s == nil || s.publisher == nil {
		return
	}
	event := models.ChangeEvent{
		Entity:    entity,
		EntityID:  entityID,
		StudentID: studentID,
		Action:    action,
		At:        time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish change event",
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// Stream subscribes to the change event feed.
func (s *EventService) Stream(ctx context.Context) (<-chan models.ChangeEvent, error) {
	if s == nil || s.subscriber == nil {
		return nil, nil
	}
	return s.subscriber.Subscribe(ctx)
}
