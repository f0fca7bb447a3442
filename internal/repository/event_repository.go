package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/edupagos/colegio-api/internal/models"
)

// EventRepository publishes and consumes entity change events over Redis
// pub/sub so connected clients can refresh only what changed. A nil client
// disables the stream without failing writes.
type EventRepository struct {
	client  *redis.Client
	channel string
}

// NewEventRepository constructs an EventRepository publishing on the given
// channel.
func NewEventRepository(client *redis.Client, channel string) *EventRepository {
	return &EventRepository{client: client, channel: channel}
}

// Publish emits one change event.
func (r *EventRepository) Publish(ctx context.Context, event models.ChangeEvent) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe delivers change events on the returned Go channel until ctx is
// cancelled. Malformed payloads are skipped.
func (r *EventRepository) Subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	if r.client == nil {
		return nil, fmt.Errorf("event stream disabled: no redis client")
	}

	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe change events: %w", err)
	}

	events := make(chan models.ChangeEvent, 16)
	go func() {
		defer close(events)
		defer sub.Close() //nolint:errcheck
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
