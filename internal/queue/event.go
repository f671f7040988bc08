// Package queue carries user notifications over RabbitMQ.  The API process
// publishes NotificationEvents; the notifications worker consumes them and
// hands each one to a delivery handler.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultQueue is the durable queue notifications travel on.
const DefaultQueue = "parking.notifications"

// NotificationEvent asks the delivery side to send one templated message.
// Data holds the template variables, e.g. reservation_id or amount_cents.
type NotificationEvent struct {
	ID        string         `json:"id"`
	UserID    uint64         `json:"user_id"`
	Template  string         `json:"template"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewNotificationEvent stamps a new event with an id and the current time.
func NewNotificationEvent(userID uint64, template string, data map[string]any) NotificationEvent {
	return NotificationEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Template:  template,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

func decodeEvent(body []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Template == "" || ev.UserID == 0 {
		return ev, fmt.Errorf("incomplete event %q", ev.ID)
	}
	return ev, nil
}
