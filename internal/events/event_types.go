package events

import (
	"time"

	"github.com/spec-kit/lab-order-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOrderCreated      EventType = "order_created"
	EventOrderStateChanged EventType = "order_state_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrderID   string      `json:"order_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	Lab        string  `json:"lab"`
	Customer   string  `json:"customer"`
	TotalValue float64 `json:"total_value"`
	Services   int     `json:"services"`
}

// OrderStateChangedPayload payload.
type OrderStateChangedPayload struct {
	OldState domain.OrderState `json:"old_state"`
	NewState domain.OrderState `json:"new_state"`
}
