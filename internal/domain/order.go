package domain

import "time"

// OrderState enumerates lifecycle states for orders. State only ever moves
// forward along CREATED -> ANALYSIS -> COMPLETED.
type OrderState string

const (
	OrderStateCreated   OrderState = "CREATED"
	OrderStateAnalysis  OrderState = "ANALYSIS"
	OrderStateCompleted OrderState = "COMPLETED"
)

// OrderStatus is the soft-delete flag. Listing only ever returns ACTIVE
// orders; DELETED is reserved for an administrative surface.
type OrderStatus string

const (
	OrderStatusActive  OrderStatus = "ACTIVE"
	OrderStatusDeleted OrderStatus = "DELETED"
)

// ServiceStatus enumerates fulfillment states of a single line item.
type ServiceStatus string

const (
	ServiceStatusPending ServiceStatus = "PENDING"
	ServiceStatusDone    ServiceStatus = "DONE"
)

// ServiceItem is one billable unit embedded in an Order. It has no identity
// or lifecycle of its own.
type ServiceItem struct {
	Name   string
	Value  float64
	Status ServiceStatus
}

// Order is the aggregate for lab requests.
type Order struct {
	ID        string
	Lab       string
	Patient   string
	Customer  string
	Services  []ServiceItem
	State     OrderState
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalValue sums line item values. Creation requires this to be strictly
// positive.
func (o *Order) TotalValue() float64 {
	var total float64
	for _, svc := range o.Services {
		total += svc.Value
	}
	return total
}
