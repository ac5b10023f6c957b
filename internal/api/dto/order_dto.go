package dto

import (
	"time"

	"github.com/spec-kit/lab-order-service/internal/domain"
)

// ServiceItemRequest describes one billable unit in a creation payload.
// Any status field a caller sends is ignored.
type ServiceItemRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// CreateOrderRequest payload.
type CreateOrderRequest struct {
	Lab      string               `json:"lab"`
	Patient  string               `json:"patient"`
	Customer string               `json:"customer"`
	Services []ServiceItemRequest `json:"services"`
}

// ServiceItemResponse represents a line item in responses.
type ServiceItemResponse struct {
	Name   string               `json:"name"`
	Value  float64              `json:"value"`
	Status domain.ServiceStatus `json:"status"`
}

// OrderResponse provides the full order aggregate.
type OrderResponse struct {
	ID        string                `json:"id"`
	Lab       string                `json:"lab"`
	Patient   string                `json:"patient"`
	Customer  string                `json:"customer"`
	Services  []ServiceItemResponse `json:"services"`
	State     domain.OrderState     `json:"state"`
	Status    domain.OrderStatus    `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewOrderResponse maps the domain aggregate to its response shape.
func NewOrderResponse(order *domain.Order) OrderResponse {
	services := make([]ServiceItemResponse, 0, len(order.Services))
	for _, svc := range order.Services {
		services = append(services, ServiceItemResponse{
			Name:   svc.Name,
			Value:  svc.Value,
			Status: svc.Status,
		})
	}
	return OrderResponse{
		ID:        order.ID,
		Lab:       order.Lab,
		Patient:   order.Patient,
		Customer:  order.Customer,
		Services:  services,
		State:     order.State,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}
