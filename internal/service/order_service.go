package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lab-order-service/internal/domain"
	"github.com/spec-kit/lab-order-service/internal/events"
	"github.com/spec-kit/lab-order-service/internal/repository"
	apperrors "github.com/spec-kit/lab-order-service/pkg/util"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// ServiceItemInput describes one billable unit in a creation request. Any
// caller-supplied status is ignored; line items always start PENDING.
type ServiceItemInput struct {
	Name  string
	Value float64
}

// OrderCreateInput describes the order creation payload.
type OrderCreateInput struct {
	Lab      string
	Patient  string
	Customer string
	Services []ServiceItemInput
}

// OrderListOptions describes listing filters. State is passed through
// unvalidated; an unknown value simply matches nothing.
type OrderListOptions struct {
	State *domain.OrderState
	Page  int
	Limit int
}

// OrderService owns the order lifecycle: creation validation, listing, and
// monotonic state advancement.
type OrderService struct {
	orders     repository.OrderRepository
	cache      *OrderCache
	dispatcher events.Dispatcher
}

// NewOrderService constructs the service. Cache and dispatcher are optional.
func NewOrderService(orders repository.OrderRepository, cache *OrderCache, dispatcher events.Dispatcher) *OrderService {
	return &OrderService{orders: orders, cache: cache, dispatcher: dispatcher}
}

// stateFlow is the transition table. COMPLETED has no successor and is
// therefore terminal.
var stateFlow = map[domain.OrderState]domain.OrderState{
	domain.OrderStateCreated:  domain.OrderStateAnalysis,
	domain.OrderStateAnalysis: domain.OrderStateCompleted,
}

// Create validates and persists a new order.
func (s *OrderService) Create(ctx context.Context, input OrderCreateInput) (*domain.Order, error) {
	if input.Lab == "" || input.Patient == "" || input.Customer == "" {
		return nil, apperrors.NewValidationError("lab, patient and customer required", nil)
	}
	if len(input.Services) == 0 {
		return nil, apperrors.NewValidationError("order must contain at least one service", nil)
	}

	services := make([]domain.ServiceItem, 0, len(input.Services))
	for _, svc := range input.Services {
		services = append(services, domain.ServiceItem{
			Name:   svc.Name,
			Value:  svc.Value,
			Status: domain.ServiceStatusPending,
		})
	}

	order := &domain.Order{
		Lab:      input.Lab,
		Patient:  input.Patient,
		Customer: input.Customer,
		Services: services,
		State:    domain.OrderStateCreated,
		Status:   domain.OrderStatusActive,
	}
	// Negative totals fail through the same check as zero.
	if order.TotalValue() <= 0 {
		return nil, apperrors.NewValidationError("order total value cannot be zero", nil)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventOrderCreated,
		OrderID: order.ID,
		Payload: events.OrderCreatedPayload{
			Lab:        order.Lab,
			Customer:   order.Customer,
			TotalValue: order.TotalValue(),
			Services:   len(order.Services),
		},
	})
	return order, nil
}

// List returns ACTIVE orders, newest first. Page and limit below 1 clamp to
// their defaults so a negative offset never reaches the store. An empty
// result is not an error.
func (s *OrderService) List(ctx context.Context, opts OrderListOptions) ([]domain.Order, error) {
	page := opts.Page
	if page < 1 {
		page = defaultPage
	}
	limit := opts.Limit
	if limit < 1 {
		limit = defaultLimit
	}

	active := domain.OrderStatusActive
	filter := repository.OrderFilter{
		State:  opts.State,
		Status: &active,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// GetByID fetches a single order, consulting the cache first.
func (s *OrderService) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	if cached := s.cache.Get(ctx, orderID); cached != nil {
		return cached, nil
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("order", nil)
		}
		return nil, err
	}

	s.cache.Set(ctx, order)
	return order, nil
}

// AdvanceState moves an order one step forward along
// CREATED -> ANALYSIS -> COMPLETED. The write is conditional on the state
// still matching what was read; a lost race surfaces as a conflict rather
// than silently overwriting.
func (s *OrderService) AdvanceState(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("order", nil)
		}
		return nil, err
	}

	nextState, ok := stateFlow[order.State]
	if !ok {
		return nil, apperrors.NewInvalidState("order already finalized")
	}

	updated, err := s.orders.UpdateState(ctx, orderID, order.State, nextState)
	if err != nil {
		if err == pgx.ErrNoRows {
			// The conditional update matched nothing: either the order
			// vanished or another caller advanced it first.
			if _, getErr := s.orders.GetByID(ctx, orderID); getErr == pgx.ErrNoRows {
				return nil, apperrors.NewNotFound("order", nil)
			}
			return nil, apperrors.NewConflict("order state changed concurrently", nil)
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, orderID)
	s.publishEvent(ctx, events.Event{
		Type:    events.EventOrderStateChanged,
		OrderID: updated.ID,
		Payload: events.OrderStateChangedPayload{
			OldState: order.State,
			NewState: updated.State,
		},
	})
	return updated, nil
}

func (s *OrderService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
