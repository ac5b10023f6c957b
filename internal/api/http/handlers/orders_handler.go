package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lab-order-service/internal/api/dto"
	"github.com/spec-kit/lab-order-service/internal/domain"
	"github.com/spec-kit/lab-order-service/internal/service"
	apperrors "github.com/spec-kit/lab-order-service/pkg/util"
)

// OrdersHandler manages order endpoints. All routes sit behind the auth
// middleware.
type OrdersHandler struct {
	service *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{service: orderService}
}

// Create POST /orders.
func (h *OrdersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.OrderCreateInput{
		Lab:      req.Lab,
		Patient:  req.Patient,
		Customer: req.Customer,
	}
	for _, svc := range req.Services {
		input.Services = append(input.Services, service.ServiceItemInput{
			Name:  svc.Name,
			Value: svc.Value,
		})
	}

	order, err := h.service.Create(c.Context(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewOrderResponse(order))
}

// List GET /orders.
func (h *OrdersHandler) List(c *fiber.Ctx) error {
	opts := service.OrderListOptions{
		Page:  parseInt(c.Query("page"), 1),
		Limit: parseInt(c.Query("limit"), 10),
	}
	if stateStr := c.Query("state"); stateStr != "" {
		state := domain.OrderState(stateStr)
		opts.State = &state
	}

	orders, err := h.service.List(c.Context(), opts)
	if err != nil {
		return err
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, dto.NewOrderResponse(&orders[i]))
	}
	return c.JSON(items)
}

// Get GET /orders/:id.
func (h *OrdersHandler) Get(c *fiber.Ctx) error {
	order, err := h.service.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewOrderResponse(order))
}

// AdvanceState PATCH /orders/:id/advance.
func (h *OrdersHandler) AdvanceState(c *fiber.Ctx) error {
	order, err := h.service.AdvanceState(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewOrderResponse(order))
}

func parseInt(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
