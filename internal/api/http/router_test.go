package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lab-order-service/internal/api/http/handlers"
	"github.com/spec-kit/lab-order-service/internal/auth"
	"github.com/spec-kit/lab-order-service/internal/config"
	"github.com/spec-kit/lab-order-service/internal/domain"
	"github.com/spec-kit/lab-order-service/internal/observability"
	"github.com/spec-kit/lab-order-service/internal/persistence"
	"github.com/spec-kit/lab-order-service/internal/repository"
	"github.com/spec-kit/lab-order-service/internal/service"
)

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.NewString()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	seq    int
}

func (r *stubOrderRepo) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	order.ID = uuid.NewString()
	order.CreatedAt = time.Unix(1700000000, 0).Add(time.Duration(r.seq) * time.Second)
	order.UpdatedAt = order.CreatedAt
	copied := *order
	copied.Services = append([]domain.ServiceItem(nil), order.Services...)
	r.orders[order.ID] = &copied
	return nil
}

func (r *stubOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *order
	copied.Services = append([]domain.ServiceItem(nil), order.Services...)
	return &copied, nil
}

func (r *stubOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []domain.Order{}
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.State != nil && order.State != *filter.State {
			continue
		}
		matched = append(matched, *order)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []domain.Order{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *stubOrderRepo) UpdateState(_ context.Context, id string, from, to domain.OrderState) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}
	r.mu.Lock()
	order, ok := r.orders[id]
	if !ok || order.State != from {
		r.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	order.State = to
	r.mu.Unlock()
	return r.GetByID(context.Background(), id)
}

func (r *stubOrderRepo) SoftDelete(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	order, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	order.Status = domain.OrderStatusDeleted
	r.mu.Unlock()
	return r.GetByID(context.Background(), id)
}

func (r *stubOrderRepo) Count(_ context.Context, _ repository.OrderFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.orders)), nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 24, BcryptCost: 4},
	}
	userRepo := &stubUserRepo{users: make(map[string]*domain.User)}
	orderRepo := &stubOrderRepo{orders: make(map[string]*domain.Order)}

	authService := service.NewAuthService(cfg, userRepo)
	orderService := service.NewOrderService(orderRepo, nil, nil)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("lab-order-service-test", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:          handlers.NewUsersHandler(authService),
		Orders:         handlers.NewOrdersHandler(orderService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) (*nethttp.Response, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	} else if len(raw) > 0 && raw[0] == '[' {
		var list []any
		require.NoError(t, json.Unmarshal(raw, &list))
		decoded["items"] = list
	}
	return resp, decoded
}

func errorMessage(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	return msg
}

func registerAndLogin(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, _ := doJSON(t, app, "POST", "/auth/register", "", map[string]string{"email": email, "password": "pw123456"})
	require.Equal(t, 201, resp.StatusCode)
	resp, body := doJSON(t, app, "POST", "/auth/login", "", map[string]string{"email": email, "password": "pw123456"})
	require.Equal(t, 200, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/auth/register", "", map[string]string{"email": "a@b.com", "password": "pw123456"})
	assert.Equal(t, 201, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "a@b.com", body["email"])
	_, hasHash := body["password_hash"]
	assert.False(t, hasHash)

	resp, body = doJSON(t, app, "POST", "/auth/register", "", map[string]string{"email": "a@b.com", "password": "pw123456"})
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "user already exists", errorMessage(body))

	resp, _ = doJSON(t, app, "POST", "/auth/register", "", map[string]string{"email": "x@b.com"})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	app := newTestApp(t)
	_, _ = doJSON(t, app, "POST", "/auth/register", "", map[string]string{"email": "a@b.com", "password": "pw123456"})

	resp, unknown := doJSON(t, app, "POST", "/auth/login", "", map[string]string{"email": "nobody@b.com", "password": "pw123456"})
	assert.Equal(t, 401, resp.StatusCode)

	resp, wrong := doJSON(t, app, "POST", "/auth/login", "", map[string]string{"email": "a@b.com", "password": "nope-nope"})
	assert.Equal(t, 401, resp.StatusCode)

	// unknown email and wrong password are indistinguishable
	assert.Equal(t, errorMessage(unknown), errorMessage(wrong))
	assert.Equal(t, "invalid credentials", errorMessage(wrong))

	resp, body := doJSON(t, app, "POST", "/auth/login", "", map[string]string{"email": "a@b.com", "password": "pw123456"})
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestOrderEndpointsRequireToken(t *testing.T) {
	app := newTestApp(t)

	for _, route := range [][2]string{
		{"POST", "/orders"},
		{"GET", "/orders"},
		{"GET", "/orders/" + uuid.NewString()},
		{"PATCH", "/orders/" + uuid.NewString() + "/advance"},
	} {
		resp, body := doJSON(t, app, route[0], route[1], "", nil)
		assert.Equal(t, 401, resp.StatusCode, "%s %s", route[0], route[1])
		assert.Equal(t, "token not provided", errorMessage(body))
	}

	resp, body := doJSON(t, app, "GET", "/orders", "definitely.not.ajwt", nil)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "invalid token", errorMessage(body))
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "a@b.com")

	resp, body := doJSON(t, app, "POST", "/orders", token, map[string]any{
		"lab":      "L",
		"patient":  "P",
		"customer": "C",
		"services": []map[string]any{{"name": "S1", "value": 100}},
	})
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "CREATED", body["state"])
	assert.Equal(t, "ACTIVE", body["status"])
	services, _ := body["services"].([]any)
	require.Len(t, services, 1)
	assert.Equal(t, "PENDING", services[0].(map[string]any)["status"])
	orderID, _ := body["id"].(string)
	require.NotEmpty(t, orderID)

	resp, body = doJSON(t, app, "PATCH", "/orders/"+orderID+"/advance", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ANALYSIS", body["state"])

	resp, body = doJSON(t, app, "PATCH", "/orders/"+orderID+"/advance", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "COMPLETED", body["state"])

	resp, body = doJSON(t, app, "PATCH", "/orders/"+orderID+"/advance", token, nil)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "order already finalized", errorMessage(body))

	resp, body = doJSON(t, app, "GET", "/orders/"+orderID, token, nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "COMPLETED", body["state"])
}

func TestOrderValidationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "a@b.com")

	resp, body := doJSON(t, app, "POST", "/orders", token, map[string]any{
		"lab": "L", "patient": "P", "customer": "C", "services": []map[string]any{},
	})
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "order must contain at least one service", errorMessage(body))

	resp, body = doJSON(t, app, "POST", "/orders", token, map[string]any{
		"lab": "L", "patient": "P", "customer": "C",
		"services": []map[string]any{{"name": "S1", "value": 0}},
	})
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "order total value cannot be zero", errorMessage(body))

	resp, _ = doJSON(t, app, "POST", "/orders", token, map[string]any{
		"patient": "P", "customer": "C",
		"services": []map[string]any{{"name": "S1", "value": 100}},
	})
	assert.Equal(t, 400, resp.StatusCode)

	resp, body = doJSON(t, app, "GET", "/orders/"+uuid.NewString(), token, nil)
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "order not found", errorMessage(body))
}

func TestOrderListingOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := registerAndLogin(t, app, "a@b.com")

	for i := 0; i < 15; i++ {
		resp, _ := doJSON(t, app, "POST", "/orders", token, map[string]any{
			"lab": "L", "patient": "P", "customer": fmt.Sprintf("C%d", i),
			"services": []map[string]any{{"name": "S1", "value": 100}},
		})
		require.Equal(t, 201, resp.StatusCode)
	}

	resp, body := doJSON(t, app, "GET", "/orders?page=1&limit=10", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	page1, _ := body["items"].([]any)
	assert.Len(t, page1, 10)
	newest, _ := page1[0].(map[string]any)
	assert.Equal(t, "C14", newest["customer"])

	resp, body = doJSON(t, app, "GET", "/orders?page=2&limit=10", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	page2, _ := body["items"].([]any)
	assert.Len(t, page2, 5)

	// unknown state filter matches nothing rather than erroring
	resp, body = doJSON(t, app, "GET", "/orders?state=SHIPPED", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	empty, _ := body["items"].([]any)
	assert.Empty(t, empty)
}
