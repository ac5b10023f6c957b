package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lab-order-service/internal/domain"
)

// OrderFilter captures listing parameters. Empty filter matches all orders.
type OrderFilter struct {
	State  *domain.OrderState
	Status *domain.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository encapsulates order persistence. UpdateState is a
// conditional update: it applies only while the order is still in the
// expected prior state, so racing advances cannot both win.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	UpdateState(ctx context.Context, id string, from, to domain.OrderState) (*domain.Order, error)
	SoftDelete(ctx context.Context, id string) (*domain.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int64, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const orderQuery = `
        INSERT INTO orders (lab, patient, customer, state, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, orderQuery,
		order.Lab,
		order.Patient,
		order.Customer,
		order.State,
		order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	const serviceQuery = `
        INSERT INTO order_services (order_id, position, name, value, status)
        VALUES ($1,$2,$3,$4,$5)`
	for i, svc := range order.Services {
		if _, err := tx.Exec(ctx, serviceQuery, order.ID, i, svc.Name, svc.Value, svc.Status); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	// Malformed ids are indistinguishable from missing records.
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}

	const query = `
        SELECT id, lab, patient, customer, state, status, created_at, updated_at
        FROM orders WHERE id=$1`

	var order domain.Order
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.Lab,
		&order.Patient,
		&order.Customer,
		&order.State,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	services, err := r.loadServices(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Services = services[order.ID]
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	query, args := buildOrderQuery(
		`SELECT id, lab, patient, customer, state, status, created_at, updated_at FROM orders`,
		filter, true)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	ids := []string{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.Lab,
			&order.Patient,
			&order.Customer,
			&order.State,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	services, err := r.loadServices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Services = services[orders[i].ID]
	}
	return orders, nil
}

func (r *orderRepository) UpdateState(ctx context.Context, id string, from, to domain.OrderState) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}

	const query = `
        UPDATE orders SET state=$1, updated_at=NOW()
        WHERE id=$2 AND state=$3`
	cmd, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *orderRepository) SoftDelete(ctx context.Context, id string) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}

	const query = `
        UPDATE orders SET status=$1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, domain.OrderStatusDeleted, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *orderRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	query, args := buildOrderQuery(`SELECT COUNT(*) FROM orders`, filter, false)

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *orderRepository) loadServices(ctx context.Context, orderIDs []string) (map[string][]domain.ServiceItem, error) {
	const query = `
        SELECT order_id, name, value, status
        FROM order_services WHERE order_id = ANY($1)
        ORDER BY order_id, position`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.ServiceItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var svc domain.ServiceItem
		if err := rows.Scan(&orderID, &svc.Name, &svc.Value, &svc.Status); err != nil {
			return nil, err
		}
		result[orderID] = append(result[orderID], svc)
	}
	return result, rows.Err()
}

func buildOrderQuery(base string, filter OrderFilter, paginated bool) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf("state=$%d", len(args)))
	}

	query := fmt.Sprintf("%s WHERE %s", base, strings.Join(clauses, " AND "))
	if !paginated {
		return query, args
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query = fmt.Sprintf("%s ORDER BY created_at DESC LIMIT %d OFFSET %d", query, limit, offset)
	return query, args
}
