package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"chowline/internal/db"
	"chowline/internal/domain"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	// ErrStatusConflict means the conditional status update matched no row:
	// the order moved since it was read.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type OrderRepositoryInterface interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.Status, changedBy string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context, limit int) ([]domain.Order, error)
	GetRestaurant(ctx context.Context, id string) (domain.Restaurant, error)
	GetMenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]domain.MenuItem, error)
	StatusCounts(ctx context.Context) (map[domain.Status]int, decimal.Decimal, error)
}

type OrderRepository struct {
	conn *db.Conn
}

func New(conn *db.Conn) *OrderRepository { return &OrderRepository{conn: conn} }

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders
			(id, user_id, restaurant_id, restaurant_name, status, total,
			 delivery_address, payment_method, payment_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, order.ID, order.UserID, order.RestaurantID, order.RestaurantName, order.Status,
		order.Total, order.DeliveryAddress, order.PaymentMethod, order.PaymentStatus,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines
				(order_id, menu_item_id, name, unit_price, quantity, special_instructions)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, order.ID, line.MenuItemID, line.Name, line.UnitPrice, line.Quantity, line.SpecialInstructions)
		if err != nil {
			return fmt.Errorf("insert order line %s: %w", line.MenuItemID, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'order-service', NOW())
	`, order.ID, order.Status)
	if err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, restaurant_id, restaurant_name, status, total,
	delivery_address, payment_method, payment_status, created_at, updated_at`

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	if err := r.attachLines(ctx, []*domain.Order{&order}); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// UpdateStatus moves the order from one status to another atomically. The
// WHERE clause on the old status makes concurrent admins race safely: the
// loser gets ErrStatusConflict instead of clobbering the winner.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status, changedBy string) (domain.Order, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+orderColumns, to, id, from)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); qerr == nil && !exists {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, ErrStatusConflict
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, NOW())
	`, id, to, changedBy)
	if err != nil {
		return domain.Order{}, fmt.Errorf("insert status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit transaction: %w", err)
	}
	if err := r.attachLines(ctx, []*domain.Order{&order}); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", userID, err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *OrderRepository) ListAll(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.conn.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *OrderRepository) GetRestaurant(ctx context.Context, id string) (domain.Restaurant, error) {
	var rest domain.Restaurant
	err := r.conn.QueryRow(ctx,
		`SELECT id, name, delivery_fee FROM restaurants WHERE id = $1`, id).
		Scan(&rest.ID, &rest.Name, &rest.DeliveryFee)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Restaurant{}, ErrRestaurantNotFound
	}
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("select restaurant %s: %w", id, err)
	}
	return rest, nil
}

func (r *OrderRepository) GetMenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]domain.MenuItem, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, restaurant_id, name, unit_price
		FROM menu_items WHERE restaurant_id = $1 AND id = ANY($2)
	`, restaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	items := make(map[string]domain.MenuItem, len(ids))
	for rows.Next() {
		var mi domain.MenuItem
		if err := rows.Scan(&mi.ID, &mi.RestaurantID, &mi.Name, &mi.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items[mi.ID] = mi
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu items: %w", err)
	}
	return items, nil
}

// StatusCounts aggregates order counts per status and delivered revenue.
// Feeds the analytics publisher.
func (r *OrderRepository) StatusCounts(ctx context.Context) (map[domain.Status]int, decimal.Decimal, error) {
	rows, err := r.conn.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	counts := map[domain.Status]int{}
	for rows.Next() {
		var s domain.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, decimal.Zero, fmt.Errorf("scan status count: %w", err)
		}
		counts[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("iterate status counts: %w", err)
	}

	var revenue decimal.Decimal
	err = r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = $1`,
		domain.StatusDelivered).Scan(&revenue)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("sum delivered revenue: %w", err)
	}
	return counts, revenue, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.RestaurantID, &o.RestaurantName, &o.Status,
		&o.Total, &o.DeliveryAddress, &o.PaymentMethod, &o.PaymentStatus,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *OrderRepository) collectOrders(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	refs := make([]*domain.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}
	rows, err := r.conn.Query(ctx, `
		SELECT order_id, menu_item_id, name, unit_price, quantity, special_instructions
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.MenuItemID, &line.Name, &line.UnitPrice,
			&line.Quantity, &line.SpecialInstructions); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, line)
		}
	}
	return rows.Err()
}
