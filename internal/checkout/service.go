package checkout

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/identity"
	"github.com/pharmadepot/storefront/internal/notification"
)

const pqUniqueViolation = "23505"

// Request carries the buyer-supplied checkout fields. Token is an
// optional client-generated idempotency key: retrying a checkout with
// the same token resumes the already-created order instead of creating
// a second one.
type Request struct {
	ShippingAddress string
	PaymentMethod   domain.PaymentMethod
	Notes           string
	Token           string
}

// OrderGetter loads the full order aggregate after the checkout
// transaction commits.
type OrderGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

// Service turns a mutable cart into an immutable order. The order
// header, its item snapshots, the notification intent and the cart
// clear all commit in a single transaction: either the whole checkout
// is visible or none of it is.
type Service struct {
	db            *sql.DB
	orders        OrderGetter
	logger        *slog.Logger
	ordersCreated metric.Int64Counter
}

func NewService(db *sql.DB, orders OrderGetter, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("checkout")
	ordersCreated, err := meter.Int64Counter("checkout.orders.created",
		metric.WithDescription("Orders successfully created at checkout"))
	if err != nil {
		return nil, err
	}

	return &Service{
		db:            db,
		orders:        orders,
		logger:        logger,
		ordersCreated: ordersCreated,
	}, nil
}

// Checkout creates an order from the identity's current cart. The
// returned bool is false when an existing order was resumed via the
// idempotency token.
func (s *Service) Checkout(ctx context.Context, id identity.Identity, req Request) (*domain.Order, bool, error) {
	if id.UserID == "" {
		return nil, false, domain.ErrUnauthenticated
	}
	if req.ShippingAddress == "" {
		return nil, false, domain.ErrMissingField
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, false, domain.ErrMissingField
	}

	if req.Token != "" {
		if existing, err := s.findByToken(ctx, req.Token); err != nil {
			return nil, false, err
		} else if existing != nil {
			return existing, false, nil
		}
	}

	order, err := s.createOrder(ctx, id, req)
	if err != nil {
		var pqErr *pq.Error
		if req.Token != "" && errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			// lost a race against a concurrent retry with the same token
			existing, ferr := s.findByToken(ctx, req.Token)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.ordersCreated.Add(ctx, 1)
	s.logger.Info("order created",
		"order_id", order.ID,
		"user_id", id.UserID,
		"total", order.Total,
		"items", len(order.Items),
	)

	return order, true, nil
}

func (s *Service) createOrder(ctx context.Context, id identity.Identity, req Request) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := lockCartLines(ctx, tx, id.UserID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          id.UserID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ContactEmail:    id.Email,
		CompanyName:     id.Company,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// resolve each line's tier on its own quantity and reuse the result
	// for both the snapshot and the total, so the two can never disagree
	for _, line := range lines {
		price := domain.EffectiveUnitPrice(line.Product, line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			Price:       price,
		})
		order.Total += price * int64(line.Quantity)
	}

	var token any
	if req.Token != "" {
		token = req.Token
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total, status, shipping_address, payment_method,
		                    notes, contact_email, company_name, checkout_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, order.ID, order.UserID, order.Total, order.Status, order.ShippingAddress,
		order.PaymentMethod, order.Notes, order.ContactEmail, order.CompanyName, token, now)
	if err != nil {
		return nil, err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price, now)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, id.UserID); err != nil {
		return nil, err
	}

	payload := orderCreatedPayload(order)
	if err := notification.EnqueueTx(ctx, tx, notification.KindOrderCreated, order.ID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// lockCartLines reads the cart with its product pricing inside the
// checkout transaction, locking the lines against concurrent mutation
// until the checkout commits.
func lockCartLines(ctx context.Context, tx *sql.Tx, userID string) ([]domain.CartLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.product_id, c.quantity,
		       p.name, p.unit_price, p.bulk_price, p.bulk_min_quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at
		FOR UPDATE OF c
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		var bulkPrice, bulkMinQty sql.NullInt64
		err := rows.Scan(&line.ProductID, &line.Quantity,
			&line.Product.Name, &line.Product.UnitPrice, &bulkPrice, &bulkMinQty)
		if err != nil {
			return nil, err
		}
		line.Product.ID = line.ProductID
		if bulkPrice.Valid {
			v := bulkPrice.Int64
			line.Product.BulkPrice = &v
		}
		if bulkMinQty.Valid {
			v := int(bulkMinQty.Int64)
			line.Product.BulkMinQuantity = &v
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

func (s *Service) findByToken(ctx context.Context, token string) (*domain.Order, error) {
	var orderID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM orders WHERE checkout_token = $1
	`, token).Scan(&orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

func orderCreatedPayload(order *domain.Order) notification.OrderCreatedPayload {
	items := make([]notification.ItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, notification.ItemPayload{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	return notification.OrderCreatedPayload{
		OrderID:         order.ID,
		CustomerEmail:   order.ContactEmail,
		CompanyName:     order.CompanyName,
		OrderTotal:      order.Total,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   string(order.PaymentMethod),
		Items:           items,
	}
}
