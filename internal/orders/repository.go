package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/pharmadepot/storefront/internal/domain"
	"github.com/pharmadepot/storefront/internal/notification"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var userID, shippingAddress, paymentMethod, notes, contactEmail, companyName sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, total, status, shipping_address, payment_method, notes,
		       contact_email, company_name, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &userID, &order.Total, &order.Status, &shippingAddress,
		&paymentMethod, &notes, &contactEmail, &companyName,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	order.UserID = userID.String
	order.ShippingAddress = shippingAddress.String
	order.PaymentMethod = domain.PaymentMethod(paymentMethod.String)
	order.Notes = notes.String
	order.ContactEmail = contactEmail.String
	order.CompanyName = companyName.String

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_name
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser returns a buyer's order history, newest first, items
// attached.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, user_id, total, status, shipping_address, payment_method, notes,
		       contact_email, company_name, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// ListAll returns every order for the admin back-office, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, user_id, total, status, shipping_address, payment_method, notes,
		       contact_email, company_name, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		var userID, shippingAddress, paymentMethod, notes, contactEmail, companyName sql.NullString
		err := rows.Scan(
			&order.ID, &userID, &order.Total, &order.Status, &shippingAddress,
			&paymentMethod, &notes, &contactEmail, &companyName,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		order.UserID = userID.String
		order.ShippingAddress = shippingAddress.String
		order.PaymentMethod = domain.PaymentMethod(paymentMethod.String)
		order.Notes = notes.String
		order.ContactEmail = contactEmail.String
		order.CompanyName = companyName.String
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, err
		}
		orderMap[item.OrderID].Items = append(orderMap[item.OrderID].Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		out = append(out, *orderMap[id])
	}

	return out, nil
}

// UpdateStatus moves an order through the status workflow. The update
// and the customer notification intent commit in one transaction; the
// order can't change status without the notification being queued, and
// vice versa.
func (r *Repository) UpdateStatus(ctx context.Context, id string, newStatus domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, domain.ErrInvalidStatus
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	var total int64
	var contactEmail, companyName sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT status, total, contact_email, company_name
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current, &total, &contactEmail, &companyName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	if !domain.CanTransition(current, newStatus) {
		return nil, domain.ErrInvalidTransition
	}

	if current == newStatus {
		// no-op; nothing to persist and nothing to notify
		return r.GetByID(ctx, id)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3
	`, newStatus, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	payload := notification.StatusChangedPayload{
		OrderID:       id,
		NewStatus:     string(newStatus),
		CustomerEmail: contactEmail.String,
		CompanyName:   companyName.String,
		OrderTotal:    total,
	}
	if err := notification.EnqueueTx(ctx, tx, notification.KindStatusChanged, id, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var item domain.OrderItem
	var productID sql.NullString
	err := row.Scan(&item.ID, &item.OrderID, &productID, &item.ProductName, &item.Quantity, &item.Price)
	if err != nil {
		return domain.OrderItem{}, err
	}
	item.ProductID = productID.String
	return item, nil
}
