package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pharmadepot/storefront/internal/domain"
)

const pqForeignKeyViolation = "23503"

// Repository persists cart lines. The (user_id, product_id) pair is
// unique, so adding a product twice merges into one line at the store
// level rather than in application code.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at,
		       p.id, p.name, p.description, p.unit_price, p.bulk_price, p.bulk_min_quantity, p.created_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		var bulkPrice, bulkMinQty sql.NullInt64
		err := rows.Scan(
			&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt,
			&line.Product.ID, &line.Product.Name, &line.Product.Description,
			&line.Product.UnitPrice, &bulkPrice, &bulkMinQty, &line.Product.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
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

// AddLine inserts a cart line or, when the buyer already has the product
// in the cart, increments the existing line's quantity.
func (r *Repository) AddLine(ctx context.Context, userID, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New().String(), userID, productID, quantity, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return domain.ErrProductNotFound
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID, quantity)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrCartLineNotFound
	}

	return nil
}

func (r *Repository) RemoveLine(ctx context.Context, userID, productID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrCartLineNotFound
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1
	`, userID)
	return err
}
