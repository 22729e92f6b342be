package catalog

import (
	"context"
	"database/sql"

	"github.com/pharmadepot/storefront/internal/domain"
)

// ProductRepository reads catalog rows. Product writes happen in the
// back-office CRUD surface, which lives outside this service.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, unit_price, bulk_price, bulk_min_quantity, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, unit_price, bulk_price, bulk_min_quantity, created_at
		FROM products
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var bulkPrice sql.NullInt64
	var bulkMinQty sql.NullInt64

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.UnitPrice, &bulkPrice, &bulkMinQty, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}

	if bulkPrice.Valid {
		v := bulkPrice.Int64
		p.BulkPrice = &v
	}
	if bulkMinQty.Valid {
		v := int(bulkMinQty.Int64)
		p.BulkMinQuantity = &v
	}

	return p, nil
}
