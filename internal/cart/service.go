package cart

import (
	"context"
	"log/slog"

	"github.com/pharmadepot/storefront/internal/domain"
)

// LineStore is the persistence port for cart lines.
type LineStore interface {
	GetLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	AddLine(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveLine(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// Service holds the cart operations for any identity. It keeps no
// per-identity state; every read refetches from the store so concurrent
// sessions of the same buyer converge on the persisted truth.
type Service struct {
	store  LineStore
	logger *slog.Logger
}

func NewService(store LineStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Get returns the buyer's current cart. A buyer with no persisted lines
// gets an empty cart, not an error.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	lines, err := s.store.GetLines(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.Cart{UserID: userID, Lines: lines}, nil
}

// AddItem adds quantity units of a product, merging into an existing
// line when the product is already in the cart. It returns the refreshed
// cart read back from the store, not the local mutation.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	if err := s.store.AddLine(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	s.logger.Info("cart item added", "user_id", userID, "product_id", productID, "quantity", quantity)
	return s.Get(ctx, userID)
}

// UpdateQuantity sets a line's quantity. A quantity below 1 removes the
// line instead of leaving a zero-quantity row behind.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	if quantity < 1 {
		return s.RemoveItem(ctx, userID, productID)
	}

	if err := s.store.UpdateQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	s.logger.Info("cart quantity updated", "user_id", userID, "product_id", productID, "quantity", quantity)
	return s.Get(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	if err := s.store.RemoveLine(ctx, userID, productID); err != nil {
		return nil, err
	}

	s.logger.Info("cart item removed", "user_id", userID, "product_id", productID)
	return s.Get(ctx, userID)
}

// Clear deletes every line for the identity. Clearing with no identity
// is a no-op rather than an error.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("cart cleared", "user_id", userID)
	return nil
}
