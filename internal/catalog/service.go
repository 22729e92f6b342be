package catalog

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/pharmadepot/storefront/internal/domain"
)

// ProductStore is what Service needs from the catalog repository.
type ProductStore interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Service serves catalog reads through the cache. Cache errors degrade
// to repository reads; they never fail the request.
type Service struct {
	store  ProductStore
	cache  ProductCache
	logger *slog.Logger
	sfg    singleflight.Group
}

func NewService(store ProductStore, cache ProductCache, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.List(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	// singleflight collapses concurrent misses for the same product
	v, err, _ := s.sfg.Do(id, func() (any, error) {
		if s.cache != nil {
			p, err := s.cache.Get(ctx, id)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, ErrCacheMiss) {
				s.logger.Warn("product cache read failed", "error", err, "product_id", id)
			}
		}

		p, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, p); err != nil {
				s.logger.Warn("product cache write failed", "error", err, "product_id", id)
			}
		}

		return p, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Product), nil
}
