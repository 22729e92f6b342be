package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadepot/storefront/internal/domain"
)

type fakeProductStore struct {
	products map[string]domain.Product
	getCalls int
}

func (f *fakeProductStore) List(_ context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	f.getCalls++
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client), mr
}

func TestService_GetProduct_CachesOnMiss(t *testing.T) {
	cache, _ := testCache(t)
	bulkPrice := int64(8500)
	minQty := 10
	store := &fakeProductStore{products: map[string]domain.Product{
		"prod-a": {
			ID:              "prod-a",
			Name:            "Amoxicillin 500mg (100ct)",
			UnitPrice:       10000,
			BulkPrice:       &bulkPrice,
			BulkMinQuantity: &minQty,
			CreatedAt:       time.Now().UTC().Truncate(time.Second),
		},
	}}

	svc := NewService(store, cache, testLogger())

	p, err := svc.GetProduct(context.Background(), "prod-a")
	require.NoError(t, err)
	assert.Equal(t, "prod-a", p.ID)
	assert.Equal(t, 1, store.getCalls)

	// second read comes from the cache
	p, err = svc.GetProduct(context.Background(), "prod-a")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), p.UnitPrice)
	require.NotNil(t, p.BulkPrice)
	assert.Equal(t, int64(8500), *p.BulkPrice)
	require.NotNil(t, p.BulkMinQuantity)
	assert.Equal(t, 10, *p.BulkMinQuantity)
	assert.Equal(t, 1, store.getCalls)
}

func TestService_GetProduct_NotFound(t *testing.T) {
	cache, _ := testCache(t)
	store := &fakeProductStore{products: map[string]domain.Product{}}
	svc := NewService(store, cache, testLogger())

	_, err := svc.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestService_GetProduct_CacheDownDegradesToStore(t *testing.T) {
	cache, mr := testCache(t)
	store := &fakeProductStore{products: map[string]domain.Product{
		"prod-b": {ID: "prod-b", Name: "Ibuprofen 200mg (50ct)", UnitPrice: 2500},
	}}
	svc := NewService(store, cache, testLogger())

	mr.Close()

	p, err := svc.GetProduct(context.Background(), "prod-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.UnitPrice)
}

func TestRedisCache_DeleteRemovesEntry(t *testing.T) {
	cache, _ := testCache(t)
	p := &domain.Product{ID: "prod-c", Name: "Saline 0.9% (1L)", UnitPrice: 899}

	require.NoError(t, cache.Set(context.Background(), p))

	got, err := cache.Get(context.Background(), "prod-c")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	require.NoError(t, cache.Delete(context.Background(), "prod-c"))

	_, err = cache.Get(context.Background(), "prod-c")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
