package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// countingProducts wraps a ProductAPI and counts calls. When gate is set,
// FeaturedProducts blocks until it is closed.
type countingProducts struct {
	ProductAPI
	featured atomic.Int32
	product  atomic.Int32
	gate     chan struct{}
}

func (c *countingProducts) FeaturedProducts(ctx context.Context) ([]shop.Product, error) {
	c.featured.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.ProductAPI.FeaturedProducts(ctx)
}

func (c *countingProducts) Product(ctx context.Context, id string) (shop.Product, error) {
	c.product.Add(1)
	return c.ProductAPI.Product(ctx, id)
}

func TestFetchFeatured(t *testing.T) {
	h := newHarness(t)

	products, err := h.products.FetchFeatured(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)

	featured := h.products.Featured()
	require.Len(t, featured, 3)
	for _, p := range featured {
		assert.True(t, p.Featured)
		cached, ok := h.products.Product(p.ID)
		assert.True(t, ok, "featured products are cached by id")
		assert.Equal(t, p.Name, cached.Name)
	}
}

func TestFetchFeatured_CoalescesOverlappingCalls(t *testing.T) {
	h := newHarness(t)
	api := &countingProducts{ProductAPI: h.facades.Product, gate: make(chan struct{})}
	s := NewProductStore(api, h.deps)

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			products, err := s.FetchFeatured(context.Background())
			if err == nil {
				results[i] = len(products)
			}
		}(i)
	}

	require.Eventually(t, func() bool { return api.featured.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, int32(1), api.featured.Load())
	assert.Equal(t, []int{3, 3, 3, 3, 3}, results)
}

func TestFetchProduct_CacheHitSkipsFacade(t *testing.T) {
	h := newHarness(t)
	api := &countingProducts{ProductAPI: h.facades.Product}
	s := NewProductStore(api, h.deps)
	ctx := context.Background()

	first, err := s.FetchProduct(ctx, "p3")
	require.NoError(t, err)
	second, err := s.FetchProduct(ctx, "p3")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), api.product.Load())
}

func TestFetchProduct_NotFoundShowsToast(t *testing.T) {
	h := newHarness(t)

	_, err := h.products.FetchProduct(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, []string{apperr.MessageNotFound}, h.rec.Toasts())
}

func TestUpdateProduct_VisibleInEveryList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.products.FetchFeatured(ctx)
	require.NoError(t, err)
	_, err = h.products.FetchProductsByCategory(ctx, "c1")
	require.NoError(t, err)

	p, ok := h.products.Product("p1")
	require.True(t, ok)
	p.Price = 99
	h.products.UpdateProduct(p)

	for _, list := range [][]shop.Product{h.products.Featured(), h.products.CategoryProducts("c1")} {
		for _, item := range list {
			if item.ID == "p1" {
				assert.Equal(t, 99.0, item.Price)
			}
		}
	}
}

func TestFetchCategories(t *testing.T) {
	h := newHarness(t)

	cats, err := h.products.FetchCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 4)
	assert.Equal(t, cats, h.products.Categories())
}

func TestFetchProductsByCategory(t *testing.T) {
	h := newHarness(t)

	products, err := h.products.FetchProductsByCategory(context.Background(), "c2")
	require.NoError(t, err)
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"p2", "p4"}, ids)
	assert.Len(t, h.products.CategoryProducts("c2"), 2)
	assert.Empty(t, h.products.CategoryProducts("c3"))
}

func TestSearch_RecordsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.products.Search(ctx, "  咖啡 ")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "p5", res.Items[0].ID)

	assert.Equal(t, []string{"咖啡"}, h.products.SearchHistory())
	var persisted []string
	found, err := h.kv.Get(ctx, storage.KeySearchHistory, &persisted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"咖啡"}, persisted)
}

func TestSearch_HistoryIsBoundedAndDeduplicated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < MaxSearchHistory+2; i++ {
		_, err := h.products.Search(ctx, "q"+strconv.Itoa(i))
		require.NoError(t, err)
	}
	_, err := h.products.Search(ctx, "q5")
	require.NoError(t, err)

	history := h.products.SearchHistory()
	assert.Len(t, history, MaxSearchHistory)
	assert.Equal(t, "q5", history[0])
	assert.Equal(t, "q11", history[1])
	seen := map[string]bool{}
	for _, q := range history {
		assert.False(t, seen[q], "duplicate %q", q)
		seen[q] = true
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newHarness(t)

	_, err := h.products.Search(context.Background(), "   ")

	require.Error(t, err)
	assert.True(t, apperr.IsValidationError(err))
	assert.Equal(t, []string{"请输入搜索关键词"}, h.rec.Toasts())
	assert.Empty(t, h.products.SearchHistory())
}

func TestLoadMore(t *testing.T) {
	h := newHarness(t)
	h.products.pageSize = 1
	ctx := context.Background()

	first, err := h.products.Search(ctx, "饼")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	assert.True(t, first.HasMore)
	assert.Len(t, h.products.SearchResults().Items, 1)

	_, err = h.products.LoadMore(ctx)
	require.NoError(t, err)
	all := h.products.SearchResults()
	require.Len(t, all.Items, 2)
	assert.Equal(t, "p1", all.Items[0].ID)
	assert.Equal(t, "p2", all.Items[1].ID)
	assert.False(t, all.HasMore)

	again, err := h.products.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Items, 2, "nothing more to load")
}

func TestLoadMore_WithoutSearch(t *testing.T) {
	h := newHarness(t)

	res, err := h.products.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestClearSearchHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.products.Search(ctx, "茶")
	require.NoError(t, err)

	h.products.ClearSearchHistory(ctx)

	assert.Empty(t, h.products.SearchHistory())
	assert.False(t, h.kv.Has(storage.KeySearchHistory))
}

func TestToggleFavorite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.True(t, h.products.ToggleFavorite(ctx, "p1"))
	assert.True(t, h.products.ToggleFavorite(ctx, "p2"))
	assert.True(t, h.products.IsFavorite("p1"))
	assert.Equal(t, []string{"p2", "p1"}, h.products.Favorites())

	assert.False(t, h.products.ToggleFavorite(ctx, "p1"))
	assert.False(t, h.products.IsFavorite("p1"))

	var persisted []string
	_, err := h.kv.Get(ctx, storage.KeyFavorites, &persisted)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, persisted)
}

func TestRecordView_Bounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < MaxViewHistory+5; i++ {
		h.products.RecordView(ctx, "p"+strconv.Itoa(i))
	}
	h.products.RecordView(ctx, "p10")

	views := h.products.ViewHistory()
	assert.Len(t, views, MaxViewHistory)
	assert.Equal(t, "p10", views[0])
	assert.Equal(t, "p24", views[1])
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.products.ToggleFavorite(ctx, "p4")
	h.products.RecordView(ctx, "p3")
	_, err := h.products.Search(ctx, "火腿")
	require.NoError(t, err)

	fresh := NewProductStore(h.facades.Product, Deps{Storage: h.kv, Log: logger.NewNop()})
	fresh.Restore(ctx)

	assert.Equal(t, []string{"p4"}, fresh.Favorites())
	assert.Equal(t, []string{"p3"}, fresh.ViewHistory())
	assert.Equal(t, []string{"火腿"}, fresh.SearchHistory())
}
