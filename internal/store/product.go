package store

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
)

// History limits.
const (
	MaxSearchHistory = 10
	MaxViewHistory   = 20
)

// ProductAPI is the catalog facade.
type ProductAPI interface {
	FeaturedProducts(ctx context.Context) ([]shop.Product, error)
	Product(ctx context.Context, id string) (shop.Product, error)
	Products(ctx context.Context, categoryID string) ([]shop.Product, error)
	Search(ctx context.Context, query string, page, pageSize int) (shop.SearchResult, error)
	Categories(ctx context.Context) ([]shop.Category, error)
}

// ProductStore caches catalog entities by id for the whole session. Result
// lists hold ids only, so an updated entity shows up in every list.
type ProductStore struct {
	base
	api      ProductAPI
	pageSize int

	mu                 sync.RWMutex
	products           map[string]shop.Product
	categories         map[string]shop.Category
	categoryOrder      []string
	featuredIDs        []string
	categoryProductIDs map[string][]string

	searchQuery   string
	searchIDs     []string
	searchPage    int
	searchTotal   int
	searchHasMore bool

	favorites     []string
	viewHistory   []string
	searchHistory []string
}

// NewProductStore creates an empty product store.
func NewProductStore(api ProductAPI, deps Deps) *ProductStore {
	return &ProductStore{
		base:               newBase(deps, "product-store"),
		api:                api,
		pageSize:           shop.DefaultPageSize,
		products:           make(map[string]shop.Product),
		categories:         make(map[string]shop.Category),
		categoryProductIDs: make(map[string][]string),
	}
}

// Restore loads favorites, view history and search history from storage.
func (s *ProductStore) Restore(ctx context.Context) {
	var favorites, views, searches []string
	s.restore(ctx, storage.KeyFavorites, &favorites)
	s.restore(ctx, storage.KeyViewHistory, &views)
	s.restore(ctx, storage.KeySearchHistory, &searches)

	s.mu.Lock()
	s.favorites = favorites
	s.viewHistory = views
	s.searchHistory = searches
	s.mu.Unlock()
	s.notify()
}

// FetchFeatured loads the featured products.
func (s *ProductStore) FetchFeatured(ctx context.Context) ([]shop.Product, error) {
	o := op{key: "featured", loading: loading.Products, message: "加载推荐商品", failure: "获取推荐商品失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.Product, error) {
		products, err := s.api.FeaturedProducts(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.featuredIDs = s.cacheLocked(products)
		s.mu.Unlock()
		s.notify()
		return products, nil
	})
}

// FetchProduct returns a product, calling the facade only on a cache miss.
func (s *ProductStore) FetchProduct(ctx context.Context, id string) (shop.Product, error) {
	if p, ok := s.Product(id); ok {
		return p, nil
	}
	o := op{key: "product:" + id, loading: loading.Products, message: "加载商品详情", failure: "获取商品详情失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.Product, error) {
		p, err := s.api.Product(ctx, id)
		if err != nil {
			return shop.Product{}, err
		}
		s.mu.Lock()
		s.products[p.ID] = p.Clone()
		s.mu.Unlock()
		s.notify()
		return p, nil
	})
}

// FetchCategories loads every category.
func (s *ProductStore) FetchCategories(ctx context.Context) ([]shop.Category, error) {
	o := op{key: "categories", loading: loading.Categories, message: "加载分类", failure: "获取分类失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.Category, error) {
		cats, err := s.api.Categories(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.categoryOrder = s.categoryOrder[:0]
		for _, c := range cats {
			s.categories[c.ID] = c
			s.categoryOrder = append(s.categoryOrder, c.ID)
		}
		s.mu.Unlock()
		s.notify()
		return cats, nil
	})
}

// FetchProductsByCategory loads the products of one category.
func (s *ProductStore) FetchProductsByCategory(ctx context.Context, categoryID string) ([]shop.Product, error) {
	o := op{key: "category:" + categoryID, loading: loading.Products, message: "加载分类商品", failure: "获取分类商品失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.Product, error) {
		products, err := s.api.Products(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.categoryProductIDs[categoryID] = s.cacheLocked(products)
		s.mu.Unlock()
		s.notify()
		return products, nil
	})
}

// Search runs a new search from the first page and records the query in
// the search history.
func (s *ProductStore) Search(ctx context.Context, query string) (shop.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		err := apperr.NewValidationError("", "请输入搜索关键词")
		s.report(err, "")
		return shop.SearchResult{}, err
	}

	s.mu.Lock()
	s.searchHistory = pushRecent(s.searchHistory, query, MaxSearchHistory)
	history := append([]string(nil), s.searchHistory...)
	s.mu.Unlock()
	s.persist(ctx, storage.KeySearchHistory, history)

	return s.searchPageOf(ctx, query, 1)
}

// LoadMore fetches the next page of the current search. Without a current
// search, or when every page is loaded, it returns the current results.
func (s *ProductStore) LoadMore(ctx context.Context) (shop.SearchResult, error) {
	s.mu.RLock()
	query, page, more := s.searchQuery, s.searchPage, s.searchHasMore
	s.mu.RUnlock()
	if query == "" || !more {
		return s.SearchResults(), nil
	}
	return s.searchPageOf(ctx, query, page+1)
}

func (s *ProductStore) searchPageOf(ctx context.Context, query string, page int) (shop.SearchResult, error) {
	o := op{key: "search:" + query + ":" + strconv.Itoa(page), loading: loading.Products, message: "搜索中", failure: "搜索失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.SearchResult, error) {
		res, err := s.api.Search(ctx, query, page, s.pageSize)
		if err != nil {
			return shop.SearchResult{}, err
		}
		s.mu.Lock()
		ids := s.cacheLocked(res.Items)
		if page == 1 || query != s.searchQuery {
			s.searchIDs = ids
		} else {
			s.searchIDs = append(s.searchIDs, ids...)
		}
		s.searchQuery = query
		s.searchPage = res.Page
		s.searchTotal = res.Total
		s.searchHasMore = res.HasMore
		s.mu.Unlock()
		s.notify()
		return res, nil
	})
}

// ClearSearchHistory empties the search history.
func (s *ProductStore) ClearSearchHistory(ctx context.Context) {
	s.mu.Lock()
	s.searchHistory = nil
	s.mu.Unlock()
	if err := s.deps.Storage.Remove(ctx, storage.KeySearchHistory); err != nil {
		s.deps.Log.WithError(err).Warn("failed to clear search history")
	}
	s.notify()
}

// ToggleFavorite flips the favorite state of id and returns the new state.
func (s *ProductStore) ToggleFavorite(ctx context.Context, id string) bool {
	s.mu.Lock()
	fav := true
	next := make([]string, 0, len(s.favorites)+1)
	for _, f := range s.favorites {
		if f == id {
			fav = false
			continue
		}
		next = append(next, f)
	}
	if fav {
		next = append([]string{id}, next...)
	}
	s.favorites = next
	snapshot := append([]string(nil), next...)
	s.mu.Unlock()

	s.persist(ctx, storage.KeyFavorites, snapshot)
	s.notify()
	return fav
}

// IsFavorite reports whether id is a favorite.
func (s *ProductStore) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.favorites {
		if f == id {
			return true
		}
	}
	return false
}

// RecordView puts id at the front of the view history.
func (s *ProductStore) RecordView(ctx context.Context, id string) {
	s.mu.Lock()
	s.viewHistory = pushRecent(s.viewHistory, id, MaxViewHistory)
	snapshot := append([]string(nil), s.viewHistory...)
	s.mu.Unlock()
	s.persist(ctx, storage.KeyViewHistory, snapshot)
	s.notify()
}

// UpdateProduct replaces a cached product. Every list referencing it sees
// the change.
func (s *ProductStore) UpdateProduct(p shop.Product) {
	s.mu.Lock()
	s.products[p.ID] = p.Clone()
	s.mu.Unlock()
	s.notify()
}

// Product returns a cached product.
func (s *ProductStore) Product(id string) (shop.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return shop.Product{}, false
	}
	return p.Clone(), true
}

// Featured returns the featured products.
func (s *ProductStore) Featured() []shop.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.featuredIDs)
}

// CategoryProducts returns the loaded products of a category.
func (s *ProductStore) CategoryProducts(categoryID string) []shop.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.categoryProductIDs[categoryID])
}

// Categories returns the loaded categories in server order.
func (s *ProductStore) Categories() []shop.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shop.Category, 0, len(s.categoryOrder))
	for _, id := range s.categoryOrder {
		out = append(out, s.categories[id])
	}
	return out
}

// SearchResults returns every loaded page of the current search.
func (s *ProductStore) SearchResults() shop.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return shop.SearchResult{
		Items:    s.resolveLocked(s.searchIDs),
		Total:    s.searchTotal,
		Page:     s.searchPage,
		PageSize: s.pageSize,
		HasMore:  s.searchHasMore,
	}
}

// Favorites returns the favorite ids, most recent first.
func (s *ProductStore) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.favorites...)
}

// ViewHistory returns the viewed product ids, most recent first.
func (s *ProductStore) ViewHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.viewHistory...)
}

// SearchHistory returns past queries, most recent first.
func (s *ProductStore) SearchHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.searchHistory...)
}

func (s *ProductStore) cacheLocked(products []shop.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		s.products[p.ID] = p.Clone()
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *ProductStore) resolveLocked(ids []string) []shop.Product {
	out := make([]shop.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}
