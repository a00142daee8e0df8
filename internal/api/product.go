package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
)

// ProductAPI serves the catalog.
type ProductAPI struct {
	b *backend
}

// FeaturedProducts returns the products flagged featured.
func (a *ProductAPI) FeaturedProducts(ctx context.Context) ([]shop.Product, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.FeaturedProducts()))
	}
	return fetch[[]shop.Product](ctx, a.b, get("/products/featured"))
}

// Product returns one product.
func (a *ProductAPI) Product(ctx context.Context, id string) (shop.Product, error) {
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Product, error) { return a.b.mock.Product(id) })
	}
	return fetch[shop.Product](ctx, a.b, get("/products/"+url.PathEscape(id)))
}

// Products lists products, restricted to categoryID when it is set.
func (a *ProductAPI) Products(ctx context.Context, categoryID string) ([]shop.Product, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Products(categoryID)))
	}
	endpoint := "/products"
	if categoryID != "" {
		endpoint += "?" + url.Values{"categoryId": {categoryID}}.Encode()
	}
	return fetch[[]shop.Product](ctx, a.b, get(endpoint))
}

// Search returns one page of products matching query.
func (a *ProductAPI) Search(ctx context.Context, query string, page, pageSize int) (shop.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = shop.DefaultPageSize
	}
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Search(query, page, pageSize)))
	}
	q := url.Values{
		"query":    {query},
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	return fetch[shop.SearchResult](ctx, a.b, get("/products/search?"+q.Encode()))
}

// Categories returns every category.
func (a *ProductAPI) Categories(ctx context.Context) ([]shop.Category, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Categories()))
	}
	return fetch[[]shop.Category](ctx, a.b, get("/categories"))
}

// Category returns one category.
func (a *ProductAPI) Category(ctx context.Context, id string) (shop.Category, error) {
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Category, error) { return a.b.mock.Category(id) })
	}
	return fetch[shop.Category](ctx, a.b, get("/categories/"+url.PathEscape(id)))
}
