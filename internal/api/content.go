package api

import (
	"context"
	"net/url"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
)

// ContentAPI serves articles and heritage entries.
type ContentAPI struct {
	b *backend
}

// Articles lists every article.
func (a *ContentAPI) Articles(ctx context.Context) ([]shop.Article, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Articles()))
	}
	return fetch[[]shop.Article](ctx, a.b, get("/content/articles"))
}

// FeaturedArticles lists the featured articles.
func (a *ContentAPI) FeaturedArticles(ctx context.Context) ([]shop.Article, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.FeaturedArticles()))
	}
	return fetch[[]shop.Article](ctx, a.b, get("/content/articles/featured"))
}

// Article returns one article.
func (a *ContentAPI) Article(ctx context.Context, id string) (shop.Article, error) {
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Article, error) { return a.b.mock.Article(id) })
	}
	return fetch[shop.Article](ctx, a.b, get("/content/articles/"+url.PathEscape(id)))
}

// HeritageItems lists the heritage entries.
func (a *ContentAPI) HeritageItems(ctx context.Context) ([]shop.HeritageItem, error) {
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.HeritageItems()))
	}
	return fetch[[]shop.HeritageItem](ctx, a.b, get("/content/heritage"))
}

// HeritageItem returns one heritage entry.
func (a *ContentAPI) HeritageItem(ctx context.Context, id string) (shop.HeritageItem, error) {
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.HeritageItem, error) { return a.b.mock.HeritageItem(id) })
	}
	return fetch[shop.HeritageItem](ctx, a.b, get("/content/heritage/"+url.PathEscape(id)))
}
