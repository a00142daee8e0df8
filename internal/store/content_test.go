package store

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
)

type countingContent struct {
	ContentAPI
	article  atomic.Int32
	heritage atomic.Int32
}

func (c *countingContent) Article(ctx context.Context, id string) (shop.Article, error) {
	c.article.Add(1)
	return c.ContentAPI.Article(ctx, id)
}

func (c *countingContent) HeritageItem(ctx context.Context, id string) (shop.HeritageItem, error) {
	c.heritage.Add(1)
	return c.ContentAPI.HeritageItem(ctx, id)
}

func TestFetchArticles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	all, err := h.content.FetchArticles(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Len(t, h.content.Articles(), 3)

	featured, err := h.content.FetchArticles(ctx, true)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, "art1", featured[0].ID)
	assert.Len(t, h.content.Articles(), 3, "featured fetch leaves the full list alone")
}

func TestFetchArticle_CacheHitSkipsFacade(t *testing.T) {
	h := newHarness(t)
	api := &countingContent{ContentAPI: h.facades.Content}
	s := NewContentStore(api, h.deps)
	ctx := context.Background()

	_, err := s.FetchArticles(ctx, false)
	require.NoError(t, err)
	a, err := s.FetchArticle(ctx, "art2")
	require.NoError(t, err)

	assert.Equal(t, "雨季的菌子江湖", a.Title)
	assert.Equal(t, int32(0), api.article.Load())
}

func TestFetchArticle_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.content.FetchArticle(context.Background(), "nope")

	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
	assert.Len(t, h.rec.Toasts(), 1)
}

func TestFetchHeritage(t *testing.T) {
	h := newHarness(t)
	api := &countingContent{ContentAPI: h.facades.Content}
	s := NewContentStore(api, h.deps)
	ctx := context.Background()

	var during bool
	off := h.deps.Loading.Subscribe(func(flags map[loading.Type]loading.Flag) {
		if flags[loading.Content].IsLoading {
			during = true
		}
	})
	defer off()

	items, err := s.FetchHeritage(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.True(t, during)
	assert.False(t, h.deps.Loading.IsLoading(loading.Content))

	item, err := s.FetchHeritageItem(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p4"}, item.ProductIDs)
	assert.Equal(t, int32(0), api.heritage.Load())
	assert.Len(t, s.Heritage(), 2)
}
