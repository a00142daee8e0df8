package store

import (
	"context"
	"sync"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
)

// ContentAPI is the editorial facade.
type ContentAPI interface {
	Articles(ctx context.Context) ([]shop.Article, error)
	FeaturedArticles(ctx context.Context) ([]shop.Article, error)
	Article(ctx context.Context, id string) (shop.Article, error)
	HeritageItems(ctx context.Context) ([]shop.HeritageItem, error)
	HeritageItem(ctx context.Context, id string) (shop.HeritageItem, error)
}

// ContentStore caches articles and heritage entries by id.
type ContentStore struct {
	base
	api ContentAPI

	mu           sync.RWMutex
	articles     map[string]shop.Article
	articleOrder []string
	heritage     map[string]shop.HeritageItem
	heritageIDs  []string
}

// NewContentStore creates an empty content store.
func NewContentStore(api ContentAPI, deps Deps) *ContentStore {
	return &ContentStore{
		base:     newBase(deps, "content-store"),
		api:      api,
		articles: make(map[string]shop.Article),
		heritage: make(map[string]shop.HeritageItem),
	}
}

// FetchArticles loads every article, or only the featured ones.
func (s *ContentStore) FetchArticles(ctx context.Context, featured bool) ([]shop.Article, error) {
	key, list := "articles", s.api.Articles
	if featured {
		key, list = "articles:featured", s.api.FeaturedArticles
	}
	o := op{key: key, loading: loading.Content, message: "加载文章", failure: "获取文章失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.Article, error) {
		articles, err := list(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if !featured {
			s.articleOrder = s.articleOrder[:0]
		}
		for _, a := range articles {
			s.articles[a.ID] = a.Clone()
			if !featured {
				s.articleOrder = append(s.articleOrder, a.ID)
			}
		}
		s.mu.Unlock()
		s.notify()
		return articles, nil
	})
}

// FetchArticle returns an article, from the cache when it carries a body.
func (s *ContentStore) FetchArticle(ctx context.Context, id string) (shop.Article, error) {
	s.mu.RLock()
	cached, ok := s.articles[id]
	s.mu.RUnlock()
	if ok && cached.Content != "" {
		return cached.Clone(), nil
	}
	o := op{key: "article:" + id, loading: loading.Content, message: "加载文章", failure: "获取文章失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.Article, error) {
		a, err := s.api.Article(ctx, id)
		if err != nil {
			return shop.Article{}, err
		}
		s.mu.Lock()
		s.articles[a.ID] = a.Clone()
		s.mu.Unlock()
		s.notify()
		return a, nil
	})
}

// FetchHeritage loads the heritage entries.
func (s *ContentStore) FetchHeritage(ctx context.Context) ([]shop.HeritageItem, error) {
	o := op{key: "heritage", loading: loading.Content, message: "加载非遗", failure: "获取非遗内容失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) ([]shop.HeritageItem, error) {
		items, err := s.api.HeritageItems(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.heritageIDs = s.heritageIDs[:0]
		for _, h := range items {
			s.heritage[h.ID] = h.Clone()
			s.heritageIDs = append(s.heritageIDs, h.ID)
		}
		s.mu.Unlock()
		s.notify()
		return items, nil
	})
}

// FetchHeritageItem returns one heritage entry, from the cache when loaded.
func (s *ContentStore) FetchHeritageItem(ctx context.Context, id string) (shop.HeritageItem, error) {
	s.mu.RLock()
	cached, ok := s.heritage[id]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}
	o := op{key: "heritage:" + id, loading: loading.Content, message: "加载非遗", failure: "获取非遗内容失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.HeritageItem, error) {
		h, err := s.api.HeritageItem(ctx, id)
		if err != nil {
			return shop.HeritageItem{}, err
		}
		s.mu.Lock()
		s.heritage[h.ID] = h.Clone()
		s.mu.Unlock()
		s.notify()
		return h, nil
	})
}

// Articles returns the article list in the order last fetched.
func (s *ContentStore) Articles() []shop.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shop.Article, 0, len(s.articleOrder))
	for _, id := range s.articleOrder {
		out = append(out, s.articles[id].Clone())
	}
	return out
}

// Heritage returns the heritage entries in the order last fetched.
func (s *ContentStore) Heritage() []shop.HeritageItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shop.HeritageItem, 0, len(s.heritageIDs))
	for _, id := range s.heritageIDs {
		out = append(out, s.heritage[id].Clone())
	}
	return out
}
