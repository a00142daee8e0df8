package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
)

// CartAPI is the server cart facade.
type CartAPI interface {
	Items(ctx context.Context) ([]shop.CartItem, error)
	AddItem(ctx context.Context, productID string, quantity int, specs map[string]string) (string, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	RemoveItem(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Checkout(ctx context.Context, itemIDs []string, addressID string) (shop.Order, error)
}

// ProductLookup resolves the product snapshot stored on a local cart line.
type ProductLookup interface {
	FetchProduct(ctx context.Context, id string) (shop.Product, error)
}

// CartMode says which side owns the cart.
type CartMode int

const (
	// CartLocal carts live in device storage and never reach the server.
	CartLocal CartMode = iota
	// CartRemote carts are owned by the server; every change round-trips.
	CartRemote
)

func (m CartMode) String() string {
	if m == CartRemote {
		return "remote"
	}
	return "local"
}

// ErrLocalCart is returned by operations that need a server cart.
var ErrLocalCart = fmt.Errorf("cart: %w", apperr.ErrNotAuthenticated)

// CartStore holds either a local or a remote cart, never both. The only
// transition from local to remote is MergeWithServerCart; Reset returns to
// an empty local cart.
type CartStore struct {
	base
	api      CartAPI
	products ProductLookup
	now      func() time.Time

	mu    sync.RWMutex
	mode  CartMode
	items []shop.CartItem
}

// NewCartStore creates an empty local cart.
func NewCartStore(api CartAPI, products ProductLookup, deps Deps) *CartStore {
	return &CartStore{
		base:     newBase(deps, "cart-store"),
		api:      api,
		products: products,
		now:      time.Now,
	}
}

// Mode returns the current owner of the cart.
func (s *CartStore) Mode() CartMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Load reads the cart from its owner.
func (s *CartStore) Load(ctx context.Context) error {
	if s.Mode() == CartLocal {
		var items []shop.CartItem
		s.restore(ctx, storage.KeyCartItems, &items)
		s.replace(CartLocal, items)
		return nil
	}
	o := op{key: "cart:load", loading: loading.Cart, message: "加载购物车", failure: "获取购物车失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.reloadRemote(ctx)
	})
	return err
}

// AddItem adds quantity of productID. A local cart merges the quantity into
// an existing line with the same specs.
func (s *CartStore) AddItem(ctx context.Context, productID string, quantity int, specs map[string]string) error {
	if quantity < 1 {
		err := apperr.NewValidationError("", "数量必须大于0")
		s.report(err, "")
		return err
	}
	o := op{loading: loading.Cart, message: "加入购物车", failure: "加入购物车失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if s.Mode() == CartRemote {
			if _, err := s.api.AddItem(ctx, productID, quantity, specs); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, s.reloadRemote(ctx)
		}
		return struct{}{}, s.addLocal(ctx, productID, quantity, specs)
	})
	return err
}

func (s *CartStore) addLocal(ctx context.Context, productID string, quantity int, specs map[string]string) error {
	product, err := s.products.FetchProduct(ctx, productID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].SameLine(productID, specs) {
			s.items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		item := shop.CartItem{
			ID:            "local_" + uuid.NewString(),
			ProductID:     productID,
			Name:          product.Name,
			Quantity:      quantity,
			SelectedSpecs: shop.CartItem{SelectedSpecs: specs}.Clone().SelectedSpecs,
			Price:         product.Price,
			Selected:      true,
			AddedAt:       s.now(),
		}
		if len(product.Images) > 0 {
			item.Image = product.Images[0]
		}
		s.items = append(s.items, item)
	}
	s.mu.Unlock()
	s.saveLocal(ctx)
	s.notify()
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity below one removes
// the line.
func (s *CartStore) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, id)
	}
	o := op{loading: loading.Cart, message: "更新数量", failure: "更新数量失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if !s.hasItem(id) {
			return struct{}{}, apperr.NewNotFoundError("cart item", id)
		}
		if s.Mode() == CartRemote {
			if err := s.api.UpdateQuantity(ctx, id, quantity); err != nil {
				return struct{}{}, err
			}
		}
		s.mutate(ctx, func(items []shop.CartItem) []shop.CartItem {
			for i := range items {
				if items[i].ID == id {
					items[i].Quantity = quantity
				}
			}
			return items
		})
		return struct{}{}, nil
	})
	return err
}

// RemoveItem removes a line.
func (s *CartStore) RemoveItem(ctx context.Context, id string) error {
	o := op{loading: loading.Cart, message: "删除商品", failure: "删除商品失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if !s.hasItem(id) {
			return struct{}{}, apperr.NewNotFoundError("cart item", id)
		}
		if s.Mode() == CartRemote {
			if err := s.api.RemoveItem(ctx, id); err != nil {
				return struct{}{}, err
			}
		}
		s.mutate(ctx, func(items []shop.CartItem) []shop.CartItem {
			out := items[:0]
			for _, it := range items {
				if it.ID != id {
					out = append(out, it)
				}
			}
			return out
		})
		return struct{}{}, nil
	})
	return err
}

// Clear removes every line.
func (s *CartStore) Clear(ctx context.Context) error {
	o := op{key: "cart:clear", loading: loading.Cart, message: "清空购物车", failure: "清空购物车失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if s.Mode() == CartRemote {
			if err := s.api.Clear(ctx); err != nil {
				return struct{}{}, err
			}
		}
		s.mutate(ctx, func([]shop.CartItem) []shop.CartItem { return nil })
		return struct{}{}, nil
	})
	return err
}

// ToggleSelect flips the checkout selection of a line.
func (s *CartStore) ToggleSelect(ctx context.Context, id string) {
	s.mutate(ctx, func(items []shop.CartItem) []shop.CartItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Selected = !items[i].Selected
			}
		}
		return items
	})
}

// SelectAll sets the checkout selection of every line.
func (s *CartStore) SelectAll(ctx context.Context, selected bool) {
	s.mutate(ctx, func(items []shop.CartItem) []shop.CartItem {
		for i := range items {
			items[i].Selected = selected
		}
		return items
	})
}

// Checkout orders the selected lines. It needs a remote cart. Overlapping
// checkouts are never coalesced; each one places its own order.
func (s *CartStore) Checkout(ctx context.Context, addressID string) (shop.Order, error) {
	o := op{loading: loading.Cart, message: "提交订单", failure: "下单失败"}
	return run(ctx, &s.base, o, func(ctx context.Context) (shop.Order, error) {
		if s.Mode() != CartRemote {
			return shop.Order{}, ErrLocalCart
		}
		var ids []string
		for _, it := range s.SelectedItems() {
			ids = append(ids, it.ID)
		}
		if len(ids) == 0 {
			return shop.Order{}, apperr.NewValidationError("", "请选择要结算的商品")
		}
		order, err := s.api.Checkout(ctx, ids, addressID)
		if err != nil {
			return shop.Order{}, err
		}
		if err := s.reloadRemote(ctx); err != nil {
			s.deps.Log.WithError(err).Warn("failed to reload cart after checkout")
		}
		return order, nil
	})
}

// MergeWithServerCart replays every local line through the server cart and
// switches to remote mode once all of them are accepted. Lines accepted
// before a failure are dropped from the local cart so a later merge does
// not add them twice.
func (s *CartStore) MergeWithServerCart(ctx context.Context) error {
	o := op{key: "cart:merge", loading: loading.Cart, message: "同步购物车", failure: "同步购物车失败"}
	_, err := run(ctx, &s.base, o, func(ctx context.Context) (struct{}, error) {
		if s.Mode() == CartRemote {
			return struct{}{}, s.reloadRemote(ctx)
		}
		pending := s.Items()
		for i, it := range pending {
			if _, err := s.api.AddItem(ctx, it.ProductID, it.Quantity, it.SelectedSpecs); err != nil {
				s.replace(CartLocal, pending[i:])
				s.saveLocal(ctx)
				return struct{}{}, fmt.Errorf("merge cart item %s: %w", it.ID, err)
			}
		}
		if err := s.deps.Storage.Remove(ctx, storage.KeyCartItems); err != nil {
			s.deps.Log.WithError(err).Warn("failed to remove local cart")
		}
		s.replace(CartRemote, nil)
		if err := s.reloadRemote(ctx); err != nil {
			return struct{}{}, err
		}
		s.deps.Log.WithField("items", len(pending)).Info("local cart merged")
		return struct{}{}, nil
	})
	return err
}

// Reset drops the cart and returns to an empty local cart, as on logout.
func (s *CartStore) Reset(ctx context.Context) {
	s.replace(CartLocal, nil)
	if err := s.deps.Storage.Remove(ctx, storage.KeyCartItems); err != nil {
		s.deps.Log.WithError(err).Warn("failed to remove local cart")
	}
}

// Items returns the cart lines.
func (s *CartStore) Items() []shop.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shop.CartItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it.Clone())
	}
	return out
}

// SelectedItems returns the lines selected for checkout.
func (s *CartStore) SelectedItems() []shop.CartItem {
	var out []shop.CartItem
	for _, it := range s.Items() {
		if it.Selected {
			out = append(out, it)
		}
	}
	return out
}

// ItemCount is the total quantity over all lines.
func (s *CartStore) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// SelectedTotal is the price of the selected lines.
func (s *CartStore) SelectedTotal() float64 {
	return shop.LineTotal(s.SelectedItems())
}

func (s *CartStore) hasItem(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (s *CartStore) reloadRemote(ctx context.Context) error {
	items, err := s.api.Items(ctx)
	if err != nil {
		return err
	}
	s.replace(CartRemote, items)
	return nil
}

func (s *CartStore) replace(mode CartMode, items []shop.CartItem) {
	s.mu.Lock()
	s.mode = mode
	s.items = make([]shop.CartItem, 0, len(items))
	for _, it := range items {
		s.items = append(s.items, it.Clone())
	}
	s.mu.Unlock()
	s.notify()
}

// mutate applies fn to the lines and persists a local cart.
func (s *CartStore) mutate(ctx context.Context, fn func([]shop.CartItem) []shop.CartItem) {
	s.mu.Lock()
	s.items = fn(s.items)
	local := s.mode == CartLocal
	s.mu.Unlock()
	if local {
		s.saveLocal(ctx)
	}
	s.notify()
}

func (s *CartStore) saveLocal(ctx context.Context) {
	s.persist(ctx, storage.KeyCartItems, s.Items())
}
