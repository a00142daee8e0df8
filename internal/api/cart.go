package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
)

// CartAPI serves the server-side cart and orders. Every operation needs a
// session.
type CartAPI struct {
	b *backend
}

// Items returns the server cart.
func (a *CartAPI) Items(ctx context.Context) ([]shop.CartItem, error) {
	token, err := a.b.token()
	if err != nil {
		return nil, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.CartItems()))
	}
	return fetch[[]shop.CartItem](ctx, a.b, authed(http.MethodGet, "/cart", token, nil))
}

// AddItem adds quantity of productID with the chosen specs and returns the
// cart line id.
func (a *CartAPI) AddItem(ctx context.Context, productID string, quantity int, specs map[string]string) (string, error) {
	token, err := a.b.token()
	if err != nil {
		return "", err
	}
	req := shop.AddCartItemRequest{ProductID: productID, Quantity: quantity, SelectedSpecs: specs}
	if a.b.useMocks() {
		return fromMock(ctx, func() (string, error) { return a.b.mock.AddCartItem(req) })
	}
	res, err := fetch[shop.AddCartItemResult](ctx, a.b, authed(http.MethodPost, "/cart/items", token, req))
	if err != nil {
		return "", err
	}
	return res.CartID, nil
}

// UpdateQuantity sets the quantity of a cart line.
func (a *CartAPI) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	token, err := a.b.token()
	if err != nil {
		return err
	}
	if a.b.useMocks() {
		_, err := fromMock(ctx, func() (struct{}, error) { return struct{}{}, a.b.mock.UpdateCartItem(id, quantity) })
		return err
	}
	return exec(ctx, a.b, authed(http.MethodPut, "/cart/items/"+url.PathEscape(id), token, shop.UpdateQuantityRequest{Quantity: quantity}))
}

// RemoveItem deletes a cart line.
func (a *CartAPI) RemoveItem(ctx context.Context, id string) error {
	token, err := a.b.token()
	if err != nil {
		return err
	}
	if a.b.useMocks() {
		_, err := fromMock(ctx, func() (struct{}, error) { return struct{}{}, a.b.mock.RemoveCartItem(id) })
		return err
	}
	return exec(ctx, a.b, authed(http.MethodDelete, "/cart/items/"+url.PathEscape(id), token, nil))
}

// Clear empties the server cart.
func (a *CartAPI) Clear(ctx context.Context) error {
	token, err := a.b.token()
	if err != nil {
		return err
	}
	if a.b.useMocks() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.b.mock.ClearCart()
		return nil
	}
	return exec(ctx, a.b, authed(http.MethodDelete, "/cart", token, nil))
}

// Checkout places an order for the given cart lines. The request carries a
// fresh idempotency key so the client may retry it.
func (a *CartAPI) Checkout(ctx context.Context, itemIDs []string, addressID string) (shop.Order, error) {
	token, err := a.b.token()
	if err != nil {
		return shop.Order{}, err
	}
	req := shop.CheckoutRequest{ItemIDs: itemIDs, AddressID: addressID}
	if a.b.useMocks() {
		return fromMock(ctx, func() (shop.Order, error) { return a.b.mock.Checkout(req) })
	}
	call := authed(http.MethodPost, "/orders", token, req)
	call.IdempotencyKey = uuid.NewString()
	return fetch[shop.Order](ctx, a.b, call)
}

// Orders lists the placed orders.
func (a *CartAPI) Orders(ctx context.Context) ([]shop.Order, error) {
	token, err := a.b.token()
	if err != nil {
		return nil, err
	}
	if a.b.useMocks() {
		return fromMock(ctx, just(a.b.mock.Orders()))
	}
	return fetch[[]shop.Order](ctx, a.b, authed(http.MethodGet, "/orders", token, nil))
}
