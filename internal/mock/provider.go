// Package mock holds the in-memory fixture set answered in mock mode and
// served by the mock backend.
package mock

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
)

// Provider answers every facade operation from fixtures. Catalog and content
// are read-only; profile, addresses, cart and orders are mutable per
// provider. All lookups return copies.
type Provider struct {
	now func() time.Time

	products   []shop.Product
	categories []shop.Category
	articles   []shop.Article
	heritage   []shop.HeritageItem

	mu        sync.RWMutex
	profile   shop.UserProfile
	addresses []shop.Address
	cart      []shop.CartItem
	orders    []shop.Order
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a provider loaded with the fixture set.
func New(opts ...Option) *Provider {
	p := &Provider{
		now:        time.Now,
		products:   fixtureProducts(),
		categories: fixtureCategories(),
		articles:   fixtureArticles(),
		heritage:   fixtureHeritage(),
		profile:    fixtureProfile(),
		addresses:  fixtureAddresses(),
		cart:       fixtureCart(),
	}
	for _, opt := range opts {
		opt(p)
	}
	counts := make(map[string]int)
	for _, prod := range p.products {
		counts[prod.CategoryID]++
	}
	for i := range p.categories {
		p.categories[i].ProductCount = counts[p.categories[i].ID]
	}
	return p
}

// Reset restores the mutable state to the fixtures.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = fixtureProfile()
	p.addresses = fixtureAddresses()
	p.cart = fixtureCart()
	p.orders = nil
}

// =============================================================================
// Catalog
// =============================================================================

// FeaturedProducts returns the products flagged featured.
func (p *Provider) FeaturedProducts() []shop.Product {
	out := make([]shop.Product, 0)
	for _, prod := range p.products {
		if prod.Featured {
			out = append(out, prod.Clone())
		}
	}
	return out
}

// Product returns the product with id.
func (p *Provider) Product(id string) (shop.Product, error) {
	for _, prod := range p.products {
		if prod.ID == id {
			return prod.Clone(), nil
		}
	}
	return shop.Product{}, apperr.NewNotFoundError("product", id)
}

// Products returns all products, or those of categoryID when it is set.
func (p *Provider) Products(categoryID string) []shop.Product {
	out := make([]shop.Product, 0, len(p.products))
	for _, prod := range p.products {
		if categoryID == "" || prod.CategoryID == categoryID {
			out = append(out, prod.Clone())
		}
	}
	return out
}

// Search matches query case-insensitively against name, description and
// tags and returns the requested page.
func (p *Provider) Search(query string, page, pageSize int) shop.SearchResult {
	var hits []shop.Product
	for _, prod := range p.products {
		if prod.Matches(query) {
			hits = append(hits, prod)
		}
	}
	return shop.Paginate(hits, page, pageSize)
}

// Categories returns every category.
func (p *Provider) Categories() []shop.Category {
	return append([]shop.Category(nil), p.categories...)
}

// Category returns the category with id.
func (p *Provider) Category(id string) (shop.Category, error) {
	for _, c := range p.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return shop.Category{}, apperr.NewNotFoundError("category", id)
}

// =============================================================================
// User
// =============================================================================

// Login accepts only the fixture credentials.
func (p *Provider) Login(username, password string) (shop.LoginResult, error) {
	if strings.TrimSpace(username) == "" {
		return shop.LoginResult{}, apperr.RequiredError("username")
	}
	if password == "" {
		return shop.LoginResult{}, apperr.RequiredError("password")
	}
	if username != Username || password != Password {
		return shop.LoginResult{}, apperr.NewAPIError(401, "用户名或密码错误")
	}
	return shop.LoginResult{Token: TokenPrefix + username, User: p.Profile()}, nil
}

// Profile returns the fixture user profile.
func (p *Provider) Profile() shop.UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// UpdateProfile applies u and returns the updated profile.
func (p *Provider) UpdateProfile(u shop.ProfileUpdate) shop.UserProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = u.Apply(p.profile)
	return p.profile
}

// Addresses returns the saved addresses, default first.
func (p *Provider) Addresses() []shop.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := append([]shop.Address(nil), p.addresses...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out
}

// AddAddress stores a new address. The first address, or one flagged
// default, becomes the default.
func (p *Provider) AddAddress(a shop.Address) (shop.Address, error) {
	if err := validateAddress(a); err != nil {
		return shop.Address{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a.ID = "a_" + shortID()
	if len(p.addresses) == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		p.clearDefaultLocked()
	}
	p.addresses = append(p.addresses, a)
	return a, nil
}

// UpdateAddress replaces the address with id.
func (p *Provider) UpdateAddress(id string, a shop.Address) (shop.Address, error) {
	if err := validateAddress(a); err != nil {
		return shop.Address{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.addresses {
		if p.addresses[i].ID != id {
			continue
		}
		a.ID = id
		if a.IsDefault {
			p.clearDefaultLocked()
		}
		p.addresses[i] = a
		return a, nil
	}
	return shop.Address{}, apperr.NewNotFoundError("address", id)
}

// DeleteAddress removes the address with id. Deleting the default promotes
// the first remaining address.
func (p *Provider) DeleteAddress(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.addresses {
		if a.ID != id {
			continue
		}
		p.addresses = append(p.addresses[:i:i], p.addresses[i+1:]...)
		if a.IsDefault && len(p.addresses) > 0 {
			p.addresses[0].IsDefault = true
		}
		return nil
	}
	return apperr.NewNotFoundError("address", id)
}

func (p *Provider) clearDefaultLocked() {
	for i := range p.addresses {
		p.addresses[i].IsDefault = false
	}
}

func validateAddress(a shop.Address) error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return apperr.RequiredError("name")
	case strings.TrimSpace(a.Phone) == "":
		return apperr.RequiredError("phone")
	case strings.TrimSpace(a.Detail) == "":
		return apperr.RequiredError("detail")
	}
	return nil
}

// =============================================================================
// Cart & Orders
// =============================================================================

// CartItems returns the server cart.
func (p *Provider) CartItems() []shop.CartItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]shop.CartItem, 0, len(p.cart))
	for _, it := range p.cart {
		out = append(out, it.Clone())
	}
	return out
}

// AddCartItem adds a line, or increases the quantity of an existing line
// with the same product and specs, and returns the line id.
func (p *Provider) AddCartItem(req shop.AddCartItemRequest) (string, error) {
	if req.Quantity < 1 {
		return "", apperr.NewValidationError("quantity", "数量必须大于0")
	}
	prod, err := p.Product(req.ProductID)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cart {
		if p.cart[i].SameLine(req.ProductID, req.SelectedSpecs) {
			p.cart[i].Quantity += req.Quantity
			return p.cart[i].ID, nil
		}
	}
	item := shop.CartItem{
		ID:            "ci_" + shortID(),
		ProductID:     prod.ID,
		Name:          prod.Name,
		Quantity:      req.Quantity,
		SelectedSpecs: shop.CartItem{SelectedSpecs: req.SelectedSpecs}.Clone().SelectedSpecs,
		Price:         prod.Price,
		Selected:      true,
		AddedAt:       p.now(),
	}
	if len(prod.Images) > 0 {
		item.Image = prod.Images[0]
	}
	p.cart = append(p.cart, item)
	return item.ID, nil
}

// UpdateCartItem sets the quantity of the line with id.
func (p *Provider) UpdateCartItem(id string, quantity int) error {
	if quantity < 1 {
		return apperr.NewValidationError("quantity", "数量必须大于0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cart {
		if p.cart[i].ID == id {
			p.cart[i].Quantity = quantity
			return nil
		}
	}
	return apperr.NewNotFoundError("cart item", id)
}

// RemoveCartItem removes the line with id.
func (p *Provider) RemoveCartItem(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.cart {
		if p.cart[i].ID == id {
			p.cart = append(p.cart[:i:i], p.cart[i+1:]...)
			return nil
		}
	}
	return apperr.NewNotFoundError("cart item", id)
}

// ClearCart empties the server cart.
func (p *Provider) ClearCart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cart = nil
}

// Checkout turns the named lines into an order and removes them from the
// cart.
func (p *Provider) Checkout(req shop.CheckoutRequest) (shop.Order, error) {
	if len(req.ItemIDs) == 0 {
		return shop.Order{}, apperr.NewValidationError("itemIds", "请选择要结算的商品")
	}
	if req.AddressID == "" {
		return shop.Order{}, apperr.RequiredError("addressId")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasAddressLocked(req.AddressID) {
		return shop.Order{}, apperr.NewNotFoundError("address", req.AddressID)
	}
	wanted := make(map[string]bool, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		wanted[id] = true
	}
	var picked, kept []shop.CartItem
	for _, it := range p.cart {
		if wanted[it.ID] {
			picked = append(picked, it.Clone())
			delete(wanted, it.ID)
			continue
		}
		kept = append(kept, it)
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return shop.Order{}, apperr.NewNotFoundError("cart item", missing[0])
	}
	order := shop.Order{
		ID:        "o_" + shortID(),
		Items:     picked,
		AddressID: req.AddressID,
		Total:     shop.LineTotal(picked),
		Status:    shop.OrderPending,
		CreatedAt: p.now(),
	}
	p.cart = kept
	p.orders = append(p.orders, order)
	return order, nil
}

// Orders returns the placed orders.
func (p *Provider) Orders() []shop.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]shop.Order(nil), p.orders...)
}

func (p *Provider) hasAddressLocked(id string) bool {
	for _, a := range p.addresses {
		if a.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// Content
// =============================================================================

// Articles returns every article, newest first.
func (p *Provider) Articles() []shop.Article {
	out := make([]shop.Article, 0, len(p.articles))
	for _, a := range p.articles {
		out = append(out, a.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out
}

// FeaturedArticles returns the articles flagged featured.
func (p *Provider) FeaturedArticles() []shop.Article {
	out := make([]shop.Article, 0)
	for _, a := range p.articles {
		if a.Featured {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Article returns the article with id.
func (p *Provider) Article(id string) (shop.Article, error) {
	for _, a := range p.articles {
		if a.ID == id {
			return a.Clone(), nil
		}
	}
	return shop.Article{}, apperr.NewNotFoundError("article", id)
}

// HeritageItems returns every heritage entry.
func (p *Provider) HeritageItems() []shop.HeritageItem {
	out := make([]shop.HeritageItem, 0, len(p.heritage))
	for _, h := range p.heritage {
		out = append(out, h.Clone())
	}
	return out
}

// HeritageItem returns the heritage entry with id.
func (p *Provider) HeritageItem(id string) (shop.HeritageItem, error) {
	for _, h := range p.heritage {
		if h.ID == id {
			return h.Clone(), nil
		}
	}
	return shop.HeritageItem{}, apperr.NewNotFoundError("heritage item", id)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
