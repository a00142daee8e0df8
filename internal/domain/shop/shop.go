// Package shop defines the storefront entities shared by the mock provider,
// the API facades, the stores and the mock backend.
package shop

import (
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Catalog
// =============================================================================

// Spec is a selectable product dimension such as weight or packaging.
type Spec struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// Product is a catalog entry.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Images        []string `json:"images"`
	CategoryID    string   `json:"categoryId"`
	Tags          []string `json:"tags,omitempty"`
	Origin        string   `json:"origin,omitempty"`
	Stock         int      `json:"stock"`
	Sales         int      `json:"sales"`
	Rating        float64  `json:"rating"`
	Featured      bool     `json:"featured"`
	Specs         []Spec   `json:"specs,omitempty"`
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	p.Images = append([]string(nil), p.Images...)
	p.Tags = append([]string(nil), p.Tags...)
	if p.Specs != nil {
		specs := make([]Spec, len(p.Specs))
		for i, s := range p.Specs {
			specs[i] = Spec{Name: s.Name, Options: append([]string(nil), s.Options...)}
		}
		p.Specs = specs
	}
	return p
}

// Matches reports whether the lower-cased query occurs in the name,
// description or any tag.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Category groups products.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Icon         string `json:"icon,omitempty"`
	Description  string `json:"description,omitempty"`
	ProductCount int    `json:"productCount"`
}

// SearchResult is one page of a product search.
type SearchResult struct {
	Items    []Product `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	HasMore  bool      `json:"hasMore"`
}

// DefaultPageSize is used when a search does not name one.
const DefaultPageSize = 10

// Paginate slices items into the requested 1-based page.
func Paginate(items []Product, page, pageSize int) SearchResult {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]Product, 0, end-start)
	for _, p := range items[start:end] {
		out = append(out, p.Clone())
	}
	return SearchResult{Items: out, Total: total, Page: page, PageSize: pageSize, HasMore: end < total}
}

// =============================================================================
// User
// =============================================================================

// UserProfile is the signed-in user's profile.
type UserProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Nickname    string    `json:"nickname"`
	Avatar      string    `json:"avatar,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	MemberLevel string    `json:"memberLevel,omitempty"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProfileUpdate is a partial profile change; nil fields are left alone.
type ProfileUpdate struct {
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// Apply returns p with the non-nil fields of u applied.
func (u ProfileUpdate) Apply(p UserProfile) UserProfile {
	if u.Nickname != nil {
		p.Nickname = *u.Nickname
	}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	return p
}

// Address is a delivery address.
type Address struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Province  string `json:"province"`
	City      string `json:"city"`
	District  string `json:"district"`
	Detail    string `json:"detail"`
	IsDefault bool   `json:"isDefault"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// =============================================================================
// Cart & Orders
// =============================================================================

// CartItem is one cart line. Price is captured when the item is added.
type CartItem struct {
	ID            string            `json:"id"`
	ProductID     string            `json:"productId"`
	Name          string            `json:"name,omitempty"`
	Image         string            `json:"image,omitempty"`
	Quantity      int               `json:"quantity"`
	SelectedSpecs map[string]string `json:"selectedSpecs,omitempty"`
	Price         float64           `json:"price"`
	Selected      bool              `json:"selected"`
	AddedAt       time.Time         `json:"addedAt"`
}

// Clone returns a deep copy of c.
func (c CartItem) Clone() CartItem {
	if c.SelectedSpecs != nil {
		specs := make(map[string]string, len(c.SelectedSpecs))
		for k, v := range c.SelectedSpecs {
			specs[k] = v
		}
		c.SelectedSpecs = specs
	}
	return c
}

// SameLine reports whether c is for the same product and spec selection.
func (c CartItem) SameLine(productID string, specs map[string]string) bool {
	return c.ProductID == productID && SpecsKey(c.SelectedSpecs) == SpecsKey(specs)
}

// SpecsKey renders a spec selection in a stable form for comparison.
func SpecsKey(specs map[string]string) string {
	if len(specs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(specs[k])
	}
	return b.String()
}

// AddCartItemRequest adds a product to the server cart.
type AddCartItemRequest struct {
	ProductID     string            `json:"productId"`
	Quantity      int               `json:"quantity"`
	SelectedSpecs map[string]string `json:"selectedSpecs,omitempty"`
}

// AddCartItemResult carries the id assigned to the new cart line.
type AddCartItemResult struct {
	CartID string `json:"cartId"`
}

// UpdateQuantityRequest changes a cart line quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// CheckoutRequest turns the named cart lines into an order.
type CheckoutRequest struct {
	ItemIDs   []string `json:"itemIds"`
	AddressID string   `json:"addressId"`
}

// Order is a placed order.
type Order struct {
	ID        string      `json:"id"`
	Items     []CartItem  `json:"items"`
	AddressID string      `json:"addressId"`
	Total     float64     `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// LineTotal sums price times quantity, rounded to cents.
func LineTotal(items []CartItem) float64 {
	var cents int64
	for _, it := range items {
		cents += int64(it.Price*100+0.5) * int64(it.Quantity)
	}
	return float64(cents) / 100
}

// =============================================================================
// Content
// =============================================================================

// Article is an editorial story.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content,omitempty"`
	Cover       string    `json:"cover,omitempty"`
	Author      string    `json:"author,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Featured    bool      `json:"featured"`
	Views       int       `json:"views"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Clone returns a deep copy of a.
func (a Article) Clone() Article {
	a.Tags = append([]string(nil), a.Tags...)
	return a
}

// HeritageItem is an intangible cultural heritage entry.
type HeritageItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Region      string   `json:"region"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Story       string   `json:"story,omitempty"`
	Images      []string `json:"images,omitempty"`
	ProductIDs  []string `json:"productIds,omitempty"`
}

// Clone returns a deep copy of h.
func (h HeritageItem) Clone() HeritageItem {
	h.Images = append([]string(nil), h.Images...)
	h.ProductIDs = append([]string(nil), h.ProductIDs...)
	return h
}
