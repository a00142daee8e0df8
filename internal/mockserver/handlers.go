package mockserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/mock"
)

func (s *Server) routes(r chi.Router) {
	// Catalog
	r.Get("/products", s.listProducts)
	r.Get("/products/featured", s.featuredProducts)
	r.Get("/products/search", s.searchProducts)
	r.Get("/products/{id}", s.getProduct)
	r.Get("/categories", s.listCategories)
	r.Get("/categories/{id}", s.getCategory)

	// Content
	r.Get("/content/articles", s.listArticles)
	r.Get("/content/articles/featured", s.featuredArticles)
	r.Get("/content/articles/{id}", s.getArticle)
	r.Get("/content/heritage", s.listHeritage)
	r.Get("/content/heritage/{id}", s.getHeritage)

	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/user/profile", s.getProfile)
		r.Put("/user/profile", s.updateProfile)
		r.Get("/user/addresses", s.listAddresses)
		r.Post("/user/addresses", s.addAddress)
		r.Put("/user/addresses/{id}", s.updateAddress)
		r.Delete("/user/addresses/{id}", s.deleteAddress)

		r.Get("/cart", s.getCart)
		r.Delete("/cart", s.clearCart)
		r.Post("/cart/items", s.addCartItem)
		r.Put("/cart/items/{id}", s.updateCartItem)
		r.Delete("/cart/items/{id}", s.removeCartItem)

		r.Get("/orders", s.listOrders)
		r.Post("/orders", s.checkout)
	})
}

// =============================================================================
// Responses
// =============================================================================

// envelope is the response body. Data is always present on success so the
// client can tell an envelope from a bare payload.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set(httputil.HeaderContentType, "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: message, Code: status})
}

// writeFailure maps a provider error onto a status code.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var apiErr *apperr.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		status = apiErr.Code
	case apperr.IsValidationError(err):
		status = http.StatusBadRequest
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case apperr.IsUnauthorized(err):
		status = http.StatusUnauthorized
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// respond writes v, or the failure when err is set.
func respond[T any](w http.ResponseWriter, status int, v T, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeData(w, status, v)
}

func (s *Server) user(r *http.Request) *mock.Provider {
	return s.state(userIDFrom(r.Context()))
}

func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// =============================================================================
// Catalog
// =============================================================================

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.catalog.Products(r.URL.Query().Get("categoryId")))
}

func (s *Server) featuredProducts(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.catalog.FeaturedProducts())
}

func (s *Server) searchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := s.catalog.Search(q.Get("query"), intParam(r, "page", 1), intParam(r, "pageSize", shop.DefaultPageSize))
	writeData(w, http.StatusOK, res)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Product(chi.URLParam(r, "id"))
	respond(w, http.StatusOK, p, err)
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.catalog.Categories())
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.Category(chi.URLParam(r, "id"))
	respond(w, http.StatusOK, c, err)
}

// =============================================================================
// Content
// =============================================================================

func (s *Server) listArticles(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.catalog.Articles())
}

func (s *Server) featuredArticles(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.catalog.FeaturedArticles())
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.catalog.Article(chi.URLParam(r, "id"))
	respond(w, http.StatusOK, a, err)
}

func (s *Server) listHeritage(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.catalog.HeritageItems())
}

func (s *Server) getHeritage(w http.ResponseWriter, r *http.Request) {
	h, err := s.catalog.HeritageItem(chi.URLParam(r, "id"))
	respond(w, http.StatusOK, h, err)
}

// =============================================================================
// Auth & User
// =============================================================================

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req shop.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "请输入用户名和密码")
		return
	}
	acct, ok := s.accounts[req.Username]
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		s.log.WithContext(r.Context()).WithField("username", req.Username).Info("login rejected")
		writeError(w, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	token, err := s.issueToken(acct.userID, req.Username)
	if err != nil {
		s.log.WithError(err).Error("failed to sign token")
		writeError(w, http.StatusInternalServerError, "登录失败")
		return
	}
	writeData(w, http.StatusOK, shop.LoginResult{Token: token, User: s.state(acct.userID).Profile()})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.user(r).Profile())
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var u shop.ProfileUpdate
	if !decode(w, r, &u) {
		return
	}
	writeData(w, http.StatusOK, s.user(r).UpdateProfile(u))
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.user(r).Addresses())
}

func (s *Server) addAddress(w http.ResponseWriter, r *http.Request) {
	var a shop.Address
	if !decode(w, r, &a) {
		return
	}
	added, err := s.user(r).AddAddress(a)
	respond(w, http.StatusCreated, added, err)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var a shop.Address
	if !decode(w, r, &a) {
		return
	}
	updated, err := s.user(r).UpdateAddress(chi.URLParam(r, "id"), a)
	respond(w, http.StatusOK, updated, err)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	err := s.user(r).DeleteAddress(chi.URLParam(r, "id"))
	respond[any](w, http.StatusOK, nil, err)
}

// =============================================================================
// Cart & Orders
// =============================================================================

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.user(r).CartItems())
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.user(r).ClearCart()
	writeData(w, http.StatusOK, nil)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req shop.AddCartItemRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.user(r).AddCartItem(req)
	respond(w, http.StatusCreated, shop.AddCartItemResult{CartID: id}, err)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req shop.UpdateQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.user(r).UpdateCartItem(chi.URLParam(r, "id"), req.Quantity)
	respond[any](w, http.StatusOK, nil, err)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	err := s.user(r).RemoveCartItem(chi.URLParam(r, "id"))
	respond[any](w, http.StatusOK, nil, err)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.user(r).Orders())
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req shop.CheckoutRequest
	if !decode(w, r, &req) {
		return
	}
	order, err := s.user(r).Checkout(req)
	if err == nil {
		s.log.WithContext(r.Context()).WithField("order_id", order.ID).WithField("total", order.Total).Info("order placed")
	}
	respond(w, http.StatusCreated, order, err)
}
