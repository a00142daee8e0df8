package apperr

import (
	"net/http"
	"strings"
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// Type is the user-facing error category.
type Type string

const (
	TypeNetwork    Type = "NETWORK"
	TypeAuth       Type = "AUTH"
	TypeNotFound   Type = "NOT_FOUND"
	TypeValidation Type = "VALIDATION"
	TypeServer     Type = "SERVER"
	TypeUnknown    Type = "UNKNOWN"
)

// Fixed user-facing messages per category. Validation errors keep the
// original message instead.
const (
	MessageNetwork  = "网络连接失败，请检查网络设置"
	MessageAuth     = "登录已过期，请重新登录"
	MessageNotFound = "请求的资源不存在"
	MessageServer   = "服务器繁忙，请稍后再试"
	MessageUnknown  = "操作失败，请稍后再试"
)

// Pages the handler navigates to.
const (
	PageLogin        = "/pages/login/login"
	PageNetworkError = "/pages/network-error/network-error"
)

// DefaultLoginRedirectDelay is how long an AUTH toast stays visible before
// the login page is opened.
const DefaultLoginRedirectDelay = 1500 * time.Millisecond

// Details is the classification result.
type Details struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Classify maps err onto the error taxonomy. The first matching rule wins:
// offline, a "network" message or code 0 is NETWORK; 401/403 AUTH; 404
// NOT_FOUND; 400/422 VALIDATION; 5xx SERVER; anything else UNKNOWN.
func Classify(err error, offline bool, defaultMessage string) Details {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	code, hasCode := CodeOf(err)

	switch {
	case offline || strings.Contains(strings.ToLower(msg), "network") || (hasCode && code == 0):
		return Details{Type: TypeNetwork, Message: MessageNetwork, Code: code}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Details{Type: TypeAuth, Message: MessageAuth, Code: code}
	case code == http.StatusNotFound:
		return Details{Type: TypeNotFound, Message: MessageNotFound, Code: code}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = defaultMessage
		}
		return Details{Type: TypeValidation, Message: msg, Code: code}
	case code >= 500:
		return Details{Type: TypeServer, Message: MessageServer, Code: code}
	}

	if defaultMessage == "" {
		defaultMessage = MessageUnknown
	}
	return Details{Type: TypeUnknown, Message: defaultMessage, Code: code}
}

// Notifier displays an error toast.
type Notifier interface {
	ShowError(message string)
}

// Navigator opens a page.
type Navigator interface {
	Navigate(page string)
}

// NetworkStatus reports device connectivity.
type NetworkStatus interface {
	Online() bool
}

// Handler classifies failures and triggers the matching UI side effects.
// All collaborators are optional.
type Handler struct {
	notifier      Notifier
	navigator     Navigator
	network       NetworkStatus
	redirectDelay time.Duration
	log           *logger.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithNotifier sets the toast sink.
func WithNotifier(n Notifier) HandlerOption { return func(h *Handler) { h.notifier = n } }

// WithNavigator sets the page navigator.
func WithNavigator(n Navigator) HandlerOption { return func(h *Handler) { h.navigator = n } }

// WithNetworkStatus sets the connectivity source.
func WithNetworkStatus(s NetworkStatus) HandlerOption { return func(h *Handler) { h.network = s } }

// WithRedirectDelay overrides DefaultLoginRedirectDelay.
func WithRedirectDelay(d time.Duration) HandlerOption {
	return func(h *Handler) { h.redirectDelay = d }
}

// NewHandler creates an error handler.
func NewHandler(log *logger.Logger, opts ...HandlerOption) *Handler {
	if log == nil {
		log = logger.NewDefault("errors")
	}
	h := &Handler{redirectDelay: DefaultLoginRedirectDelay, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach sets collaborators after construction. The UI store is usually
// built after the handler, so this is the common path.
func (h *Handler) Attach(opts ...HandlerOption) {
	for _, opt := range opts {
		opt(h)
	}
}

// Handle classifies err, shows a toast and schedules navigation when the
// category calls for it. Side effects never change the returned details.
func (h *Handler) Handle(err error, defaultMessage string) Details {
	offline := h.network != nil && !h.network.Online()
	d := Classify(err, offline, defaultMessage)

	h.log.WithError(err).WithFields(map[string]interface{}{
		"type": d.Type,
		"code": d.Code,
	}).Warn("api error")

	if h.notifier != nil {
		h.notifier.ShowError(d.Message)
	}

	if h.navigator == nil {
		return d
	}
	switch {
	case d.Type == TypeAuth:
		nav := h.navigator
		time.AfterFunc(h.redirectDelay, func() { nav.Navigate(PageLogin) })
	case d.Type == TypeNetwork && offline:
		h.navigator.Navigate(PageNetworkError)
	}
	return d
}
