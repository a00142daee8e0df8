package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/api"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/auth"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/httputil"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/mock"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/store"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// StorageKind selects the device storage backend.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
)

// Options configure New. The zero value gives an in-memory development
// application backed by fixtures.
type Options struct {
	// ConfigFile is an optional YAML overlay; see config.LoadFile.
	ConfigFile string
	// DotenvFiles are loaded before SHOP_* variables are applied. Missing
	// files are ignored.
	DotenvFiles []string
	// Environment, when set, wins over the file and the process environment.
	Environment string

	Storage     StorageKind
	StoragePath string
	Redis       storage.RedisConfig

	// RateLimit throttles API attempts per second; 0 disables.
	RateLimit float64
	RateBurst int

	RedirectDelay time.Duration
	Logger        *logger.Logger

	// Provider overrides the fixture provider used in mock mode.
	Provider *mock.Provider
}

// Application ties the client components together and manages their
// lifecycle.
type Application struct {
	log     *logger.Logger
	detach  []func()
	closers []func() error

	Config  *config.Config
	Storage storage.KV
	Client  *httputil.Client
	API     *api.API
	Session *auth.Service
	Loading *loading.Manager
	Errors  *apperr.Handler

	Products *store.ProductStore
	Users    *store.UserStore
	Cart     *store.CartStore
	Content  *store.ContentStore
	UI       *store.UIStore
}

// New builds a fully wired application.
func New(ctx context.Context, opts Options) (*Application, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("storefront")
	}
	a := &Application{log: log}

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	a.Config = cfg

	kv, closeKV, err := openStorage(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.Storage = kv
	if closeKV != nil {
		a.closers = append(a.closers, closeKV)
	}

	a.Client = httputil.NewClient(cfg,
		httputil.WithLogger(log.Named("http")),
		httputil.WithRateLimit(opts.RateLimit, opts.RateBurst),
	)
	a.Loading = loading.NewManager()
	a.detach = append(a.detach,
		httputil.InstallLogging(a.Client, log.Named("http")),
		httputil.InstallMetrics(a.Client),
		a.Loading.Attach(a.Client, loading.Global, "加载中"),
	)

	provider := opts.Provider
	if provider == nil {
		provider = mock.New()
	}
	a.API = api.New(cfg, a.Client, provider)
	a.Session = auth.New(a.API.User, kv, log.Named("auth"))
	a.API.BindTokenSource(a.Session)

	var handlerOpts []apperr.HandlerOption
	if opts.RedirectDelay > 0 {
		handlerOpts = append(handlerOpts, apperr.WithRedirectDelay(opts.RedirectDelay))
	}
	a.Errors = apperr.NewHandler(log.Named("errors"), handlerOpts...)

	deps := store.Deps{Loading: a.Loading, Errors: a.Errors, Storage: kv, Log: log}
	a.UI = store.NewUIStore(cfg, deps)
	a.Errors.Attach(apperr.WithNotifier(a.UI), apperr.WithNavigator(a.UI), apperr.WithNetworkStatus(a.UI))

	a.Products = store.NewProductStore(a.API.Product, deps)
	a.Users = store.NewUserStore(a.API.User, a.Session, deps)
	a.Cart = store.NewCartStore(a.API.Cart, a.Products, deps)
	a.Content = store.NewContentStore(a.API.Content, deps)
	a.Users.OnLogin(a.Cart.MergeWithServerCart)
	a.Users.OnLogout(a.Cart.Reset)

	env, s := cfg.Current()
	log.WithFields(map[string]interface{}{
		"environment": env,
		"base_url":    s.BaseURL,
		"use_mocks":   s.UseMocks,
		"storage":     storageName(opts.Storage),
	}).Info("storefront initialised")
	return a, nil
}

// Start restores persisted state: UI preferences, product history, the
// session and the cart. A restored session takes over the local cart the
// same way a fresh login does.
func (a *Application) Start(ctx context.Context) error {
	a.UI.Restore(ctx)
	a.Products.Restore(ctx)

	if err := a.Users.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.WithError(err).Debug("starting signed out")
	}
	if a.Users.IsAuthenticated() {
		return a.Cart.MergeWithServerCart(ctx)
	}
	return a.Cart.Load(ctx)
}

// Close detaches the client interceptors and releases the storage backend.
func (a *Application) Close() error {
	for _, off := range a.detach {
		off()
	}
	a.detach = nil
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func loadConfig(opts Options) (*config.Config, error) {
	cfg := config.New(config.Development)
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}
	var env config.Environment
	if opts.Environment != "" {
		var err error
		if env, err = config.ParseEnvironment(opts.Environment); err != nil {
			return nil, err
		}
		// Select it first so SHOP_* overrides land on it.
		if err := cfg.SetEnvironment(env); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(cfg, opts.DotenvFiles...); err != nil {
		return nil, err
	}
	if env != "" {
		if err := cfg.SetEnvironment(env); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func openStorage(ctx context.Context, opts Options) (storage.KV, func() error, error) {
	switch opts.Storage {
	case "", StorageMemory:
		return storage.NewMemory(), nil, nil
	case StorageFile:
		if opts.StoragePath == "" {
			return nil, nil, fmt.Errorf("file storage requires a path")
		}
		f, err := storage.OpenFile(opts.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	case StorageRedis:
		r, err := storage.NewRedis(ctx, opts.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Storage)
}

func storageName(k StorageKind) string {
	if k == "" {
		return string(StorageMemory)
	}
	return string(k)
}
