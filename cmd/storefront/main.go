// Command storefront drives the storefront client from the command line. It
// keeps the device state (session token, local cart, history) in a file or
// in Redis so consecutive invocations behave like one app session.
//
//	storefront featured
//	storefront search 普洱
//	storefront -env staging login test_user password123
//	storefront cart-add p1 2
//	storefront checkout a1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/app"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/config"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

const usage = `usage: storefront [flags] <command> [args]

commands:
  featured                 list featured products
  categories               list categories
  product <id>             show one product
  search <query> [page]    search products
  login <user> <password>  sign in and merge the local cart
  logout                   sign out
  profile                  show the signed-in profile
  addresses                list saved addresses
  articles [featured|id]   list articles, the featured ones, or show one
  heritage [id]            list heritage entries or show one
  cart                     show the cart
  cart-add <id> [qty]      add a product to the cart
  cart-rm <line>           remove a cart line
  checkout [address]       order the selected lines (default address when omitted)
  env [name]               show or switch the API environment

In mock mode the server cart lives only as long as one invocation; run
cmd/mockserver and use -env staging with SHOP_BASE_URL to keep it.

flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	configFile := flag.String("config", "", "YAML environment overlay")
	env := flag.String("env", "", "environment: development, staging or production")
	backend := flag.String("storage", string(app.StorageFile), "device storage: memory, file or redis")
	storagePath := flag.String("storage-path", defaultStoragePath(), "device storage file")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "redis address for -storage redis")
	redisPrefix := flag.String("redis-prefix", "storefront:", "redis key prefix")
	rps := flag.Float64("rps", 0, "client request rate limit, 0 disables")
	asJSON := flag.Bool("json", false, "print results as JSON")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New("storefront", logger.Config{Level: level})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Options{
		ConfigFile:  *configFile,
		DotenvFiles: []string{".env"},
		Environment: *env,
		Storage:     app.StorageKind(*backend),
		StoragePath: *storagePath,
		Redis:       storage.RedisConfig{Addr: *redisAddr, Prefix: *redisPrefix},
		RateLimit:   *rps,
		RateBurst:   1,
		Logger:      log,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.WithError(err).Warn("state restore incomplete")
	}

	out := &printer{json: *asJSON}
	cmdErr := run(ctx, a, out, flag.Arg(0), flag.Args()[1:])
	for _, t := range a.UI.Toasts() {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", t.Kind, t.Message)
	}
	if cmdErr != nil {
		fmt.Fprintln(os.Stderr, "error:", cmdErr)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.Application, out *printer, cmd string, args []string) error {
	switch cmd {
	case "featured":
		products, err := a.Products.FetchFeatured(ctx)
		if err != nil {
			return err
		}
		return out.products(products)

	case "categories":
		categories, err := a.Products.FetchCategories(ctx)
		if err != nil {
			return err
		}
		if out.json {
			return out.value(categories)
		}
		w := out.table("ID", "NAME", "PRODUCTS")
		for _, c := range categories {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Name, c.ProductCount)
		}
		return w.Flush()

	case "product":
		if len(args) < 1 {
			return fmt.Errorf("product: id required")
		}
		p, err := a.Products.FetchProduct(ctx, args[0])
		if err != nil {
			return err
		}
		a.Products.RecordView(ctx, p.ID)
		return out.value(p)

	case "search":
		if len(args) < 1 {
			return fmt.Errorf("search: query required")
		}
		res, err := a.Products.Search(ctx, args[0])
		if err != nil {
			return err
		}
		if len(args) > 1 {
			page, perr := strconv.Atoi(args[1])
			if perr != nil || page < 1 {
				return fmt.Errorf("search: invalid page %q", args[1])
			}
			for res.Page < page && res.HasMore {
				if res, err = a.Products.LoadMore(ctx); err != nil {
					return err
				}
			}
		}
		if out.json {
			return out.value(res)
		}
		fmt.Printf("%d results, page %d\n", res.Total, res.Page)
		return out.products(res.Items)

	case "login":
		if len(args) < 2 {
			return fmt.Errorf("login: username and password required")
		}
		if !a.Users.Login(ctx, args[0], args[1]) {
			return fmt.Errorf("login failed")
		}
		p := a.Users.Profile()
		if p != nil {
			fmt.Printf("signed in as %s (%s)\n", p.Nickname, p.Username)
		}
		return nil

	case "logout":
		a.Users.Logout(ctx)
		fmt.Println("signed out")
		return nil

	case "profile":
		p, err := a.Users.FetchProfile(ctx)
		if err != nil {
			return err
		}
		return out.value(p)

	case "addresses":
		list, err := a.Users.FetchAddresses(ctx)
		if err != nil {
			return err
		}
		if out.json {
			return out.value(list)
		}
		w := out.table("ID", "NAME", "ADDRESS", "DEFAULT")
		for _, ad := range list {
			fmt.Fprintf(w, "%s\t%s\t%s%s%s%s\t%t\n", ad.ID, ad.Name, ad.Province, ad.City, ad.District, ad.Detail, ad.IsDefault)
		}
		return w.Flush()

	case "articles":
		if len(args) > 0 && args[0] != "featured" {
			article, err := a.Content.FetchArticle(ctx, args[0])
			if err != nil {
				return err
			}
			return out.value(article)
		}
		articles, err := a.Content.FetchArticles(ctx, len(args) > 0)
		if err != nil {
			return err
		}
		if out.json {
			return out.value(articles)
		}
		w := out.table("ID", "TITLE", "AUTHOR", "VIEWS")
		for _, ar := range articles {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", ar.ID, ar.Title, ar.Author, ar.Views)
		}
		return w.Flush()

	case "heritage":
		if len(args) > 0 {
			item, err := a.Content.FetchHeritageItem(ctx, args[0])
			if err != nil {
				return err
			}
			return out.value(item)
		}
		items, err := a.Content.FetchHeritage(ctx)
		if err != nil {
			return err
		}
		if out.json {
			return out.value(items)
		}
		w := out.table("ID", "NAME", "REGION", "CATEGORY")
		for _, h := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.ID, h.Name, h.Region, h.Category)
		}
		return w.Flush()

	case "cart":
		return out.cart(a)

	case "cart-add":
		if len(args) < 1 {
			return fmt.Errorf("cart-add: product id required")
		}
		qty := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("cart-add: invalid quantity %q", args[1])
			}
			qty = n
		}
		if err := a.Cart.AddItem(ctx, args[0], qty, nil); err != nil {
			return err
		}
		return out.cart(a)

	case "cart-rm":
		if len(args) < 1 {
			return fmt.Errorf("cart-rm: line id required")
		}
		if err := a.Cart.RemoveItem(ctx, args[0]); err != nil {
			return err
		}
		return out.cart(a)

	case "checkout":
		addressID := ""
		if len(args) > 0 {
			addressID = args[0]
		} else {
			if _, err := a.Users.FetchAddresses(ctx); err != nil {
				return err
			}
			def, ok := a.Users.DefaultAddress()
			if !ok {
				return fmt.Errorf("checkout: no default address")
			}
			addressID = def.ID
		}
		order, err := a.Cart.Checkout(ctx, addressID)
		if err != nil {
			return err
		}
		if out.json {
			return out.value(order)
		}
		fmt.Printf("order %s placed: %d lines, total ¥%.2f (%s)\n", order.ID, len(order.Items), order.Total, order.Status)
		return nil

	case "env":
		if len(args) == 0 {
			current := a.Config.Environment()
			for _, e := range a.Config.Environments() {
				s, _ := a.Config.Lookup(e)
				marker := " "
				if e == current {
					marker = "*"
				}
				fmt.Printf("%s %-12s %s timeout=%s mocks=%t\n", marker, e, s.BaseURL, s.Timeout, s.UseMocks)
			}
			return nil
		}
		e, err := config.ParseEnvironment(args[0])
		if err != nil {
			return err
		}
		return a.UI.SwitchEnvironment(e)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

type printer struct {
	json bool
}

func (p *printer) value(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(columns ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	return w
}

func (p *printer) products(list []shop.Product) error {
	if p.json {
		return p.value(list)
	}
	w := p.table("ID", "NAME", "PRICE", "ORIGIN")
	for _, it := range list {
		fmt.Fprintf(w, "%s\t%s\t¥%.2f\t%s\n", it.ID, it.Name, it.Price, it.Origin)
	}
	return w.Flush()
}

func (p *printer) cart(a *app.Application) error {
	items := a.Cart.Items()
	if p.json {
		return p.value(items)
	}
	fmt.Printf("%s cart, %d items\n", a.Cart.Mode(), a.Cart.ItemCount())
	w := p.table("LINE", "PRODUCT", "QTY", "PRICE", "SELECTED")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t¥%.2f\t%t\n", it.ID, it.Name, it.Quantity, it.Price, it.Selected)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("selected total ¥%.2f\n", a.Cart.SelectedTotal())
	return nil
}

func defaultStoragePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "yunnan-taste", "device.json")
	}
	return filepath.Join(os.TempDir(), "yunnan-taste-device.json")
}
