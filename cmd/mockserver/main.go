// Command mockserver serves the storefront API from fixtures so the client can
// run against a real HTTP backend in staging mode.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/mockserver"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

func main() {
	addr := flag.String("addr", envOr("MOCKSERVER_ADDR", ":3000"), "listen address")
	prefix := flag.String("prefix", "/api", "path prefix of the API routes")
	secret := flag.String("secret", os.Getenv("MOCKSERVER_JWT_SECRET"), "HS256 token secret (default development secret when empty)")
	origins := flag.String("origins", os.Getenv("MOCKSERVER_ALLOWED_ORIGINS"), "comma separated CORS origins, .domain for subdomains, * for any")
	rps := flag.Float64("rps", 0, "per-client request rate limit, 0 disables")
	burst := flag.Int("burst", 20, "rate limit burst")
	ttl := flag.Duration("token-ttl", mockserver.DefaultTokenTTL, "session token lifetime")
	logFormat := flag.String("log-format", envOr("LOG_FORMAT", "text"), "text or json")
	flag.Parse()

	log := logger.New("mockserver", logger.Config{Level: os.Getenv("LOG_LEVEL"), Format: *logFormat})

	opts := []mockserver.Option{
		mockserver.WithLogger(log),
		mockserver.WithPrefix(*prefix),
		mockserver.WithTokenTTL(*ttl),
		mockserver.WithRateLimit(*rps, *burst),
	}
	if *secret != "" {
		opts = append(opts, mockserver.WithSecret(*secret))
	} else {
		log.Warn("MOCKSERVER_JWT_SECRET not set; using the development secret")
	}
	if list := splitAndTrimCSV(*origins); len(list) > 0 {
		opts = append(opts, mockserver.WithAllowedOrigins(list...))
	}

	srv, err := mockserver.New(opts...)
	if err != nil {
		log.WithError(err).Fatal("failed to create mock server")
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", *addr).WithField("prefix", *prefix).Info("mock server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitAndTrimCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
