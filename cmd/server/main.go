package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/rezozero/subscribeme/internal/api"
	"github.com/rezozero/subscribeme/internal/auth"
	"github.com/rezozero/subscribeme/internal/config"
	"github.com/rezozero/subscribeme/internal/pkg/distlock"
	"github.com/rezozero/subscribeme/internal/pkg/httpretry"
	"github.com/rezozero/subscribeme/internal/pkg/logger"
	"github.com/rezozero/subscribeme/internal/repository/postgres"
	"github.com/rezozero/subscribeme/internal/service/subscription"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

// checkPortAvailable fails fast when something already listens on the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	return ln.Close()
}

// extractHost returns the host part of a DSN for logging without credentials.
func extractHost(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		fatal("pre-flight check failed", err)
	}

	// Outbound transport shared by every adapter.
	transport := httpretry.NewRetryClient(nil, httpretry.Options{
		MaxRetries: cfg.HTTP.MaxRetries,
		Timeout:    cfg.HTTP.Timeout(),
	})
	adapters, err := subscription.BuildAdapters(subscriber.NewFactory(transport), cfg.Platforms)
	if err != nil {
		fatal("failed to configure platforms", err)
	}
	logger.Info("platforms configured", "platforms", strings.Join(cfg.EnabledPlatforms(), ","))

	var (
		db   *sql.DB
		repo subscription.Repository
	)
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			fatal("failed to open database", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			fatal("database unreachable", err)
		}
		defer db.Close()
		repo = postgres.NewSubscriptionEventRepo(db)
		logger.Info("event store connected", "host", extractHost(cfg.Database.URL))
	} else {
		logger.Warn("no database configured, subscription events are not recorded")
	}

	// A nil interface, not a typed nil, keeps distlock on its fallbacks.
	var redisClient redis.UniversalClient
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			fatal("invalid redis url", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisClient = client
		logger.Info("lock backend connected", "backend", "redis", "addr", opts.Addr)
	}

	lockTTL := cfg.Redis.LockTTL()
	newLock := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, lockTTL)
	}

	svc := subscription.NewService(adapters, repo, newLock)
	hc := api.NewHealthChecker(db, redisClient, svc.Platforms)

	var authenticate func(http.Handler) http.Handler
	if cfg.Auth.Disabled {
		logger.Warn("API authentication disabled")
	} else {
		keys := auth.NewAPIKeyAuth(cfg.Auth.APIKeys)
		if keys.KeyCount() == 0 {
			fatal("no API keys configured", errors.New("set auth.api_keys or GATEWAY_API_KEYS, or auth.disabled: true"))
		}
		authenticate = keys.RequireAuth
		logger.Info("API authentication enabled", "keys", keys.KeyCount())
	}

	server, err := api.NewServer(cfg.Server, svc, hc, authenticate)
	if err != nil {
		fatal("invalid server config", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
