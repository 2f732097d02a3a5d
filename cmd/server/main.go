package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/config"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/credit"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/events"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ingest"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ledger"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/metrics"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/ratelimit"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/report"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/settle"
	"github.com/AlonsoFi/BIOCHAIN-v2/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Balance cache ---
	var cache credit.BalanceCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		cache = credit.NewRedisCache(rdb, credit.DefaultTTL)
		slog.Info("Redis balance cache enabled")
	} else {
		cache = credit.NewMemoryCache(credit.DefaultTTL)
	}

	// --- Ledger gateway ---
	var gateway ledger.Gateway
	if cfg.UseRPCGateway() {
		gateway = ledger.NewRPCGateway(cfg.LedgerRPCURL, cfg.NetworkPassphrase)
		slog.Info("ledger RPC gateway enabled",
			"endpoint", cfg.LedgerRPCURL,
			"registry_contract", cfg.StudyRegistryContractID,
			"token_contract", cfg.BiocreditTokenContractID,
			"payment_contract", cfg.PaymentContractID,
		)
	} else {
		slog.Warn("LEDGER_RPC_URL not set, using stub gateway (no real anchoring)")
		gateway = ledger.NewStubGateway()
	}

	// --- WebSocket hub ---
	hub := events.NewHub()
	go hub.Run()

	// --- Services ---
	creditSvc := credit.NewService(gateway, cache)

	treasury := cfg.TreasuryWalletAddress
	if treasury == "" {
		treasury = "TREASURY"
	}
	orchestrator := settle.NewOrchestrator(creditSvc, gateway, st, treasury, decimal.Zero)

	ingestSvc := ingest.NewService(st, gateway, ingest.LineRedactor{}, ingest.TokenExtractor{}, hub)
	reportSvc := report.NewService(st, orchestrator, hub)

	// --- Rate limiters ---
	apiLimiter := ratelimit.NewLimiter(ratelimit.APIMax, ratelimit.APIWindow)
	uploadLimiter := ratelimit.NewLimiter(ratelimit.UploadMax, ratelimit.UploadWindow)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"biochain-backend"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiLimiter.Middleware)

		// WebSocket endpoint for real-time study/report events.
		r.Get("/ws", hub.HandleWS)

		// Study ingestion and queries.
		r.With(uploadLimiter.Middleware).Post("/studies", ingestSvc.HandleUpload)
		r.Get("/studies/ledger/{ownerID}", ingestSvc.HandleLedgerStudies)
		r.Get("/studies/{ownerID}", ingestSvc.HandleListByOwner)

		// Credits.
		r.Post("/credits/purchase", creditSvc.HandlePurchase)
		r.Get("/credits/balance/{ownerID}", creditSvc.HandleBalance)

		// Reports.
		r.Post("/reports/generate", reportSvc.HandleGenerate)
		r.Get("/reports/recent", reportSvc.HandleRecent)
		r.Get("/reports/{reportID}", reportSvc.HandleGetByID)
		r.Get("/reports", reportSvc.HandleListByRequester)

		// Contributor payout history.
		r.Get("/payments/{ownerID}", creditSvc.HandlePaymentEvents)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("biochain backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down biochain backend...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("biochain backend stopped")
}
