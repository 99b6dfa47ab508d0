package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/itskumar666/LendingProtocol/internal/metrics"
	"github.com/itskumar666/LendingProtocol/internal/oracle"
	"github.com/itskumar666/LendingProtocol/internal/pool"
	"github.com/itskumar666/LendingProtocol/internal/rates"
	"github.com/itskumar666/LendingProtocol/internal/service"
	"github.com/itskumar666/LendingProtocol/internal/store"
)

func envUint(name string, fallback uint64) uint64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		slog.Error("invalid value", "var", name, "value", v)
		os.Exit(1)
	}
	return n
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	var rdb *redis.Client

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbpool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, dbpool.Close)
		st = store.NewPostgresStore(dbpool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price oracle ---
	// Quotes are administered over POST /api/v1/prices; a deployment with an
	// external feed would replace the static source.
	prices := oracle.NewStaticSource()
	var priceSource oracle.PriceSource = prices
	if rdb != nil {
		priceSource = oracle.NewCachedSource(prices, rdb, 5*time.Second)
	}

	// --- Lending pool ---
	lendingPool := pool.New(pool.Config{
		Oracle:            priceSource,
		RateModel:         rates.Default(),
		Recorder:          st,
		Logger:            logger,
		FlashLoanPremium:  envUint("FLASH_LOAN_PREMIUM_BPS", 9),
		LiquidationFeeBps: envUint("LIQUIDATION_FEE_BPS", 1000),
	})

	// --- WebSocket hub ---
	wsHub := service.NewWSHub()
	go wsHub.Run()

	// --- Lending service ---
	lendSvc := service.NewService(lendingPool, st, prices, wsHub)

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
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
		w.Write([]byte(`{"status":"ok","service":"lending-pool"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time reserve updates.
		r.Get("/ws", wsHub.HandleWS)

		// Reserve administration and queries.
		r.Get("/reserves", lendSvc.ListReserves)
		r.Post("/reserves", lendSvc.CreateReserve)
		r.Get("/reserves/{asset}", lendSvc.GetReserve)
		r.Put("/reserves/{asset}", lendSvc.ConfigureReserve)
		r.Get("/reserves/{asset}/operations", lendSvc.GetReserveOperations)

		// Oracle administration.
		r.Post("/prices", lendSvc.SetPrice)

		// Money operations.
		r.Post("/faucet", lendSvc.Faucet)
		r.Post("/deposit", lendSvc.Deposit)
		r.Post("/withdraw", lendSvc.Withdraw)
		r.Post("/borrow", lendSvc.Borrow)
		r.Post("/repay", lendSvc.Repay)
		r.Post("/collateral", lendSvc.SetCollateral)
		r.Post("/transfer", lendSvc.Transfer)
		r.Post("/liquidate", lendSvc.Liquidate)

		// Account queries.
		r.Get("/accounts/{userID}", lendSvc.GetAccount)
		r.Get("/accounts/{userID}/operations", lendSvc.GetUserOperations)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("lending-pool listening", "port", port)
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

	slog.Info("shutting down lending-pool...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("lending-pool stopped")
}
