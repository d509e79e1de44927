package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/pdf-gateway/config"
	"github.com/vnmchuo/pdf-gateway/internal/api"
	"github.com/vnmchuo/pdf-gateway/internal/auth"
	"github.com/vnmchuo/pdf-gateway/internal/credential"
	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/ledger"
	"github.com/vnmchuo/pdf-gateway/internal/metering"
	"github.com/vnmchuo/pdf-gateway/internal/seeder"
	"github.com/vnmchuo/pdf-gateway/internal/telemetry"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
	"github.com/vnmchuo/pdf-gateway/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("pdf-gateway", cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL (API-key store)
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis (entitlement + billing store)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init auth
	keyStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(keyStore, rdb)

	// 6. Init metering core
	store := kvstore.NewRedis(rdb)
	policy := tenant.DefaultPolicy()
	tenants := tenant.NewRecordStore(store)
	resolver := credential.NewResolver(tenants, cfg.OperatorKeys())
	billingLedger := ledger.New(store, tenants, policy)
	meteringService := metering.NewService(tenants, policy, resolver, billingLedger)

	// 7. Init rate limiter
	limiter := ratelimit.NewLimiter(rdb, cfg.DefaultRateLimitRPM)

	// 8. Init handler
	tracer := otel.GetTracerProvider().Tracer("pdf-gateway")
	handler := api.NewHandler(meteringService, keyStore, limiter, tracer)

	// 9. Seed demo tenant and API key if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestTenant(ctx, keyStore, meteringService)
	}

	// 10. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"pdf-gateway"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Tenant-facing routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/v1/credentials/resolve", handler.HandleResolveCredential)
		r.Post("/v1/usage", handler.HandleRecordUsage)
		r.Get("/v1/usage", handler.HandleUsageStats)
	})

	// Operator routes
	r.Route("/v1/tenants", func(r chi.Router) {
		r.Post("/", handler.HandleCreateTenant)
	})
	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/revenue/daily", handler.HandleDailyRevenue)
		r.Post("/keys", handler.HandleCreateKey)
		r.Delete("/keys/{id}", handler.HandleRevokeKey)
	})

	// 11. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("PDF Gateway starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
