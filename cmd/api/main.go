// Package main is the entry point for the storefront API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/cart"
	"github.com/shopstream/storefront-platform/internal/chat"
	"github.com/shopstream/storefront-platform/internal/checkout"
	"github.com/shopstream/storefront-platform/internal/config"
	"github.com/shopstream/storefront-platform/internal/handler"
	"github.com/shopstream/storefront-platform/internal/kv"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/internal/model"
	natsclient "github.com/shopstream/storefront-platform/internal/nats"
	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "storefront-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure JetStream stream exists
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize the durable store
	var st store.Store
	switch cfg.StoreBackend {
	case "mongo":
		mongoStore, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Error("failed to connect to MongoDB", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoStore.Close(closeCtx); err != nil {
				log.Warn("failed to close MongoDB connection", zap.Error(err))
			}
		}()
		st = mongoStore
	default:
		st = store.NewMemoryStore()
	}

	if cfg.SeedCatalog {
		if err := store.Seed(ctx, st); err != nil {
			log.Warn("failed to seed catalog", zap.Error(err))
		}
	}

	// Cart persistence: Redis when reachable, in-process otherwise. Cart writes
	// swallow persistence failures either way, so a degraded KV never blocks
	// shopping.
	var persist kv.Store
	redisStore, err := kv.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, cart persistence is in-process only", zap.Error(err))
		persist = kv.NewMemoryStore()
	} else {
		defer redisStore.Close()
		persist = redisStore
	}

	notifier := notify.NewLogNotifier(log)

	// Initialize services
	cartSvc := cart.NewService(persist, notifier, log)
	chatSvc := chat.NewService(st, streamManager, chat.NATSFeed{Manager: streamManager}, notifier, log)
	defer chatSvc.Shutdown()
	checkoutSvc := checkout.NewService(st, cartSvc, notifier, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	productHandler := handler.NewProductHandler(st, st, log)
	cartHandler := handler.NewCartHandler(cartSvc, st, log)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc, log)
	conversationHandler := handler.NewConversationHandler(chatSvc, log)
	streamHandler := handler.NewStreamHandler(chatSvc, log)
	authHandler := handler.NewAuthHandler(chatSvc, cartSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Catalog browsing needs no session; limited by remote address
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.List)
				r.Get("/{id}", productHandler.Get)
			})
			r.Route("/sellers/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetSeller)
				r.Get("/products", productHandler.ListSellerProducts)
			})
		})

		// Everything below requires a signed-in user; limited per user
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			registerUserRoutes(r, cartHandler, checkoutHandler, conversationHandler, streamHandler, authHandler, productHandler)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Periodic stream-depth sampling, stopped during shutdown
	samplerCtx, stopSampler := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-samplerCtx.Done():
				return
			case <-ticker.C:
				streamManager.ReportStreamMetrics(samplerCtx)
			}
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopSampler()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func registerUserRoutes(
	r chi.Router,
	cartHandler *handler.CartHandler,
	checkoutHandler *handler.CheckoutHandler,
	conversationHandler *handler.ConversationHandler,
	streamHandler *handler.StreamHandler,
	authHandler *handler.AuthHandler,
	productHandler *handler.ProductHandler,
) {
	// Cart
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.Get)
		r.Delete("/", cartHandler.Clear)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{productID}", cartHandler.UpdateItem)
		r.Delete("/items/{productID}", cartHandler.RemoveItem)
	})

	// Checkout and order history
	r.Post("/checkout", checkoutHandler.Checkout)
	r.Get("/orders", checkoutHandler.ListOrders)

	// Conversations
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", conversationHandler.List)
		r.Post("/", conversationHandler.Start)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/messages", conversationHandler.Messages)
			r.Post("/messages", conversationHandler.Send)
		})
	})

	// Realtime chat stream
	r.Get("/chat/stream", streamHandler.Stream)

	// Session teardown
	r.Post("/auth/signout", authHandler.SignOut)

	// Seller dashboard
	r.Route("/seller", func(r chi.Router) {
		r.Use(middleware.RequireRole(string(model.RoleSeller)))
		r.Post("/products", productHandler.CreateListing)
		r.Get("/stats", productHandler.SellerStats)
	})
}
