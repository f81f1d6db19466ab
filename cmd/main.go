package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"referral-shop/internal/auth"
	"referral-shop/internal/config"
	"referral-shop/internal/database"
	"referral-shop/internal/handlers"
	"referral-shop/internal/middleware"
	"referral-shop/internal/repository"
	"referral-shop/internal/services"
	"referral-shop/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(&logger.Config{
		Level:      cfg.Log.Level,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret, cfg.App.JWTExpire)

	// Connect to database
	if err := database.Connect(cfg.Database); err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run migrations
	if err := database.AutoMigrate(database.GetDB()); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Token denylist is optional
	var (
		denylist auth.Denylist
		revoker  handlers.TokenRevoker
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer client.Close()

		tokenDenylist := services.NewTokenDenylist(client)
		denylist = tokenDenylist
		revoker = tokenDenylist
		logger.Log.Info("Token denylist enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Log.Warn("REDIS_ADDR not set, logout will not revoke tokens")
	}

	// Initialize services
	repo := repository.NewRepository(database.GetDB())
	referralService := services.NewReferralService(repo, cfg.Referral, cfg.App.FrontendURL, logger.Log)
	authService := services.NewAuthService(repo, referralService, logger.Log)
	purchaseService := services.NewPurchaseService(repo, cfg.Referral, logger.Log)
	dashboardService := services.NewDashboardService(repo, cfg.Referral, logger.Log)

	// Set up Gin router
	router := gin.New()
	router.Use(middleware.Logger(logger.Log), gin.Recovery())

	allowedOrigins := cfg.Server.CORSOrigins
	if cfg.App.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.App.FrontendURL)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     dedupe(allowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:      handlers.NewAuthHandler(authService, revoker),
		Referral:  handlers.NewReferralHandler(referralService),
		Purchase:  handlers.NewPurchaseHandler(purchaseService),
		Dashboard: handlers.NewDashboardHandler(dashboardService),
	}, denylist)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func dedupe(origins []string) []string {
	seen := make(map[string]bool, len(origins))
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}
