// Package main runs the storefront gateway HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atmin009/tutor-frontend/config"
	"github.com/atmin009/tutor-frontend/internal/auth"
	"github.com/atmin009/tutor-frontend/internal/checkout"
	"github.com/atmin009/tutor-frontend/internal/courses"
	"github.com/atmin009/tutor-frontend/internal/learning"
	"github.com/atmin009/tutor-frontend/internal/middleware"
	"github.com/atmin009/tutor-frontend/internal/upstream"
	"github.com/atmin009/tutor-frontend/internal/worker"
	"github.com/atmin009/tutor-frontend/pkg/queue"
	"github.com/atmin009/tutor-frontend/pkg/redis"
	"github.com/atmin009/tutor-frontend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	sessionTTL := time.Duration(cfg.Session.ExpireHours) * time.Hour
	tokenStore := auth.NewTokenStore(rdb, sessionTTL, logger)
	jwtService := auth.NewJWTService(cfg.Session.JWTSecret, cfg.Session.ExpireHours)

	// The registry is created after the upstream client but the client's
	// unauthorized callback needs it, so bind late.
	var registry *checkout.Registry

	api := upstream.NewClient(
		cfg.Upstream.BaseURL,
		time.Duration(cfg.Upstream.TimeoutSec)*time.Second,
		logger,
		func(ctx context.Context) {
			sess, ok := auth.SessionFrom(ctx)
			if !ok {
				return
			}
			tokenStore.Delete(context.Background(), sess.ID)
			if registry != nil {
				registry.TeardownUser(sess.UserID)
			}
			logger.Info("backend rejected token, session revoked", zap.String("user_id", sess.UserID))
		},
	)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	deduper := checkout.NewRedisDeduper(rdb.Client, time.Duration(cfg.Checkout.SettleDedupeTTLHours)*time.Hour)
	settler := checkout.NewQueueSettler(deduper, jobQueue, logger)
	orderEvents := checkout.NewOrderEvents(rdb.Client, logger)

	registry = checkout.NewRegistry(api, settler, orderEvents, checkout.Config{
		PollInterval:       time.Duration(cfg.Checkout.PollIntervalSec) * time.Second,
		PollTimeout:        time.Duration(cfg.Checkout.PollTimeoutSec) * time.Second,
		ConfirmDelay:       time.Duration(cfg.Checkout.ConfirmDelaySec) * time.Second,
		PendingTxnFallback: cfg.Checkout.PendingTxnFallback,
	}, logger)

	settlementProcessor := worker.NewSettlementProcessor(api, jobQueue, logger)

	authHandler := auth.NewHandler(api, tokenStore, jwtService, registry.TeardownUser, logger)
	checkoutHandler := checkout.NewHandler(registry, settler, orderEvents, cfg.Frontend.BaseURL, logger)
	catalogCache := courses.NewCache(rdb.Client, time.Duration(cfg.Cache.CourseTTLSec)*time.Second, logger)
	courseHandler := courses.NewHandler(api, catalogCache, logger)
	learningHandler := learning.NewHandler(api, cfg.Frontend.AssetBase, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}, "") })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/logout", middleware.Session(jwtService, tokenStore), authHandler.Logout)
	}

	// Public catalog
	router.GET("/courses", courseHandler.List)
	router.GET("/courses/:idOrSlug", courseHandler.Get)

	// Protected API (session required)
	protected := router.Group("")
	protected.Use(middleware.Session(jwtService, tokenStore))
	{
		// Learning
		protected.GET("/me/enrollments", learningHandler.Enrollments)
		protected.GET("/me/courses/:courseId", learningHandler.MyCourse)
		protected.GET("/me/check-enrollment/:courseId", learningHandler.CheckEnrollment)
		protected.POST("/me/progress", learningHandler.RecordProgress)

		// Checkout lifecycle
		protected.POST("/checkout/:courseId/start", checkoutHandler.Start)
		protected.GET("/checkout/:courseId", checkoutHandler.Get)
		protected.POST("/checkout/:courseId/method", checkoutHandler.SelectMethod)
		protected.POST("/checkout/:courseId/coupon", checkoutHandler.ApplyCoupon)
		protected.DELETE("/checkout/:courseId/coupon", checkoutHandler.RemoveCoupon)
		protected.DELETE("/checkout/:courseId", checkoutHandler.Teardown)
		protected.GET("/checkout/:courseId/ws", checkoutHandler.Stream)

		protected.POST("/payments/confirm", checkoutHandler.Confirm)
	}

	// Webhooks (no session)
	router.POST("/webhooks/payment", checkoutHandler.Webhook)

	// Browser landings (session via cookie; anonymous users are sent to login)
	landing := router.Group("")
	landing.Use(middleware.OptionalSession(jwtService, tokenStore))
	{
		landing.GET("/payment/success", checkoutHandler.PaymentSuccess)
		landing.GET("/payment/fail", checkoutHandler.PaymentFail)
		landing.GET("/payment/cancel", checkoutHandler.PaymentCancel)
		landing.GET("/learning", checkoutHandler.LearningEntry)
		landing.GET("/learning/:courseId", checkoutHandler.LearningEntry)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (payment confirmations)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go settlementProcessor.Run(workerCtx)
	logger.Info("settlement worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
