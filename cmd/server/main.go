package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"renthub/config"
	"renthub/internal/api"
	"renthub/internal/broker"
	"renthub/internal/notify"
	"renthub/internal/payment"
	"renthub/internal/redisclient"
	"renthub/internal/service"
	"renthub/internal/store"
	"renthub/internal/util"
	"renthub/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := util.InitLogger("renthub", cfg.Env); err != nil {
		panic(err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	tp, err := util.InitTracer("renthub", cfg.Jaeger.Endpoint)
	if err != nil {
		logger.Warn("tracer initialization failed", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	cache, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer cache.Close()

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
	defer producer.Close()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	gateway := payment.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Username, cfg.Gateway.Password)
	mailer := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	hub := notify.NewHub()

	users := service.NewUserService(db)
	categories := service.NewCategoryService(db)
	listings := service.NewListingService(db, cache)
	orders := service.NewOrderService(db, gateway, cache)
	reviews := service.NewReviewService(db)
	stats := service.NewStatsService(db, cache, cfg.Business.StatsCacheTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)

	dispatcher := worker.NewNotificationDispatcher(db, mailer, hub)
	notifWorker := worker.NewNotificationWorker(consumer, dispatcher)
	go func() {
		if err := notifWorker.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("notification worker stopped", zap.Error(err))
		}
	}()

	outbox := worker.NewOutboxDispatcher(db, producer, cfg.Business.OutboxInterval)
	go outbox.Run(ctx)

	sweeper := worker.NewDiscountSweeper(db, cfg.Business.DiscountSweepInterval)
	go sweeper.Run(ctx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := api.NewHandler(users, categories, listings, orders, reviews, stats, hub)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
