package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HadichaRaxmat/online-market-api/config"
	"github.com/HadichaRaxmat/online-market-api/internal/api"
	"github.com/HadichaRaxmat/online-market-api/internal/auth"
	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/mailer"
	"github.com/HadichaRaxmat/online-market-api/internal/redisclient"
	"github.com/HadichaRaxmat/online-market-api/internal/service"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"
	"github.com/HadichaRaxmat/online-market-api/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting online market API")

	tp, err := util.InitTracer("online-market-api", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	eventProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer eventProducer.Close()
	mailProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMail)
	defer mailProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(eventProducer)
	kafkaMailer := mailer.NewKafkaMailer(mailProducer, cfg.Mail.From)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour,
		redisClient,
	)

	orderExpiry := time.Duration(cfg.Business.OrderExpiryMinutes) * time.Minute
	paymentExpiry := time.Duration(cfg.Business.PaymentExpiryMinutes) * time.Minute
	verificationTTL := time.Duration(cfg.Auth.VerificationHours) * time.Hour

	userService := service.NewUserService(db, tokenManager, kafkaMailer, eventPublisher, verificationTTL)
	catalogService := service.NewCatalogService(db)
	basketService := service.NewBasketService(db)
	orderService := service.NewOrderService(db, eventPublisher, orderExpiry)
	paymentService := service.NewPaymentService(db, eventPublisher, paymentExpiry)
	sweeper := service.NewSweeper(db, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	mailConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicMail, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(mailConsumer, mailer.NewLogMailer(logger))
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	sweepWorker := worker.NewSweepWorker(sweeper, time.Duration(cfg.Business.SweepIntervalSeconds)*time.Second)
	go sweepWorker.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		userService,
		catalogService,
		basketService,
		orderService,
		paymentService,
		api.AuthMiddleware(tokenManager),
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}
