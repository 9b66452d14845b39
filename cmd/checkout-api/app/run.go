package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"checkout-api/configs"
	"checkout-api/internal/adapter/cache"
	"checkout-api/internal/adapter/http"
	"checkout-api/internal/adapter/http/middleware"
	"checkout-api/internal/adapter/kafka"
	"checkout-api/internal/adapter/queue"
	"checkout-api/internal/adapter/repo"
	"checkout-api/internal/gateway/paypal"
	"checkout-api/internal/logging"
	"checkout-api/internal/security"
	"checkout-api/internal/usecase"
)

// compile-time port checks
var (
	_ usecase.PaymentGateway = (*paypal.Client)(nil)
	_ usecase.OrderRepo      = (*repo.MySQLOrderRepo)(nil)
	_ usecase.CaptureRepo    = (*repo.MySQLCaptureRepo)(nil)
	_ usecase.EventPublisher = (*kafka.StatusProducer)(nil)
	_ usecase.WorkQueue      = (*queue.RabbitProducer)(nil)
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logger := logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("mysql ping: %w", err)
	}

	logger.Info("checkout-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	// init rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	// init kafka producer
	sp, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	// load webhook signing material
	sm, err := security.NewSigningMaterial(cfg)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := security.NewWebhookVerifier(sm)
	if err != nil {
		return nil, nil, err
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	captureRepo := repo.NewMySQLCaptureRepo(db)
	eventRepo := repo.NewMySQLWebhookEventRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)
	jobs, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbit producer: %w", err)
	}
	events := kafka.NewStatusProducer(sp, cfg.Kafka.TopicEvents)
	gw := paypal.NewClient(cfg)

	// provider connection self-test; credentials problems surface here
	// instead of on the first checkout
	if err := gw.Authenticate(ctx); err != nil {
		logger.Warn("provider auth self-test failed", "err", err)
	}

	// register queue-handler
	setupQueue(ch)

	// use cases
	startUC := usecase.NewStartCheckout(orderRepo, idem, gw, jobs, events)
	captureUC := usecase.NewCapturePayment(orderRepo, captureRepo, gw, statusCache, events)
	reconcileUC := usecase.NewReconcile(orderRepo, captureRepo, eventRepo, statusCache, events)

	// handlers + router + middleware
	h := http.NewCheckoutHandler(startUC, captureUC, gw)
	wh := http.NewWebhookHandler(verifier, reconcileUC)
	th := http.NewTokenHandler(cfg)
	authz := middleware.NewAuthz(cfg)
	router := http.NewRouter(h, wh, th, authz, logging.New("http"))

	cleanup := func() {
		_ = sp.Close()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupQueue(ch *amqp091.Channel) {
	h := queue.NewCheckoutAuditHandler()

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register("checkout.audit.q", queue.JSONHandler[usecase.CheckoutAuditMsg]{HandleFunc: h.HandleAudit})

	if err := router.Start(); err != nil {
		panic(err)
	}
}
