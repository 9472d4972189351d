package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/skillbridge/internal/alerts"
	"github.com/sudo-init-do/skillbridge/internal/config"
	"github.com/sudo-init-do/skillbridge/internal/marketplace"
	"github.com/sudo-init-do/skillbridge/internal/messaging"
	mware "github.com/sudo-init-do/skillbridge/internal/middleware"
	"github.com/sudo-init-do/skillbridge/internal/redisx"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}

func connectDB(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	const maxRetries = 10
	const retryDelay = 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		pool, err := store.Connect(ctx, dsn)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		logger.Warn("database not reachable, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("skillbridge starting", zap.String("port", cfg.Port))

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	pool, err := connectDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	gateway := store.NewPostgres(pool)

	mailer, err := alerts.NewMailer(cfg, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var sender alerts.JobSender = alerts.MailSender{Mailer: mailer}
	if cfg.MailQueue == "asynq" {
		if cfg.RedisAddr == "" {
			return errors.New("MAIL_QUEUE=asynq requires REDIS_ADDR")
		}
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		enqueuer := alerts.NewEnqueuer(asynq.NewClient(redisOpt), cfg.EmailRetries)
		defer func() { _ = enqueuer.Close() }()
		sender = enqueuer

		processor := alerts.NewProcessor(redisOpt, mailer, cfg.EmailWorkers, logger)
		g.Go(func() error { return processor.Run(gctx) })
	}

	emailPool := alerts.NewEmailPool(sender, cfg.EmailWorkers, cfg.EmailQueueSize, alerts.DefaultRetryConfig(cfg.EmailRetries), logger)
	emailPool.Start(gctx)

	var dispatcherOpts []alerts.DispatcherOption
	if len(cfg.KafkaBrokers) > 0 {
		publisher := alerts.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, 1024, logger)
		publisher.Start(gctx)
		defer publisher.Close()
		dispatcherOpts = append(dispatcherOpts, alerts.WithEventPublisher(publisher))
	}

	var orderOpts []marketplace.Option
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.Warn("redis unreachable, idempotency keys disabled", zap.Error(err))
		} else {
			orderOpts = append(orderOpts, marketplace.WithIdempotency(redisx.NewIdempotency(rdb, cfg.IdempotencyTTL)))
		}
	}

	notifications := alerts.NewNotificationService(gateway, cfg.DisplayTZ, logger)
	dispatcher := alerts.NewDispatcher(notifications, gateway, emailPool, cfg.AppURL, logger, dispatcherOpts...)
	orders := marketplace.NewService(gateway, dispatcher, logger, orderOpts...)

	rooms := messaging.NewRegistry(logger)
	chat := messaging.NewChatService(gateway, rooms, dispatcher, cfg.DisplayTZ, logger)
	sessions := messaging.NewSessions(rooms, chat, gateway, 64, logger)
	transport := messaging.NewTransport(sessions, []string{cfg.AppURL}, logger)

	e := newRouter(cfg, pool, logger, routes{
		orders:        marketplace.NewHandler(orders),
		messages:      messaging.NewHandler(chat),
		notifications: alerts.NewHandler(notifications),
		ws:            transport,
	})

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", ":"+cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	emailPool.Close()
	return err
}

type routes struct {
	orders        *marketplace.Handler
	messages      *messaging.Handler
	notifications *alerts.Handler
	ws            *messaging.Transport
}

func newRouter(cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger, r routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	jwt := mware.JWTMiddleware(cfg.JWTSecret)

	e.GET("/ws", r.ws.Handle, jwt)

	// Protected routes
	market := e.Group("/marketplace")
	market.Use(jwt)
	market.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	r.orders.Register(market)
	r.messages.Register(market)

	api := e.Group("")
	api.Use(jwt)
	r.notifications.Register(api)

	// Admin routes
	admin := e.Group("/admin")
	admin.Use(jwt)
	admin.Use(mware.AdminGuard)
	admin.GET("/orders/:id", r.orders.GetOrder)
	admin.POST("/orders/:id/cancel", r.orders.CancelOrder)
	admin.GET("/orders/:id/messages", r.messages.ListMessages)

	return e
}
