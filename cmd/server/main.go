package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/config"
	"github.com/iliyamo/linkmarket/internal/database"
	"github.com/iliyamo/linkmarket/internal/handler"
	applog "github.com/iliyamo/linkmarket/internal/logger"
	"github.com/iliyamo/linkmarket/internal/metrics"
	"github.com/iliyamo/linkmarket/internal/middleware"
	"github.com/iliyamo/linkmarket/internal/notify"
	"github.com/iliyamo/linkmarket/internal/payment"
	"github.com/iliyamo/linkmarket/internal/queue"
	"github.com/iliyamo/linkmarket/internal/repository"
	"github.com/iliyamo/linkmarket/internal/router"
	"github.com/iliyamo/linkmarket/internal/service"
	"github.com/iliyamo/linkmarket/internal/storage"
	"github.com/iliyamo/linkmarket/internal/utils"
	"github.com/iliyamo/linkmarket/internal/validation"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	// Redis is optional: without it rate limiting and caching are off.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and cache disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	utils.SetSnowflakeNode(int64(cfg.SnowflakeNode))

	sender, closeSender := newSender(ctx, config.LoadMailConfig(), logger)
	defer closeSender()
	notifier := notify.NewEmailNotifier(metrics.CountingSender(sender), notify.Options{
		FrontendURL: cfg.FrontendURL,
		AdminEmail:  cfg.AdminEmail,
		Brand:       cfg.Brand,
	})

	files, err := storage.NewFileStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	pay := config.LoadPaymentConfig()
	stripe := payment.NewStripeClient(payment.StripeConfig{
		SecretKey: pay.StripeSecretKey,
		APIBase:   pay.StripeAPIBase,
		Currency:  pay.Currency,
		Timeout:   pay.Timeout,
	})
	paypal := payment.NewPayPalClient(payment.PayPalConfig{
		ClientID:     pay.PayPalClientID,
		ClientSecret: pay.PayPalClientSecret,
		APIBase:      pay.PayPalAPIBase,
		ReturnURL:    pay.PayPalReturnURL,
		CancelURL:    pay.PayPalCancelURL,
		Currency:     pay.Currency,
		Timeout:      pay.Timeout,
	})
	if !stripe.Configured() {
		logger.Warn("stripe not configured")
	}
	if !paypal.Configured() {
		logger.Warn("paypal not configured")
	}

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	stream := config.LoadStreamConfig()
	go service.PurgeTokens(ctx, tokenRepo, time.Hour, logger)

	auth := service.NewAuth(userRepo, tokenRepo, notifier, service.AuthOptions{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		BcryptCost: cfg.BcryptCost,
	}, logger)
	orders := service.NewOrders(repository.NewOrderRepo(db), userRepo, notifier, logger)
	submissions := service.NewSubmissions(repository.NewSubmissionRepo(db), files, notifier, logger)
	messages := service.NewMessages(repository.NewMessageRepo(db), service.StreamOptions{
		PollInterval: stream.PollInterval,
		Lookback:     stream.Lookback,
	}, logger)
	catalog := service.NewCatalog(repository.NewCatalogRepo(db), logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = handler.NewErrorHandler(logger, !cfg.IsProduction())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Last-Event-ID"},
	}))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))

	cacheCfg := config.LoadCacheConfig()
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(auth),
		Orders:      handler.NewOrderHandler(orders, files),
		Submissions: handler.NewSubmissionHandler(submissions, files),
		Messages:    handler.NewMessageHandler(messages),
		Payments:    handler.NewPaymentHandler(stripe, paypal, orders, logger),
		Catalog:     handler.NewCatalogHandler(catalog),
		Files:       handler.NewFileHandler(files),
		Health:      handler.Health(db),
	}, router.Options{
		JWTSecret:  cfg.JWTSecret,
		CacheRead:  middleware.NewRedisCache(cacheCfg, rdb, logger),
		CachePurge: middleware.InvalidateCache(cacheCfg, rdb, logger),
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newSender picks the email transport. With amqp the process can also
// run the consumer that drains the queue over SMTP.
func newSender(ctx context.Context, mc config.MailConfig, logger *zap.Logger) (notify.Sender, func()) {
	smtp := func() notify.Sender {
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     mc.SMTPHost,
			Port:     mc.SMTPPort,
			Username: mc.SMTPUser,
			Password: mc.SMTPPass,
			From:     mc.From,
			Timeout:  10 * time.Second,
		})
	}

	switch mc.Transport {
	case "smtp":
		return smtp(), func() {}
	case "amqp", "rabbitmq":
		pub := queue.NewPublisher(mc.RabbitURL, mc.Queue, logger)
		if mc.RunConsumer {
			var delivery notify.Sender = notify.LogSender{Log: logger}
			if mc.SMTPHost != "" {
				delivery = smtp()
			}
			go func() {
				if err := queue.StartEmailConsumer(ctx, mc.RabbitURL, mc.Queue, delivery, logger); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("email consumer stopped", zap.Error(err))
				}
			}()
		}
		return pub, func() { _ = pub.Close() }
	default:
		return notify.LogSender{Log: logger}, func() {}
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	dev := cfg.LogDev || !cfg.IsProduction()
	return applog.New(cfg.LogLevel, dev)
}

// bodyLimit renders the upload cap for echo's BodyLimit, leaving room
// for the other multipart fields.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return strconv.FormatInt((maxUpload+(1<<20))/1024, 10) + "K"
}
