package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	adaptermiddleware "review-console/internal/adapters/http/middleware"
	adapterlogger "review-console/internal/adapters/logger"
	adaptermetrics "review-console/internal/adapters/metrics"
	"review-console/internal/application"
	"review-console/internal/infrastructure/auth"
	"review-console/internal/infrastructure/config"
	"review-console/internal/infrastructure/dynamodb"
	"review-console/internal/infrastructure/notify"
	"review-console/internal/infrastructure/redis"
	"review-console/internal/infrastructure/remote"
	httpiface "review-console/internal/interfaces/http"
	"review-console/internal/platform/lambda"
	"review-console/internal/ports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		adapterlogger.New().Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	logger := adapterlogger.NewWithLevel(adapterlogger.ParseLevel(cfg.Logging.Level))
	xray.Configure(xray.Config{LogLevel: "error"})

	ctx := context.Background()
	metrics := adaptermetrics.New()

	client, err := remote.New(remote.Config{
		BaseURL:               remote.EnvBaseURL(config.BaseURLEnv, cfg.Remote.BaseURL),
		ProductionHostPattern: cfg.Remote.ProductionHostPattern,
		Timeout:               cfg.Remote.Timeout,
		Traced:                cfg.Remote.Traced,
	})
	if err != nil {
		logger.Error(ctx, "failed to initialize remote client", "error", err)
		os.Exit(1)
	}
	apps := remote.NewApplicationGateway(client)
	accounts := remote.NewAccountGateway(client)
	checks := map[string]func(context.Context) error{"remote": apps.Ping}

	var journal ports.DecisionRepository
	if cfg.Journal.Enabled() {
		ddbClient, err := dynamodb.NewClient(ctx, cfg.Journal.Region, cfg.Journal.TableName)
		if err != nil {
			logger.Error(ctx, "failed to initialize dynamodb client", "error", err)
			os.Exit(1)
		}
		journal = dynamodb.NewDecisionRepository(ddbClient)
	}

	var locker ports.TransitionLocker
	if cfg.Redis.Enabled() {
		redisLocker := redis.NewLocker(redis.NewClient(redis.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), logger)
		locker = redisLocker
		checks["redis"] = redisLocker.Ping
	}

	var notifier ports.Notifier
	if cfg.Notify.SES.Enabled {
		sesClient, err := notify.NewSESClient(ctx, cfg.Notify.SES.Region)
		if err != nil {
			logger.Error(ctx, "failed to initialize ses client", "error", err)
			os.Exit(1)
		}
		sesNotifier, err := notify.NewSESNotifier(sesClient, cfg.Notify.SES.FromEmail)
		if err != nil {
			logger.Error(ctx, "failed to initialize ses notifier", "error", err)
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	review := application.NewReviewService(application.ReviewDeps{
		Applications: apps,
		Provisioner:  application.NewAccountProvisioner(accounts, notifier, metrics, logger),
		Journal:      journal,
		Locker:       locker,
		LeaseTTL:     cfg.Redis.LockTTL,
		Metrics:      metrics,
		Logger:       logger,
	})
	bulk := application.NewBulkCoordinator(review, metrics, logger)
	consoles := application.NewConsoleRegistry(func() *application.Console {
		return application.NewConsole(application.ConsoleDeps{
			Applications: apps,
			Review:       review,
			Bulk:         bulk,
			PageSize:     cfg.Console.PageSize,
			Metrics:      metrics,
			Logger:       logger,
		})
	})

	var cognitoHandler echo.MiddlewareFunc
	if cfg.Auth.Mode == config.AuthModeCognito {
		cognitoHandler = auth.NewCognitoMiddleware(cfg.Auth.Cognito.UserPoolID, cfg.Auth.Cognito.Region, cfg.Auth.RequiredGroup).Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(adaptermiddleware.AuthOptions{
		Mode:        cfg.Auth.Mode,
		StaticToken: cfg.Auth.StaticToken,
		Cognito:     cognitoHandler,
	})
	if err != nil {
		logger.Error(ctx, "failed to initialize auth middleware", "error", err)
		os.Exit(1)
	}

	e := httpiface.NewRouter(
		httpiface.NewConsoleHandler(consoles, review, logger),
		httpiface.NewHealthHandler(checks, logger),
		metrics.Handler(),
		httpiface.Middleware{
			Auth:          authMiddleware,
			XRay:          adaptermiddleware.XRayMiddleware(cfg.App.Name),
			RequestLogger: adaptermiddleware.RequestLogger(logger),
			Metrics:       metrics.Middleware(),
		},
	)

	if cfg.Runtime == config.RuntimeLambda {
		logger.Info(ctx, "starting lambda handler", "auth_mode", cfg.Auth.Mode)
		lambda.Start(e, logger)
		return
	}
	serve(ctx, e, cfg.HTTP.Port, logger)
}

func serve(ctx context.Context, e *echo.Echo, port int, logger ports.Logger) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info(ctx, "starting http server", "port", port)
		if err := e.Start(":" + strconv.Itoa(port)); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
	}
}
