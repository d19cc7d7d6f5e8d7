package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"thesis-service/internal/handler"
	"thesis-service/internal/job"
	"thesis-service/internal/middleware"
	"thesis-service/internal/service"
	"thesis-service/pkg/config"
	"thesis-service/pkg/database"
	"thesis-service/pkg/jwtutil"
	"thesis-service/pkg/logger"
	"thesis-service/pkg/metrics"
	"thesis-service/pkg/notify"
	"thesis-service/pkg/ratelimit"
)

func main() {
	flags := pflag.NewFlagSet("thesis-service", pflag.ExitOnError)
	port := flags.String("port", "", "listen port (overrides SERVER_PORT)")
	migrate := flags.Bool("migrate", true, "create or update tables on startup")
	_ = flags.Parse(os.Args[1:])

	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.Metrics.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting thesis service...", cfg.LogConfig()...)

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if *migrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations applied")
	}

	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.SMTP.Host != "" {
		smtp, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:          cfg.SMTP.Host,
			Port:          cfg.SMTP.Port,
			User:          cfg.SMTP.User,
			Password:      cfg.SMTP.Password,
			From:          cfg.SMTP.From,
			SkipTLSVerify: cfg.SMTP.SkipTLSVerify,
		})
		if err != nil {
			log.Fatal("Failed to configure SMTP notifications", zap.Error(err))
		}
		notifier = smtp
		log.Info("E-mail notifications enabled", zap.String("smtp_host", cfg.SMTP.Host))
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, "thesis:submit:")
		log.Info("Submission rate limiting backed by Redis", zap.String("redis_addr", cfg.Redis.Addr))
	}

	applications := service.NewApplicationService(db, notifier)
	theses := service.NewThesisService(db)

	stats := job.NewStatsRefresher(applications, cfg.Metrics.StatsRefreshSpec, log)
	if err := stats.Start(); err != nil {
		log.Fatal("Failed to start stats refresher", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(metrics.NewHTTPMetrics(cfg.Metrics.ServiceName).Middleware())

	handler.RegisterRoutes(e, handler.Routes{
		Health:       handler.NewHealthHandler(db, cfg.Metrics.ServiceName),
		Applications: handler.NewThesisApplicationHandler(applications),
		Theses:       handler.NewThesisHandler(theses),
		Auth:         middleware.AuthMiddleware(jwtUtil),
		SubmitLimit:  middleware.SubmissionRateLimit(limiter, cfg.Redis.SubmitLimit, cfg.Redis.SubmitWindow),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	stats.Stop()
	applications.Wait()
}
