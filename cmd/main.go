package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitzone/api/handler"
	apiMiddleware "fitzone/api/middleware"
	"fitzone/api/routes"
	"fitzone/config"
	"fitzone/internal/entity"
	"fitzone/internal/repository"
	"fitzone/internal/service"
	"fitzone/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := config.OpenStores(ctx, cfg.Store, logger)
	if err != nil {
		logger.WithError(err).Fatal("open stores")
	}
	defer func() {
		if err := stores.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("close stores")
		}
	}()

	mailer, err := config.NewMailSender(cfg.Mail, cfg.OTP.TTL, logger)
	if err != nil {
		logger.WithError(err).Fatal("configure mail sender")
	}
	cooldown, closeCooldown, err := config.NewCooldown(ctx, cfg.RedisURL, cfg.OTP.ResendCooldown, logger)
	if err != nil {
		logger.WithError(err).Fatal("configure resend cooldown")
	}
	defer closeCooldown()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)
	httpMetrics := apiMiddleware.NewHTTPMetrics(registry)

	accessManager := utils.JWTManager{
		Secret:         []byte(cfg.Auth.JWTSecret),
		Issuer:         cfg.Auth.JWTIssuer,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
	}
	accessIssuer := service.JWTAccessIssuer{Manager: &accessManager}
	passwordHasher := service.BcryptPasswordHasher{}
	domains := service.NewMXDomainChecker()
	recoveryConfig := service.RecoveryConfig{
		CodeTTL:       cfg.OTP.TTL,
		LookupTimeout: cfg.OTP.MXLookupTimeout,
		SendTimeout:   cfg.OTP.MailSendTimeout,
	}

	newAuthService := func(role entity.Role, principals repository.PrincipalRepository) *service.AuthService {
		engine := service.NewRecoveryEngine(
			role,
			principals,
			stores.SecurityLogs,
			domains,
			mailer,
			passwordHasher,
			cooldown,
			service.RealClock{},
			logger,
			metrics,
			recoveryConfig,
		)
		return service.NewAuthService(
			engine,
			principals,
			stores.SecurityLogs,
			passwordHasher,
			accessIssuer,
			service.RealClock{},
			logger,
			metrics,
		)
	}
	userService := newAuthService(entity.RoleUser, stores.Users)
	adminService := newAuthService(entity.RoleAdmin, stores.Admins)

	validate := validator.New()
	userHandler := handler.NewAuthHandler(userService, validate, logger)
	adminHandler := handler.NewAuthHandler(adminService, validate, logger)
	adminViews := handler.NewAdminHandler(userService, validate, logger)
	health := &handler.HealthHandler{Stores: []handler.Pinger{stores.Users, stores.Admins}}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	app.Use(httpMetrics.Middleware())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":     v.Status,
				"method":     v.Method,
				"uri":        v.URI,
				"ip":         v.RemoteIP,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	authMiddleware := apiMiddleware.AuthMiddleware{JWT: &accessManager, Logger: logger}
	router := routes.NewRouter(app, userHandler, adminHandler, adminViews, health, authMiddleware, registry)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
	logger.Info("server stopped")
}
