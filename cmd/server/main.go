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
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/dms-api/internal/config"
	"github.com/iliyamo/dms-api/internal/database"
	"github.com/iliyamo/dms-api/internal/handler"
	"github.com/iliyamo/dms-api/internal/logging"
	"github.com/iliyamo/dms-api/internal/metrics"
	"github.com/iliyamo/dms-api/internal/middleware"
	"github.com/iliyamo/dms-api/internal/model"
	"github.com/iliyamo/dms-api/internal/repository"
	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/resources"
	"github.com/iliyamo/dms-api/internal/router"
	"github.com/iliyamo/dms-api/internal/service"
	"github.com/iliyamo/dms-api/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	if cfg.DB.AutoMigrate {
		if err := database.MigrateUp(cfg.DB, log); err != nil {
			return err
		}
	}
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Cache.Enabled || cfg.RateLimit.Enabled {
		if rdb = config.NewRedisClient(cfg.Redis); rdb == nil {
			log.WithField("addr", cfg.Redis.Address()).Warn("redis unreachable; cache and rate limit disabled")
		} else {
			defer rdb.Close()
		}
	}

	var events resource.EventSink = service.NopPublisher{}
	if cfg.Audit.Enabled {
		events = service.NewAuditPublisher(cfg.Audit.URL, cfg.Audit.Queue, log)
	}

	issuer, err := utils.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	if err != nil {
		return err
	}
	records := repository.NewRecordRepo(db)
	tokens := repository.NewTokenRepo(db)

	role := resources.Role()
	user := resources.User(records, cfg.Auth.BcryptCost)
	jwt := middleware.JWTAuth(middleware.JWTConfig{Issuer: issuer, Tokens: tokens, Required: cfg.Auth.Required})

	var mounted []router.Resource
	for _, def := range []resources.Definition{role, user} {
		ctrl := resource.NewController(def.Schema, records, resource.Options{
			Hooks:      def.Hooks,
			SoftDelete: def.SoftDelete,
			Events:     events,
			Logger:     log,
		})
		mw := []echo.MiddlewareFunc{jwt}
		if def.Path == user.Path && cfg.Auth.Required {
			mw = append(mw, middleware.RequireRole(model.RoleAdmin))
		}
		mw = append(mw, middleware.NewResponseCache(cfg.Cache, rdb, def.Path, log).Middleware())
		mounted = append(mounted, router.Resource{Path: def.Path, Handler: handler.NewResourceHandler(ctrl), Middleware: mw})
	}

	auth := service.NewAuthService(records, user.Schema, tokens, issuer, events, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(errorMode(cfg), log)
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware())

	router.RegisterRoutes(e, router.Routes{
		Health:         handler.NewHealthHandler(db),
		Auth:           handler.NewAuthHandler(auth),
		AuthMiddleware: []echo.MiddlewareFunc{middleware.NewTokenBucket(cfg.RateLimit, rdb, log)},
		Metrics:        metrics.Handler(),
		Resources:      mounted,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).WithField("env", cfg.Env).Info("DMS API listening")
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

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func errorMode(cfg config.Config) handler.ErrorMode {
	switch {
	case cfg.IsProduction():
		return handler.ErrorsHidden
	case cfg.IsDevelopment():
		return handler.ErrorsDebug
	default:
		return handler.ErrorsVerbose
	}
}
