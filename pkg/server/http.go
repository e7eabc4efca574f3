package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/routes/duplicates"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	leadroutes "github.com/Ramsey-B/clover/pkg/routes/lead"
)

const shutdownTimeout = 15 * time.Second

// Version is reported by the health endpoint; set at build time
var Version = "dev"

// Router builds the echo instance serving the API, health and metrics
func (a *App) Router() (*echo.Echo, *health.Checker) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
		AllowHeaders: []string{echo.HeaderContentType, middleware.HeaderTenantID, middleware.HeaderUserID, echo.HeaderXRequestID},
	}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	checker := health.NewChecker(Version)
	checker.AddCheck("postgres", health.PingerFunc(a.DB.PingContext), true)
	if a.Redis != nil {
		checker.AddCheck("redis", a.Redis, false)
	}
	if a.Graph != nil {
		checker.AddCheck("graph", health.PingerFunc(a.Graph.VerifyConnectivity), false)
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", middleware.RequireTenant())
	leadroutes.NewHandler(a.Leads).RegisterRoutes(api)

	var lineage duplicates.Lineage
	if a.Lineage != nil {
		lineage = a.Lineage
	}
	duplicates.NewHandler(a.logger, a.Engine, a.Executor, a.Leads, a.Audits, lineage).RegisterRoutes(api)

	return e, checker
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down gracefully
func (a *App) Serve(ctx context.Context) error {
	e, checker := a.Router()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		checker.SetReady(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	a.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
