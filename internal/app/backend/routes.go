// Package backend собирает staging-бэкенд подписок: маршруты, зависимости и жизненный цикл HTTP-сервера.
package backend

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/homework-access/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/auth/validate"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/subscription/syncstatus"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/subscription/trialstatus"
	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/metrics"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// AccountService — бизнес-логика, которую обслуживают маршруты.
type AccountService interface {
	Register(ctx context.Context, email, displayName, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Entitlement(user *models.User) account.Entitlement
	Sync(ctx context.Context, caller *models.User, in account.SyncInput) error
}

// RouteOptions — настройки маршрутов.
type RouteOptions struct {
	RateLimit rate.Limit
	RateBurst int
	Checkers  map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc AccountService, m *metrics.Metrics, opts RouteOptions) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		m.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, opts.RateLimit, opts.RateBurst))
			r.Post("/auth/register", register.New(logger, svc).ServeHTTP)
			r.Post("/auth/login", login.New(logger, svc).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc, m, logger))
			r.Post("/auth/validate", validate.New(logger, svc).ServeHTTP)
			r.Get("/subscription/trial-status", trialstatus.New(logger, svc).ServeHTTP)
			r.Post("/subscription/sync", syncstatus.New(logger, svc, m).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, opts.Checkers).ServeHTTP)
	r.Handle("/metrics", m.Handler())
}
