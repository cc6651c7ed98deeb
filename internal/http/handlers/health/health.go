// Package health отдаёт состояние бэкенда и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
)

// Checker проверяет одну зависимость.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc адаптирует функцию к Checker.
type CheckerFunc func(ctx context.Context) error

// Ping вызывает f.
func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	log      *slog.Logger
	checkers map[string]Checker
	timeout  time.Duration
}

func New(log *slog.Logger, checkers map[string]Checker) *Handler {
	return &Handler{
		log:      log,
		checkers: checkers,
		timeout:  2 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	statuses := make(map[string]string, len(h.checkers))
	healthy := true
	for name, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			h.log.Warn("dependency unhealthy", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			statuses[name] = "down"
			healthy = false
			continue
		}
		statuses[name] = "up"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "dependency unavailable",
			Data:   map[string]any{"dependencies": statuses},
		})
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"status":       "ok",
		"dependencies": statuses,
	}))
}
