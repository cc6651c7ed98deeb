// Package validate реализует проверку сессии клиентом.
// Сам токен проверяет JWTMiddleware; сюда доходят только действующие сессии.
package validate

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// Response — ответ на проверку сессии.
type Response struct {
	Valid bool           `json:"valid"`
	User  *response.User `json:"user,omitempty"`
}

// Service вычисляет статус подписки пользователя.
type Service interface {
	Entitlement(user *models.User) account.Entitlement
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.validate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user missing in context")
		render.JSON(w, r, Response{Valid: false})
		return
	}

	ent := h.service.Entitlement(user)
	payload := response.NewUser(user, ent.Status, ent.EndDate, ent.DaysRemaining)
	render.JSON(w, r, Response{Valid: true, User: &payload})
}
