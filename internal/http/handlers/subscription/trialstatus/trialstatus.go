// Package trialstatus отдаёт клиенту серверный статус пробного периода.
package trialstatus

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// Response — статус и дата окончания. Для истёкшего доступа дата отсутствует.
type Response struct {
	SubscriptionStatus  string     `json:"subscription_status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
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
	const op = "handlers.subscription.trialstatus"

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		h.log.Error("user missing in context",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	ent := h.service.Entitlement(user)
	resp := Response{SubscriptionStatus: string(ent.Status)}
	if ent.EndDate != nil {
		end := ent.EndDate.UTC()
		resp.SubscriptionEndDate = &end
	}
	render.JSON(w, r, resp)
}
