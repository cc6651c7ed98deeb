// Package syncstatus принимает статус подписки, согласованный клиентом
// по транзакциям платформы покупок.
package syncstatus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// Request — тело синхронизации. EndDate в RFC3339 или пустая строка.
type Request struct {
	UserID  string `json:"user_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=active expired grace_period"`
	EndDate string `json:"end_date"`
}

// Service сохраняет статус.
type Service interface {
	Sync(ctx context.Context, caller *models.User, in account.SyncInput) error
}

// Observer учитывает принятые синхронизации.
type Observer interface {
	ObserveSync(status string)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	observer Observer
	validate *validator.Validate
}

// New создаёт обработчик. observer может быть nil.
func New(log *slog.Logger, service Service, observer Observer) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		observer: observer,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.syncstatus"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user missing in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	in := account.SyncInput{UserID: req.UserID, Status: req.Status}
	if req.EndDate != "" {
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			log.Info("invalid end date", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("end_date must be RFC3339"))
			return
		}
		in.EndDate = &end
	}

	if err := h.service.Sync(r.Context(), caller, in); err != nil {
		switch {
		case errors.Is(err, account.ErrForbidden):
			log.Warn("sync for another user rejected", sl.Mask("user_uid", caller.UUID))
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("cannot sync another user"))
		case errors.Is(err, account.ErrInvalidStatus):
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
		case errors.Is(err, account.ErrUserNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("sync failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	if h.observer != nil {
		h.observer.ObserveSync(req.Status)
	}
	render.JSON(w, r, response.OK())
}
