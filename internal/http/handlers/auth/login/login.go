// Package login реализует HTTP-обработчик входа по почте и паролю.
//
// При успехе возвращает токен сессии и пользователя с вычисленным статусом
// подписки; неверные данные дают 401, заблокированный аккаунт 403 с причиной.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// Request — входные данные для авторизации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Response — токен и данные пользователя.
type Response struct {
	Token string        `json:"token"`
	User  response.User `json:"user"`
}

// Service описывает бизнес-логику входа.
type Service interface {
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Entitlement(user *models.User) account.Entitlement
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var blocked *account.BlockedError
		switch {
		case errors.Is(err, account.ErrInvalidCredentials):
			log.Info("invalid credentials")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid credentials"))
		case errors.As(err, &blocked):
			log.Info("blocked account tried to sign in")
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Blocked(blocked.Reason))
		default:
			log.Error("login failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
		}
		return
	}

	ent := h.service.Entitlement(user)
	log.Info("login success", sl.Mask("user_uid", user.UUID))
	render.JSON(w, r, Response{
		Token: token,
		User:  response.NewUser(user, ent.Status, ent.EndDate, ent.DaysRemaining),
	})
}
