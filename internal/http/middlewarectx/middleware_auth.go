// Package middlewarectx содержит HTTP middleware бэкенда: проверку токена сессии
// с размещением пользователя в контексте запроса и ограничение частоты запросов.
//
// Ответы на отказ повторяют контракт проверки сессии: 401 для недействительного
// токена, 403 с причиной для заблокированного аккаунта, 404 для удалённого.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/homework-access/internal/http/response"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// Authenticator проверяет токен сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Observer учитывает исход проверки сессии.
type Observer interface {
	ObserveValidation(outcome string)
}

// JWTMiddleware проверяет Bearer-токен и кладёт пользователя в контекст.
// observer может быть nil.
func JWTMiddleware(auth Authenticator, observer Observer, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			observe := func(outcome string) {
				if observer != nil {
					observer.ObserveValidation(outcome)
				}
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				observe("unauthorized")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			user, err := auth.Authenticate(r.Context(), tokenStr)
			if err != nil {
				var blocked *account.BlockedError
				switch {
				case errors.As(err, &blocked):
					log.Info("blocked account rejected")
					observe("blocked")
					render.Status(r, http.StatusForbidden)
					render.JSON(w, r, response.Blocked(blocked.Reason))
				case errors.Is(err, account.ErrUserNotFound):
					log.Info("deleted account rejected")
					observe("not_found")
					render.Status(r, http.StatusNotFound)
					render.JSON(w, r, response.Error("user not found"))
				case errors.Is(err, account.ErrInvalidToken):
					log.Info("invalid or expired token", sl.Err(err))
					observe("unauthorized")
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("invalid or expired token"))
				default:
					log.Error("failed to authenticate", sl.Err(err))
					observe("error")
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.Error("internal error"))
				}
				return
			}

			observe("valid")
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
