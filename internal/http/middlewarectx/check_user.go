package middlewarectx

import (
	"context"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User — ключ пользователя в контексте.
const User Key = "user"

// WithUser кладёт пользователя в контекст.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, User, user)
}

// UserFromContext достаёт пользователя, положенного JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(User).(*models.User)
	return user, ok && user != nil
}
