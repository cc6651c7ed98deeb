package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/storage/repository"
)

// AdminRepository — операции администратора над пользователями.
type AdminRepository interface {
	SetBlocked(ctx context.Context, userUID string, blocked bool, reason string) error
	DeleteUser(ctx context.Context, userUID string) error
	ListSyncs(ctx context.Context, userUID string, limit int) ([]models.SubscriptionEvent, error)
}

// Admin блокирует и удаляет аккаунты. После изменения кеш пользователя
// сбрасывается, чтобы следующая проверка сессии увидела новое состояние.
type Admin struct {
	users AdminRepository
	cache Cache
	log   *slog.Logger
}

func NewAdmin(log *slog.Logger, users AdminRepository, cache Cache) *Admin {
	return &Admin{users: users, cache: cache, log: log}
}

// Block блокирует пользователя. reason показывается клиенту при выходе.
func (a *Admin) Block(ctx context.Context, uid, reason string) error {
	const op = "account.Block"
	if err := a.users.SetBlocked(ctx, uid, true, reason); err != nil {
		return fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	a.invalidate(ctx, op, uid)
	a.log.Info("user blocked", slog.String("op", op), sl.Mask("user_uid", uid))
	return nil
}

// Unblock снимает блокировку.
func (a *Admin) Unblock(ctx context.Context, uid string) error {
	const op = "account.Unblock"
	if err := a.users.SetBlocked(ctx, uid, false, ""); err != nil {
		return fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	a.invalidate(ctx, op, uid)
	a.log.Info("user unblocked", slog.String("op", op), sl.Mask("user_uid", uid))
	return nil
}

// Delete удаляет пользователя вместе с журналом синхронизаций.
func (a *Admin) Delete(ctx context.Context, uid string) error {
	const op = "account.Delete"
	if err := a.users.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	a.invalidate(ctx, op, uid)
	a.log.Info("user deleted", slog.String("op", op), sl.Mask("user_uid", uid))
	return nil
}

// Syncs возвращает последние синхронизации статуса, новые первыми.
func (a *Admin) Syncs(ctx context.Context, uid string, limit int) ([]models.SubscriptionEvent, error) {
	const op = "account.Syncs"
	if limit <= 0 {
		limit = 20
	}
	events, err := a.users.ListSyncs(ctx, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

func (a *Admin) invalidate(ctx context.Context, op, uid string) {
	if err := a.cache.Invalidate(ctx, userKey(uid)); err != nil {
		a.log.Warn("failed to invalidate user cache", slog.String("op", op), sl.Err(err))
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}
