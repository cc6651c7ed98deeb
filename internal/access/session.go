package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// Restore поднимает сессию из кеша при запуске: при наличии токена пользователь
// считается вошедшим, состояние берётся из снимка профиля, затем сессия
// принудительно проверяется на бэкенде.
func (e *Engine) Restore(ctx context.Context) error {
	e.ops.Lock()
	done, err := e.restore(ctx)
	e.ops.Unlock()
	if done != nil {
		<-done
	}
	return err
}

func (e *Engine) restore(ctx context.Context) (<-chan struct{}, error) {
	const op = "access.Restore"
	log := e.log.With(slog.String("op", op))

	token, err := e.token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if token == "" {
		log.Debug("no stored session")
		return nil, nil
	}

	profile, found, err := e.profiles.LoadProfile(ctx)
	if err != nil {
		log.Warn("failed to load cached profile", sl.Err(err))
	}

	e.mu.Lock()
	e.authenticated = true
	if found {
		e.profile = profile
	}
	e.mu.Unlock()

	if found {
		e.seedFromProfile(ctx, false)
	}
	e.startListenerLocked()

	log.Info("session restored from cache", sl.Mask("user_id", e.userID()))
	return e.revalidate(ctx)
}

// SignIn сохраняет токен и профиль нового входа и запускает слушатель обновлений.
// Состояние берётся из профиля входа, пока его не уточнит RefreshFromEntitlements.
func (e *Engine) SignIn(ctx context.Context, token string, user models.SessionUser) error {
	const op = "access.SignIn"
	if token == "" {
		return fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}

	e.ops.Lock()
	defer e.ops.Unlock()

	if err := e.secrets.Save(TokenKey, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	now := e.now()
	profile := user.Profile(now)
	if err := e.profiles.SaveProfile(ctx, profile); err != nil {
		e.log.Warn("failed to persist profile", slog.String("op", op), sl.Err(err))
	}

	e.mu.Lock()
	e.profile = &profile
	e.authenticated = true
	e.lastValidation = now
	e.message = ""
	e.mu.Unlock()

	e.seedFromProfile(ctx, true)
	e.startListenerLocked()
	e.log.Info("signed in", slog.String("op", op), sl.Mask("user_id", profile.UserID))
	return nil
}

// SignOut завершает сессию: останавливает слушатель, стирает токен и профиль,
// сбрасывает состояние. reason публикуется как сообщение для пользователя.
func (e *Engine) SignOut(ctx context.Context, reason string) error {
	e.ops.Lock()
	done, err := e.signOutLocked(ctx, reason)
	e.ops.Unlock()

	if done != nil {
		<-done
	}
	return err
}

func (e *Engine) signOutLocked(ctx context.Context, reason string) (<-chan struct{}, error) {
	const op = "access.SignOut"
	done := e.stopListenerLocked()

	var errs []error
	if err := e.secrets.Delete(TokenKey); err != nil {
		errs = append(errs, err)
	}
	if err := e.profiles.ClearProfile(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}

	e.mu.Lock()
	e.profile = nil
	e.authenticated = false
	e.message = reason
	e.lastValidation = time.Time{}
	e.mu.Unlock()

	e.applyState(ctx, models.UnknownState())
	e.log.Info("signed out", slog.String("op", op), slog.String("reason", reason))

	if err := errors.Join(errs...); err != nil {
		e.log.Warn("failed to clear local session", slog.String("op", op), sl.Err(err))
		return done, fmt.Errorf("%s: %w", op, err)
	}
	return done, nil
}

// RevalidateSession проверяет сессию на бэкенде без учёта интервала.
func (e *Engine) RevalidateSession(ctx context.Context) error {
	e.ops.Lock()
	done, err := e.revalidate(ctx)
	e.ops.Unlock()
	if done != nil {
		<-done
	}
	return err
}

// OnForeground вызывается при возврате приложения на передний план.
// Сессия проверяется не чаще RevalidateInterval.
func (e *Engine) OnForeground(ctx context.Context) error {
	e.ops.Lock()
	e.mu.RLock()
	last := e.lastValidation
	e.mu.RUnlock()
	if e.revalidateInterval > 0 && e.now().Sub(last) < e.revalidateInterval {
		e.ops.Unlock()
		e.log.Debug("session check throttled", slog.String("op", "access.OnForeground"))
		return nil
	}
	done, err := e.revalidate(ctx)
	e.ops.Unlock()
	if done != nil {
		<-done
	}
	return err
}

// revalidate проверяет сессию. Явный отказ сервера завершает сессию, сетевой
// сбой, ошибка сервера и нераспознанный ответ ничего не меняют.
func (e *Engine) revalidate(ctx context.Context) (<-chan struct{}, error) {
	const op = "access.RevalidateSession"
	log := e.log.With(slog.String("op", op))

	if !e.IsAuthenticated() {
		return nil, nil
	}
	token, err := e.token()
	if err != nil {
		log.Warn("failed to read token, keeping session", sl.Err(err))
		return nil, nil
	}
	if token == "" {
		log.Warn("authenticated without token, signing out")
		return e.signOutLocked(ctx, MessageSessionExpired)
	}

	e.mu.Lock()
	e.lastValidation = e.now()
	e.mu.Unlock()

	result := e.backend.ValidateSession(ctx, token)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case result.Outcome == models.SessionValid && result.User != nil:
		e.mergeUser(ctx, *result.User)
		return nil, nil
	case result.Outcome.Deauthorizes():
		log.Info("session rejected by backend",
			slog.String("outcome", result.Outcome.String()),
			slog.Int("status", result.StatusCode),
		)
		return e.signOutLocked(ctx, rejectionMessage(result))
	default:
		attrs := []any{slog.String("outcome", result.Outcome.String())}
		if result.Err != nil {
			attrs = append(attrs, sl.Err(result.Err))
		}
		log.Warn("session validation inconclusive, keeping cached session", attrs...)
		return nil, nil
	}
}

// mergeUser переносит данные из ответа бэкенда в профиль и сохраняет его.
// Если состояние ещё не согласовано, оно берётся из обновлённого снимка.
func (e *Engine) mergeUser(ctx context.Context, user models.SessionUser) {
	e.mu.Lock()
	if e.profile == nil {
		e.profile = &models.UserProfile{}
	}
	user.MergeInto(e.profile, e.now())
	snapshot := *e.profile
	e.mu.Unlock()

	e.persistProfile(ctx, snapshot)
	e.seedFromProfile(ctx, false)
}

// seedFromProfile берёт состояние из снимка профиля, пока оно Unknown.
// С replace снимок заменяет любое текущее состояние: так вход отбрасывает
// то, что было вычислено без сессии.
func (e *Engine) seedFromProfile(ctx context.Context, replace bool) {
	e.mu.RLock()
	unknown := e.state.Status == models.StatusUnknown
	seed := models.UnknownState()
	if e.profile != nil {
		seed = e.profile.Snapshot(e.now(), e.loc)
	}
	e.mu.RUnlock()

	if replace || (unknown && seed.Status != models.StatusUnknown) {
		e.applyState(ctx, seed)
	}
}

func rejectionMessage(result models.SessionResult) string {
	switch result.Outcome {
	case models.SessionBlocked:
		if result.Reason != "" {
			return result.Reason
		}
		return MessageAccountBlocked
	case models.SessionNotFound:
		return MessageAccountNotFound
	default:
		return MessageSessionExpired
	}
}
