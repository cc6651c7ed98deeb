package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// CheckTrialStatus определяет состояние по пробному периоду на бэкенде.
// Без токена или идентификатора пользователя сразу даёт Expired без запроса.
// Любая ошибка запроса или разбора тоже даёт Expired: пробный период не доказан.
func (e *Engine) CheckTrialStatus(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()
	return e.checkTrialLocked(ctx)
}

func (e *Engine) checkTrialLocked(ctx context.Context) error {
	const op = "access.CheckTrialStatus"
	log := e.log.With(slog.String("op", op))

	token, err := e.token()
	if err != nil {
		log.Warn("failed to read token", sl.Err(err))
	}
	if token == "" || e.userID() == "" {
		e.applyState(ctx, models.ExpiredState())
		return nil
	}

	status, err := e.backend.CheckTrialStatus(ctx, token)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if err != nil {
		log.Warn("trial status check failed, resolving expired", sl.Err(err))
		e.applyState(ctx, models.ExpiredState())
		return nil
	}

	e.applyState(ctx, resolveTrial(status, e.now(), e.loc))
	return nil
}
