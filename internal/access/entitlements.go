package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// RefreshFromEntitlements пересчитывает состояние по проверенным правам платформы.
// Если подходящей транзакции нет, состояние определяет проверка пробного периода.
// Ошибка перечисления прав возвращается, состояние при этом не меняется.
func (e *Engine) RefreshFromEntitlements(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()
	return e.refreshLocked(ctx)
}

func (e *Engine) refreshLocked(ctx context.Context) error {
	const op = "access.RefreshFromEntitlements"
	log := e.log.With(slog.String("op", op))

	txs, err := e.platform.ListVerifiedEntitlements(ctx)
	if err != nil {
		log.Warn("failed to list entitlements, keeping current state", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx := selectEntitlement(txs, e.productID)
	if tx == nil {
		log.Debug("no matching entitlement, checking trial")
		return e.checkTrialLocked(ctx)
	}

	e.applyTransaction(ctx, *tx)
	return nil
}

// applyTransaction применяет проверенную транзакцию и, если нужно,
// отправляет итоговый статус на бэкенд.
func (e *Engine) applyTransaction(ctx context.Context, tx models.Transaction) {
	state, push := resolveEntitlement(tx, e.now(), e.loc)
	e.applyState(ctx, state)
	if push != nil {
		e.pushSync(*push)
	}
}

// pushSync отправляет статус на бэкенд в фоне. Результат на локальное
// состояние не влияет, ошибки только логируются.
func (e *Engine) pushSync(push syncPush) {
	const op = "access.pushSync"
	log := e.log.With(slog.String("op", op))

	if e.rootCtx.Err() != nil {
		return
	}
	token, err := e.token()
	if err != nil {
		log.Warn("failed to read token, sync skipped", sl.Err(err))
		return
	}
	userID := e.userID()
	if token == "" || userID == "" {
		log.Debug("not signed in, sync skipped")
		return
	}

	req := models.SyncRequest{
		UserID:  userID,
		Token:   token,
		Status:  push.status,
		EndDate: push.endDate,
	}

	e.syncWG.Add(1)
	go func() {
		defer e.syncWG.Done()
		ctx, cancel := context.WithTimeout(e.rootCtx, e.syncTimeout)
		defer cancel()

		if err := e.backend.SyncSubscription(ctx, req); err != nil {
			log.Warn("subscription sync failed", sl.Mask("user_id", req.UserID), sl.Err(err))
			return
		}
		log.Debug("subscription synced", sl.Mask("user_id", req.UserID), slog.String("status", string(req.Status)))
	}()
}

// startListenerLocked запускает фоновое чтение обновлений транзакций.
// Повторный вызов ничего не делает, пока слушатель работает.
func (e *Engine) startListenerLocked() {
	const op = "access.listener"
	if e.listenCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(e.rootCtx)
	done := make(chan struct{})
	e.listenCancel = cancel
	e.listenDone = done

	log := e.log.With(slog.String("op", op))
	go func() {
		defer close(done)
		updates, err := e.platform.ListenForUpdates(ctx)
		if err != nil {
			log.Warn("failed to listen for transaction updates", sl.Err(err))
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case tx, ok := <-updates:
				if !ok {
					return
				}
				e.handleUpdate(ctx, log, tx)
			}
		}
	}()
}

// stopListenerLocked отменяет слушатель и возвращает канал его завершения.
// Ждать канал нужно после освобождения ops.
func (e *Engine) stopListenerLocked() <-chan struct{} {
	if e.listenCancel == nil {
		return nil
	}
	e.listenCancel()
	done := e.listenDone
	e.listenCancel = nil
	e.listenDone = nil
	return done
}

func (e *Engine) handleUpdate(ctx context.Context, log *slog.Logger, tx models.Transaction) {
	if !tx.IsVerified() {
		log.Warn("ignoring unverified transaction update",
			sl.Mask("transaction_id", tx.ID),
			slog.String("reason", tx.VerificationFailure),
		)
		return
	}

	e.ops.Lock()
	defer e.ops.Unlock()
	if ctx.Err() != nil {
		return
	}

	if err := e.refreshLocked(ctx); err != nil {
		log.Warn("refresh after transaction update failed", sl.Err(err))
		return
	}
	if err := e.platform.Finish(ctx, tx); err != nil {
		log.Warn("failed to finish transaction", sl.Mask("transaction_id", tx.ID), sl.Err(err))
	}
}
