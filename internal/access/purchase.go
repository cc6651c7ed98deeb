package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// LoadProducts загружает поддерживаемый продукт из каталога платформы.
// Без загруженного продукта Purchase не выполняется.
func (e *Engine) LoadProducts(ctx context.Context) error {
	const op = "access.LoadProducts"
	e.ops.Lock()
	defer e.ops.Unlock()

	products, err := e.platform.Products(ctx, []string{e.productID})
	if err != nil {
		e.log.Warn("failed to load products", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range products {
		if p.ID == e.productID {
			product := p
			e.mu.Lock()
			e.product = &product
			e.mu.Unlock()
			return nil
		}
	}
	e.setMessage(MessageProductNotLoaded)
	return fmt.Errorf("%s: %w: %s", op, ErrProductUnavailable, e.productID)
}

// Product возвращает загруженный продукт подписки.
func (e *Engine) Product() (models.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.product == nil {
		return models.Product{}, false
	}
	return *e.product, true
}

// Purchase покупает поддерживаемый продукт. true возвращается только после того,
// как новое состояние применено. Отмена пользователем и ожидание одобрения дают
// false без ошибки; непроверенная транзакция даёт ErrFailedVerification.
// Проверенная, но уже истёкшая транзакция применяется и завершается, а Purchase
// возвращает false с сообщением.
func (e *Engine) Purchase(ctx context.Context) (bool, error) {
	const op = "access.Purchase"
	log := e.log.With(slog.String("op", op))

	e.ops.Lock()
	defer e.ops.Unlock()

	product, ok := e.Product()
	if !ok {
		e.setMessage(MessageProductNotLoaded)
		return false, nil
	}

	result, err := e.platform.Purchase(ctx, product.ID)
	if err != nil {
		log.Warn("purchase failed", sl.Err(err))
		e.setMessage(MessagePurchaseFailed)
		return false, fmt.Errorf("%s: %w", op, err)
	}

	switch result.Outcome {
	case models.PurchaseUserCancelled:
		log.Info("purchase cancelled by user")
		return false, nil
	case models.PurchasePending:
		log.Info("purchase pending approval")
		e.setMessage(MessagePurchasePending)
		return false, nil
	case models.PurchaseSuccess:
	default:
		e.setMessage(MessagePurchaseFailed)
		return false, fmt.Errorf("%s: unexpected outcome %s", op, result.Outcome)
	}

	tx := result.Transaction
	if tx == nil || !tx.IsVerified() {
		attrs := []any{}
		if tx != nil {
			attrs = append(attrs, sl.Mask("transaction_id", tx.ID), slog.String("reason", tx.VerificationFailure))
		}
		log.Warn("purchase failed verification", attrs...)
		e.setMessage(MessageFailedVerification)
		return false, fmt.Errorf("%s: %w", op, ErrFailedVerification)
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if tx.ProductID != product.ID {
		log.Warn("purchase returned another product",
			sl.Mask("transaction_id", tx.ID),
			slog.String("product_id", tx.ProductID),
		)
		e.setMessage(MessagePurchaseFailed)
		return false, fmt.Errorf("%s: %w: %s", op, ErrProductMismatch, tx.ProductID)
	}

	e.applyTransaction(ctx, *tx)

	if err := e.platform.Finish(context.WithoutCancel(ctx), *tx); err != nil {
		log.Warn("failed to finish transaction", sl.Mask("transaction_id", tx.ID), sl.Err(err))
	}
	if !e.HasAccess() {
		log.Warn("purchased transaction grants no access", sl.Mask("transaction_id", tx.ID))
		e.setMessage(MessagePurchaseExpired)
		return false, nil
	}
	e.setMessage("")
	log.Info("purchase completed", sl.Mask("transaction_id", tx.ID))
	return true, nil
}

// RestorePurchases просит платформу синхронизировать покупки и пересчитывает состояние.
func (e *Engine) RestorePurchases(ctx context.Context) error {
	const op = "access.RestorePurchases"
	e.ops.Lock()
	defer e.ops.Unlock()

	if err := e.platform.SyncWithStore(ctx); err != nil {
		e.log.Warn("store sync failed", slog.String("op", op), sl.Err(err))
		e.setMessage(MessageRestoreFailed)
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := e.refreshLocked(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
