package storekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// ErrEmptyPurchase — магазин сообщил об успешной покупке без транзакции.
var ErrEmptyPurchase = errors.New("store returned success without a transaction")

// SignedPurchase — результат покупки на стороне магазина до проверки подписи.
type SignedPurchase struct {
	Outcome           models.PurchaseOutcome
	SignedTransaction string
}

// Source — магазин, отдающий транзакции в подписанном виде.
type Source interface {
	Products(ctx context.Context, ids []string) ([]models.Product, error)
	SignedEntitlements(ctx context.Context) ([]string, error)
	Purchase(ctx context.Context, productID string) (SignedPurchase, error)
	SignedUpdates(ctx context.Context) (<-chan string, error)
	Finish(ctx context.Context, transactionID string) error
	Sync(ctx context.Context) error
}

// Adapter проверяет подпись всего, что приходит из Source.
type Adapter struct {
	source   Source
	verifier *Verifier
	log      *slog.Logger
}

// NewAdapter создаёт адаптер платформы покупок.
func NewAdapter(source Source, verifier *Verifier, log *slog.Logger) *Adapter {
	return &Adapter{
		source:   source,
		verifier: verifier,
		log:      log,
	}
}

// Products загружает продукты каталога.
func (a *Adapter) Products(ctx context.Context, ids []string) ([]models.Product, error) {
	const op = "storekit.Products"
	products, err := a.source.Products(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}

// ListVerifiedEntitlements возвращает текущие проверенные транзакции, по одной
// на исходную покупку (самую свежую). Непроверенные отбрасываются.
func (a *Adapter) ListVerifiedEntitlements(ctx context.Context) ([]models.Transaction, error) {
	const op = "storekit.ListVerifiedEntitlements"
	log := a.log.With(slog.String("op", op))

	signed, err := a.source.SignedEntitlements(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	latest := make(map[string]int)
	result := make([]models.Transaction, 0, len(signed))
	for _, raw := range signed {
		tx, err := a.verifier.Verify(raw)
		if err != nil {
			log.Warn("skipping unreadable transaction", sl.Err(err))
			continue
		}
		if !tx.IsVerified() {
			log.Warn("skipping unverified transaction",
				slog.String("transaction_id", tx.ID),
				slog.String("reason", tx.VerificationFailure),
			)
			continue
		}
		if i, ok := latest[tx.OriginalID]; ok {
			if tx.PurchaseDate.After(result[i].PurchaseDate) {
				result[i] = tx
			}
			continue
		}
		latest[tx.OriginalID] = len(result)
		result = append(result, tx)
	}
	return result, nil
}

// Purchase запускает покупку продукта. Транзакция в результате может быть
// непроверенной: решение о ней принимает вызывающий.
func (a *Adapter) Purchase(ctx context.Context, productID string) (models.PurchaseResult, error) {
	const op = "storekit.Purchase"
	purchase, err := a.source.Purchase(ctx, productID)
	if err != nil {
		return models.PurchaseResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if purchase.Outcome != models.PurchaseSuccess {
		return models.PurchaseResult{Outcome: purchase.Outcome}, nil
	}
	if purchase.SignedTransaction == "" {
		return models.PurchaseResult{}, fmt.Errorf("%s: %w", op, ErrEmptyPurchase)
	}
	tx, err := a.verifier.Verify(purchase.SignedTransaction)
	if err != nil {
		return models.PurchaseResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.PurchaseResult{Outcome: models.PurchaseSuccess, Transaction: &tx}, nil
}

// ListenForUpdates возвращает поток обновлений транзакций. Поток закрывается
// при отмене ctx или когда источник закрывает свой канал.
func (a *Adapter) ListenForUpdates(ctx context.Context) (<-chan models.Transaction, error) {
	const op = "storekit.ListenForUpdates"
	signed, err := a.source.SignedUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make(chan models.Transaction)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-signed:
				if !ok {
					return
				}
				tx, err := a.verifier.Verify(raw)
				if err != nil {
					a.log.Warn("dropping unreadable transaction update", slog.String("op", op), sl.Err(err))
					continue
				}
				select {
				case out <- tx:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Finish подтверждает магазину обработку транзакции.
func (a *Adapter) Finish(ctx context.Context, tx models.Transaction) error {
	const op = "storekit.Finish"
	if err := a.source.Finish(ctx, tx.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SyncWithStore просит магазин заново синхронизировать покупки.
func (a *Adapter) SyncWithStore(ctx context.Context) error {
	const op = "storekit.SyncWithStore"
	if err := a.source.Sync(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
