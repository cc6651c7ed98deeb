// Package notifications получает серверные уведомления магазина из RabbitMQ
// и ведёт по ним журнал подписанных транзакций. Журнал служит источником
// транзакций (storekit.Source) для клиента, работающего без песочницы.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/homework-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/platform/storekit"
)

// ErrPurchaseUnsupported — покупки через журнал уведомлений невозможны,
// они совершаются на устройстве.
var ErrPurchaseUnsupported = errors.New("purchases are not available from the notification feed")

// ledgerKey — ключ, под которым журнал сохраняется в кеше.
const ledgerKey = "store:ledger"

// Envelope — сообщение очереди уведомлений магазина.
type Envelope struct {
	NotificationType      string `json:"notificationType"`
	OriginalTransactionID string `json:"originalTransactionId"`
	SignedTransaction     string `json:"signedTransactionInfo"`
}

// Cache — хранилище, в котором журнал переживает перезапуск клиента.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Feed — журнал подписанных транзакций, пополняемый из очереди.
type Feed struct {
	mu          sync.Mutex
	log         *slog.Logger
	cache       Cache
	catalog     map[string]models.Product
	ledger      map[string]string
	subscribers map[chan string]struct{}
}

// New создаёт журнал. cache может быть nil.
func New(log *slog.Logger, cache Cache, products ...models.Product) *Feed {
	f := &Feed{
		log:         log,
		cache:       cache,
		catalog:     make(map[string]models.Product, len(products)),
		ledger:      make(map[string]string),
		subscribers: make(map[chan string]struct{}),
	}
	for _, p := range products {
		f.catalog[p.ID] = p
	}
	return f
}

// Restore загружает журнал из кеша.
func (f *Feed) Restore(ctx context.Context) error {
	const op = "notifications.Restore"
	if f.cache == nil {
		return nil
	}
	var saved map[string]string
	found, err := f.cache.Get(ctx, ledgerKey, &saved)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil
	}
	f.mu.Lock()
	for k, v := range saved {
		f.ledger[k] = v
	}
	f.mu.Unlock()
	return nil
}

// Start подписывает журнал на очередь уведомлений.
func (f *Feed) Start(ctx context.Context, ch *amqp.Channel, queue string) error {
	const op = "notifications.Start"
	if err := rabbitmq.ConsumerMessage(ctx, f.log, ch, queue, f.HandleMessage); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleMessage обрабатывает одно уведомление. Нераспознанные сообщения
// подтверждаются и пропускаются, чтобы не возвращаться в очередь бесконечно.
func (f *Feed) HandleMessage(ctx context.Context, body []byte) error {
	const op = "notifications.HandleMessage"
	log := f.log.With(slog.String("op", op))

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Warn("dropping malformed notification", sl.Err(err))
		return nil
	}
	if env.SignedTransaction == "" {
		log.Warn("dropping notification without transaction", slog.String("type", env.NotificationType))
		return nil
	}
	key := env.OriginalTransactionID
	if key == "" {
		key = env.SignedTransaction
	}

	f.mu.Lock()
	f.ledger[key] = env.SignedTransaction
	snapshot := make(map[string]string, len(f.ledger))
	for k, v := range f.ledger {
		snapshot[k] = v
	}
	for sub := range f.subscribers {
		select {
		case sub <- env.SignedTransaction:
		default:
			log.Warn("subscriber is slow, update skipped")
		}
	}
	f.mu.Unlock()

	log.Info("store notification received",
		slog.String("type", env.NotificationType),
		sl.Mask("original_transaction_id", env.OriginalTransactionID),
	)

	if f.cache != nil {
		if err := f.cache.Set(ctx, ledgerKey, snapshot, 0); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// Products возвращает продукты из настроенного каталога.
func (f *Feed) Products(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.catalog[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// SignedEntitlements возвращает все транзакции журнала.
func (f *Feed) SignedEntitlements(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	signed := make([]string, 0, len(f.ledger))
	for _, raw := range f.ledger {
		signed = append(signed, raw)
	}
	return signed, nil
}

// Purchase всегда возвращает ErrPurchaseUnsupported.
func (f *Feed) Purchase(_ context.Context, _ string) (storekit.SignedPurchase, error) {
	return storekit.SignedPurchase{}, ErrPurchaseUnsupported
}

// SignedUpdates подписывает на новые уведомления; канал закрывается при отмене ctx.
func (f *Feed) SignedUpdates(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subscribers, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Finish ничего не делает: сообщение подтверждается в очереди при обработке,
// а завершённая транзакция остаётся в журнале как действующее право.
func (f *Feed) Finish(ctx context.Context, _ string) error {
	return ctx.Err()
}

// Sync ничего не делает: журнал пополняется очередью непрерывно.
func (f *Feed) Sync(ctx context.Context) error {
	return ctx.Err()
}
