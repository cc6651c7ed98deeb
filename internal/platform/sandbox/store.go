// Package sandbox — встроенный магазин покупок для локального запуска и тестов.
// Подписывает транзакции так же, как настоящий магазин, и позволяет заранее
// задать исход следующих покупок.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/platform/storekit"
)

var (
	// ErrUnknownProduct — продукта нет в каталоге песочницы.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrUnknownTransaction — транзакция не найдена.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrNoPendingPurchase — нет покупки, ожидающей подтверждения.
	ErrNoPendingPurchase = errors.New("no pending purchase")
)

// Outcome — заданный исход очередной покупки.
type Outcome int

const (
	// OutcomeSuccess — покупка проходит, транзакция подписана верно.
	OutcomeSuccess Outcome = iota
	// OutcomeCancelled — пользователь отменяет покупку.
	OutcomeCancelled
	// OutcomePending — покупка ждёт одобрения (ApprovePending).
	OutcomePending
	// OutcomeUnverified — транзакция подписана чужим ключом.
	OutcomeUnverified
)

// DefaultPeriod — срок подписки в песочнице.
const DefaultPeriod = 30 * 24 * time.Hour

// Store — песочница магазина, реализует storekit.Source.
type Store struct {
	mu           sync.Mutex
	signer       *storekit.Signer
	catalog      map[string]models.Product
	transactions map[string]models.Transaction // по OriginalID, последняя транзакция
	finished     map[string]bool
	outcomes     []Outcome
	pending      []string
	subscribers  map[chan string]struct{}
	period       time.Duration
	now          func() time.Time
}

// OptFunc настраивает Store.
type OptFunc func(*Store)

// WithPeriod задаёт срок подписки.
func WithPeriod(period time.Duration) OptFunc {
	return func(s *Store) {
		if period > 0 {
			s.period = period
		}
	}
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) OptFunc {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithProducts добавляет продукты в каталог.
func WithProducts(products ...models.Product) OptFunc {
	return func(s *Store) {
		for _, p := range products {
			s.catalog[p.ID] = p
		}
	}
}

// New создаёт песочницу, подписывающую транзакции секретом secret.
func New(secret []byte, opts ...OptFunc) *Store {
	s := &Store{
		signer:       storekit.NewSigner(secret),
		catalog:      make(map[string]models.Product),
		transactions: make(map[string]models.Transaction),
		finished:     make(map[string]bool),
		subscribers:  make(map[chan string]struct{}),
		period:       DefaultPeriod,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScriptOutcomes ставит в очередь исходы следующих покупок.
// Когда очередь пуста, покупка проходит успешно.
func (s *Store) ScriptOutcomes(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcomes...)
}

// Products возвращает продукты каталога из списка ids; неизвестные пропускаются.
func (s *Store) Products(_ context.Context, ids []string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.catalog[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// SignedEntitlements возвращает подписанные текущие транзакции.
func (s *Store) SignedEntitlements(_ context.Context) ([]string, error) {
	const op = "sandbox.SignedEntitlements"
	s.mu.Lock()
	defer s.mu.Unlock()

	signed := make([]string, 0, len(s.transactions))
	for _, tx := range s.transactions {
		raw, err := s.signer.Sign(tx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		signed = append(signed, raw)
	}
	return signed, nil
}

// Purchase проводит покупку согласно очередному заданному исходу.
func (s *Store) Purchase(ctx context.Context, productID string) (storekit.SignedPurchase, error) {
	const op = "sandbox.Purchase"
	if err := ctx.Err(); err != nil {
		return storekit.SignedPurchase{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[productID]; !ok {
		return storekit.SignedPurchase{}, fmt.Errorf("%s: %w: %s", op, ErrUnknownProduct, productID)
	}

	outcome := OutcomeSuccess
	if len(s.outcomes) > 0 {
		outcome = s.outcomes[0]
		s.outcomes = s.outcomes[1:]
	}

	switch outcome {
	case OutcomeCancelled:
		return storekit.SignedPurchase{Outcome: models.PurchaseUserCancelled}, nil
	case OutcomePending:
		s.pending = append(s.pending, productID)
		return storekit.SignedPurchase{Outcome: models.PurchasePending}, nil
	case OutcomeUnverified:
		tx := s.newTransactionLocked(productID)
		raw, err := storekit.NewSigner([]byte(uuid.NewString())).Sign(tx)
		if err != nil {
			return storekit.SignedPurchase{}, fmt.Errorf("%s: %w", op, err)
		}
		return storekit.SignedPurchase{Outcome: models.PurchaseSuccess, SignedTransaction: raw}, nil
	default:
		tx := s.newTransactionLocked(productID)
		s.transactions[tx.OriginalID] = tx
		raw, err := s.signer.Sign(tx)
		if err != nil {
			return storekit.SignedPurchase{}, fmt.Errorf("%s: %w", op, err)
		}
		return storekit.SignedPurchase{Outcome: models.PurchaseSuccess, SignedTransaction: raw}, nil
	}
}

// ApprovePending одобряет самую раннюю отложенную покупку; транзакция
// приходит подписчикам как обновление.
func (s *Store) ApprovePending() (models.Transaction, error) {
	const op = "sandbox.ApprovePending"
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, ErrNoPendingPurchase)
	}
	productID := s.pending[0]
	s.pending = s.pending[1:]

	tx := s.newTransactionLocked(productID)
	s.transactions[tx.OriginalID] = tx
	if err := s.broadcastLocked(tx); err != nil {
		return models.Transaction{}, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

// Grant добавляет произвольную транзакцию (продление, grace-период и т.п.)
// и рассылает её подписчикам.
func (s *Store) Grant(tx models.Transaction) error {
	const op = "sandbox.Grant"
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.OriginalID == "" {
		tx.OriginalID = tx.ID
	}
	if tx.PurchaseDate.IsZero() {
		tx.PurchaseDate = s.now()
	}
	s.transactions[tx.OriginalID] = tx
	if err := s.broadcastLocked(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Revoke отмечает подписку отозванной (возврат средств) на момент at.
func (s *Store) Revoke(originalID string, at time.Time) error {
	const op = "sandbox.Revoke"
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[originalID]
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ErrUnknownTransaction, originalID)
	}
	tx.RevocationDate = &at
	s.transactions[originalID] = tx
	if err := s.broadcastLocked(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SignedUpdates подписывает вызывающего на обновления транзакций.
// Канал закрывается при отмене ctx.
func (s *Store) SignedUpdates(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// Finish отмечает транзакцию обработанной.
func (s *Store) Finish(_ context.Context, transactionID string) error {
	const op = "sandbox.Finish"
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.ID == transactionID {
			s.finished[transactionID] = true
			return nil
		}
	}
	return fmt.Errorf("%s: %w: %s", op, ErrUnknownTransaction, transactionID)
}

// IsFinished сообщает, подтверждена ли транзакция.
func (s *Store) IsFinished(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished[transactionID]
}

// Sync в песочнице ничего не делает: состояние всегда актуально.
func (s *Store) Sync(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) newTransactionLocked(productID string) models.Transaction {
	now := s.now().UTC()
	expires := now.Add(s.period)
	tx := models.Transaction{
		ID:             uuid.NewString(),
		ProductID:      productID,
		PurchaseDate:   now,
		ExpirationDate: &expires,
	}
	tx.OriginalID = tx.ID
	for _, existing := range s.transactions {
		if existing.ProductID == productID {
			tx.OriginalID = existing.OriginalID
			break
		}
	}
	return tx
}

// broadcastLocked рассылает транзакцию подписчикам; медленные подписчики
// пропускают обновление, но увидят его при следующем запросе прав.
func (s *Store) broadcastLocked(tx models.Transaction) error {
	raw, err := s.signer.Sign(tx)
	if err != nil {
		return err
	}
	for ch := range s.subscribers {
		select {
		case ch <- raw:
		default:
		}
	}
	return nil
}
