// Package access — движок согласования доступа. Он сводит три источника
// (кешированный профиль, права из платформы покупок и данные бэкенда) в одно
// авторитетное состояние models.AccessState и решает, когда сетевой сбой
// не должен лишать пользователя доступа.
//
// Все изменения состояния проходят через один путь обновления: операции
// движка выполняются последовательно, а сетевые вызовы не держат блокировку
// чтения, поэтому HasAccess и DaysRemaining доступны в любой момент.
package access

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// TokenKey — ключ токена авторизации в защищённом хранилище.
const TokenKey = "auth_token"

// SecretStore — защищённое хранилище токена.
type SecretStore interface {
	Save(key, value string) error
	Load(key string) (string, bool, error)
	Delete(key string) error
}

// ProfileStore — хранилище кешированного профиля пользователя.
type ProfileStore interface {
	LoadProfile(ctx context.Context) (*models.UserProfile, bool, error)
	SaveProfile(ctx context.Context, profile models.UserProfile) error
	ClearProfile(ctx context.Context) error
}

// Backend — бэкенд подписок.
type Backend interface {
	ValidateSession(ctx context.Context, token string) models.SessionResult
	CheckTrialStatus(ctx context.Context, token string) (*models.TrialStatus, error)
	SyncSubscription(ctx context.Context, req models.SyncRequest) error
}

// Platform — платформа покупок.
type Platform interface {
	Products(ctx context.Context, ids []string) ([]models.Product, error)
	ListVerifiedEntitlements(ctx context.Context) ([]models.Transaction, error)
	Purchase(ctx context.Context, productID string) (models.PurchaseResult, error)
	ListenForUpdates(ctx context.Context) (<-chan models.Transaction, error)
	Finish(ctx context.Context, tx models.Transaction) error
	SyncWithStore(ctx context.Context) error
}

// Options — настройки движка.
type Options struct {
	// ProductID — единственный поддерживаемый продукт подписки.
	ProductID string
	// RevalidateInterval — минимальный интервал между проверками сессии
	// по OnForeground. Ноль — проверять при каждом событии.
	RevalidateInterval time.Duration
	// SyncTimeout ограничивает фоновую отправку статуса на бэкенд.
	SyncTimeout time.Duration
	// Location — часовой пояс для подсчёта календарных дней.
	Location *time.Location
	// Now подменяет часы в тестах.
	Now func() time.Time
}

// Engine — движок согласования доступа.
type Engine struct {
	log      *slog.Logger
	secrets  SecretStore
	profiles ProfileStore
	backend  Backend
	platform Platform

	productID          string
	revalidateInterval time.Duration
	syncTimeout        time.Duration
	loc                *time.Location
	now                func() time.Time

	// ops выстраивает операции движка в очередь.
	ops sync.Mutex

	mu             sync.RWMutex
	state          models.AccessState
	profile        *models.UserProfile
	authenticated  bool
	message        string
	product        *models.Product
	lastValidation time.Time
	subscribers    map[int]chan models.AccessState
	nextSub        int

	rootCtx      context.Context
	rootCancel   context.CancelFunc
	listenCancel context.CancelFunc
	listenDone   chan struct{}
	syncWG       sync.WaitGroup
}

// New создаёт движок. Состояние начинается с Unknown.
func New(log *slog.Logger, secrets SecretStore, profiles ProfileStore, backend Backend, platform Platform, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SyncTimeout <= 0 {
		opts.SyncTimeout = 10 * time.Second
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Engine{
		log:                log,
		secrets:            secrets,
		profiles:           profiles,
		backend:            backend,
		platform:           platform,
		productID:          opts.ProductID,
		revalidateInterval: opts.RevalidateInterval,
		syncTimeout:        opts.SyncTimeout,
		loc:                opts.Location,
		now:                opts.Now,
		state:              models.UnknownState(),
		subscribers:        make(map[int]chan models.AccessState),
		rootCtx:            rootCtx,
		rootCancel:         rootCancel,
	}
}

// Close останавливает слушатель обновлений и дожидается фоновых отправок статуса.
func (e *Engine) Close() {
	e.ops.Lock()
	done := e.stopListenerLocked()
	e.rootCancel()
	e.ops.Unlock()

	if done != nil {
		<-done
	}
	e.syncWG.Wait()

	e.mu.Lock()
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
	e.mu.Unlock()
}

// State возвращает текущее состояние доступа.
func (e *Engine) State() models.AccessState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsAuthenticated сообщает, считается ли пользователь вошедшим.
func (e *Engine) IsAuthenticated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authenticated
}

// Profile возвращает копию кешированного профиля.
func (e *Engine) Profile() (models.UserProfile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.profile == nil {
		return models.UserProfile{}, false
	}
	return *e.profile, true
}

// Message возвращает последнее сообщение для пользователя
// (итог покупки, причина выхода и т.п.).
func (e *Engine) Message() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.message
}

// Subscribe возвращает канал с текущим и последующими состояниями и функцию отписки.
// В канале всегда лежит самое свежее значение: промежуточные состояния
// могут быть пропущены медленным читателем, движок при этом не блокируется.
// После Close канал приходит уже закрытым.
func (e *Engine) Subscribe() (<-chan models.AccessState, func()) {
	ch := make(chan models.AccessState, 1)

	e.mu.Lock()
	ch <- e.state
	if e.rootCtx.Err() != nil {
		// движок закрыт: отдаём последнее состояние и закрытый канал
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			if sub, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(sub)
			}
			e.mu.Unlock()
		})
	}
}

func (e *Engine) setMessage(msg string) {
	e.mu.Lock()
	e.message = msg
	e.mu.Unlock()
}

// applyState атомарно присваивает новое состояние, обновляет зеркало в профиле
// и оповещает подписчиков. Профиль сохраняется, только если состояние изменилось.
func (e *Engine) applyState(ctx context.Context, state models.AccessState) {
	e.mu.Lock()
	if state.Equal(e.state) {
		e.mu.Unlock()
		return
	}
	e.state = state
	var snapshot *models.UserProfile
	if e.profile != nil {
		e.profile.ApplyState(state, e.now())
		p := *e.profile
		snapshot = &p
	}
	e.notifyLocked()
	e.mu.Unlock()

	e.log.Info("access state changed",
		slog.String("status", string(state.Status)),
		slog.Bool("has_access", state.HasAccess()),
	)

	if snapshot != nil {
		e.persistProfile(ctx, *snapshot)
	}
}

func (e *Engine) persistProfile(ctx context.Context, profile models.UserProfile) {
	// состояние уже присвоено, поэтому сохраняем даже при отменённом ctx
	if err := e.profiles.SaveProfile(context.WithoutCancel(ctx), profile); err != nil {
		e.log.Warn("failed to persist profile", sl.Err(err))
	}
}

func (e *Engine) notifyLocked() {
	for _, ch := range e.subscribers {
		select {
		case ch <- e.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- e.state
		}
	}
}

func (e *Engine) token() (string, error) {
	token, ok, err := e.secrets.Load(TokenKey)
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

func (e *Engine) userID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.profile == nil {
		return ""
	}
	return e.profile.UserID
}
