// Package account содержит бизнес-логику staging-бэкенда подписок: вход,
// проверку сессии, расчёт пробного периода и приём согласованного клиентом статуса.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/homework-access/internal/lib/days"
	"github.com/magabrotheeeer/homework-access/internal/lib/jwt"
	"github.com/magabrotheeeer/homework-access/internal/lib/password"
	"github.com/magabrotheeeer/homework-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/storage/repository"
)

var (
	// ErrInvalidCredentials — неверная почта или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken — токен сессии не принят.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound — аккаунт удалён.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserBlocked — аккаунт заблокирован. Причина доступна через BlockedError.
	ErrUserBlocked = errors.New("user blocked")
	// ErrUserExists — почта уже зарегистрирована.
	ErrUserExists = errors.New("user already exists")
	// ErrForbidden — попытка изменить чужую подписку.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatus — статус, который клиент не может синхронизировать.
	ErrInvalidStatus = errors.New("invalid subscription status")
)

// BlockedError несёт причину блокировки для клиента.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return ErrUserBlocked.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUserBlocked, e.Reason)
}

// Is позволяет сравнивать с ErrUserBlocked через errors.Is.
func (e *BlockedError) Is(target error) bool {
	return target == ErrUserBlocked
}

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userUID, status string, expiry *time.Time) error
	RecordSync(ctx context.Context, event models.SubscriptionEvent) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует события синхронизации.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Options — настройки сервиса.
type Options struct {
	TrialPeriod time.Duration
	UserTTL     time.Duration
	Location    *time.Location
	Now         func() time.Time
}

// Service реализует бизнес-логику аккаунтов.
type Service struct {
	users     UserRepository
	cache     Cache
	publisher Publisher
	tokens    jwt.Maker
	log       *slog.Logger

	trialPeriod time.Duration
	userTTL     time.Duration
	loc         *time.Location
	now         func() time.Time
}

// New создает сервис. publisher может быть nil: тогда события не публикуются.
func New(log *slog.Logger, users UserRepository, cache Cache, publisher Publisher, tokens jwt.Maker, opts Options) *Service {
	if opts.TrialPeriod <= 0 {
		opts.TrialPeriod = 7 * 24 * time.Hour
	}
	if opts.UserTTL <= 0 {
		opts.UserTTL = 5 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		users:       users,
		cache:       cache,
		publisher:   publisher,
		tokens:      tokens,
		log:         log,
		trialPeriod: opts.TrialPeriod,
		userTTL:     opts.UserTTL,
		loc:         opts.Location,
		now:         opts.Now,
	}
}

func userKey(uid string) string {
	return "user:" + uid
}

// Register создает пользователя с пробным периодом.
func (s *Service) Register(ctx context.Context, email, displayName, rawPassword string) (string, error) {
	const op = "account.Register"
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	trialEnd := s.now().UTC().Add(s.trialPeriod)
	uid, err := s.users.CreateUser(ctx, models.User{
		Email:              strings.ToLower(strings.TrimSpace(email)),
		DisplayName:        displayName,
		PasswordHash:       hashed,
		TrialEndDate:       &trialEnd,
		SubscriptionStatus: string(models.StatusTrial),
	})
	if errors.Is(err, repository.ErrUserExists) {
		return "", fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("op", op), sl.Mask("user_uid", uid))
	return uid, nil
}

// Login проверяет пароль и выпускает токен сессии.
// Заблокированный пользователь получает BlockedError.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "account.Login"
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if user.Blocked {
		return "", nil, fmt.Errorf("%s: %w", op, &BlockedError{Reason: user.BlockedReason})
	}
	token, err := s.tokens.GenerateToken(user.UUID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// Authenticate проверяет токен и возвращает актуального пользователя.
// Ошибки: ErrInvalidToken, ErrUserNotFound, BlockedError.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "account.Authenticate"
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	user, err := s.user(ctx, claims.UserUID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Blocked {
		return nil, fmt.Errorf("%s: %w", op, &BlockedError{Reason: user.BlockedReason})
	}
	return user, nil
}

// user читает пользователя через кеш.
func (s *Service) user(ctx context.Context, uid string) (*models.User, error) {
	var cached models.User
	found, err := s.cache.Get(ctx, userKey(uid), &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	cacheable := *user
	cacheable.PasswordHash = ""
	if err := s.cache.Set(ctx, userKey(uid), cacheable, s.userTTL); err != nil {
		s.log.Warn("failed to cache user", sl.Mask("user_uid", uid), sl.Err(err))
	}
	return user, nil
}

// Entitlement — итоговое состояние подписки пользователя на сервере.
type Entitlement struct {
	Status        models.AccessStatus
	EndDate       *time.Time
	DaysRemaining *int
}

// Entitlement вычисляет статус пользователя на текущий момент.
// Оплаченная подписка важнее пробного периода.
func (s *Service) Entitlement(user *models.User) Entitlement {
	now := s.now()
	status := models.ParseAccessStatus(user.SubscriptionStatus)

	if (status == models.StatusActive || status == models.StatusGracePeriod) &&
		user.SubscriptionExpire != nil && user.SubscriptionExpire.After(now) {
		return s.entitlement(status, *user.SubscriptionExpire, now)
	}
	if status == models.StatusTrial && user.TrialEndDate != nil &&
		days.Between(now, *user.TrialEndDate, s.loc) > 0 {
		return s.entitlement(models.StatusTrial, *user.TrialEndDate, now)
	}
	return Entitlement{Status: models.StatusExpired}
}

func (s *Service) entitlement(status models.AccessStatus, end, now time.Time) Entitlement {
	d := days.Remaining(now, end, s.loc)
	return Entitlement{Status: status, EndDate: &end, DaysRemaining: &d}
}

// SyncInput — статус, согласованный клиентом.
type SyncInput struct {
	UserID  string
	Status  string
	EndDate *time.Time
}

// Sync сохраняет статус, присланный клиентом от имени пользователя caller.
// Событие публикуется в обменник подписок; ошибка публикации только логируется.
func (s *Service) Sync(ctx context.Context, caller *models.User, in SyncInput) error {
	const op = "account.Sync"
	log := s.log.With(slog.String("op", op), sl.Mask("user_uid", caller.UUID))

	if in.UserID != caller.UUID {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	status := models.ParseAccessStatus(in.Status)
	switch status {
	case models.StatusActive, models.StatusExpired, models.StatusGracePeriod:
	default:
		return fmt.Errorf("%s: %w: %q", op, ErrInvalidStatus, in.Status)
	}
	if status == models.StatusActive && in.EndDate == nil {
		return fmt.Errorf("%s: %w: active without end date", op, ErrInvalidStatus)
	}

	if err := s.users.UpdateSubscription(ctx, caller.UUID, string(status), in.EndDate); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, userKey(caller.UUID)); err != nil {
		log.Warn("failed to invalidate user cache", sl.Err(err))
	}

	event := models.SubscriptionEvent{
		UserUID:  caller.UUID,
		Status:   string(status),
		EndDate:  in.EndDate,
		SyncedAt: s.now().UTC(),
	}
	if err := s.users.RecordSync(ctx, event); err != nil {
		log.Warn("failed to record sync", sl.Err(err))
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(rabbitmq.SyncedRoutingKey, event); err != nil {
			log.Warn("failed to publish subscription event", sl.Err(err))
		}
	}
	log.Info("subscription synced", slog.String("status", string(status)))
	return nil
}
