// Package client собирает клиент доступа: хранилища, бэкенд, платформу покупок
// и движок согласования, а также его жизненный цикл.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/homework-access/internal/access"
	"github.com/magabrotheeeer/homework-access/internal/backendclient"
	"github.com/magabrotheeeer/homework-access/internal/cache"
	"github.com/magabrotheeeer/homework-access/internal/config"
	"github.com/magabrotheeeer/homework-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/platform/notifications"
	"github.com/magabrotheeeer/homework-access/internal/platform/sandbox"
	"github.com/magabrotheeeer/homework-access/internal/platform/storekit"
	"github.com/magabrotheeeer/homework-access/internal/secretstore"
)

const (
	// ModeSandbox — встроенная песочница магазина.
	ModeSandbox = "sandbox"
	// ModeStoreKit — подписанные транзакции из очереди уведомлений магазина.
	ModeStoreKit = "storekit"
)

// ErrUnknownMode — неизвестный режим платформы покупок.
var ErrUnknownMode = errors.New("unknown store mode")

// defaultSandboxSecret подписывает транзакции песочницы, если секрет не задан.
const defaultSandboxSecret = "sandbox-secret"

type App struct {
	Engine  *access.Engine
	Backend *backendclient.Client
	// Sandbox заполнен только в режиме песочницы.
	Sandbox *sandbox.Store

	logger       *slog.Logger
	pollInterval time.Duration
	redis        *cache.Cache
	conn         *amqp.Connection
	cancelFeed   context.CancelFunc
}

// New собирает клиент по конфигу. Без адреса Redis профиль хранится в памяти процесса.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "client.New"
	a := &App{logger: logger, pollInterval: cfg.Session.PollInterval}

	secrets, err := secretstore.Open(cfg.SecretStore.Path, cfg.SecretStore.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var store cache.Store
	if cfg.AddressRedis != "" {
		a.redis, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		store = a.redis
	} else {
		logger.Warn("redis address is empty, profile cache is kept in memory")
		store = cache.NewMemory()
	}

	a.Backend, err = backendclient.New(cfg.Backend.BaseURL,
		backendclient.WithTimeout(cfg.Backend.Timeout),
		backendclient.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	platform, err := a.newPlatform(ctx, cfg, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Engine = access.New(logger, secrets, cache.NewProfileStore(store, cache.DefaultProfileKey), a.Backend, platform, access.Options{
		ProductID:          cfg.Store.ProductID,
		RevalidateInterval: cfg.Session.RevalidateInterval,
		SyncTimeout:        cfg.Session.SyncTimeout,
		Location:           cfg.Session.Location(),
	})
	return a, nil
}

func (a *App) newPlatform(ctx context.Context, cfg *config.Config, store cache.Store) (*storekit.Adapter, error) {
	product := models.Product{
		ID:           cfg.Store.ProductID,
		DisplayName:  cfg.Store.ProductName,
		DisplayPrice: cfg.Store.ProductPrice,
	}
	secret := []byte(cfg.Store.VerificationSecret)

	switch cfg.Store.Mode {
	case ModeSandbox:
		if len(secret) == 0 {
			secret = []byte(defaultSandboxSecret)
		}
		a.Sandbox = sandbox.New(secret, sandbox.WithProducts(product))
		return storekit.NewAdapter(a.Sandbox, storekit.NewHMACVerifier(secret), a.logger), nil

	case ModeStoreKit:
		verifier := storekit.NewHMACVerifier(secret)
		if cfg.Store.VerificationKeyPath != "" {
			v, err := storekit.LoadECDSAVerifier(cfg.Store.VerificationKeyPath)
			if err != nil {
				return nil, err
			}
			verifier = v
		}

		feed := notifications.New(a.logger, store, product)
		if err := feed.Restore(ctx); err != nil {
			a.logger.Warn("failed to restore notification ledger", sl.Err(err))
		}
		if cfg.RabbitMQ.URL == "" {
			a.logger.Warn("rabbitmq url is empty, store notifications are disabled")
			return storekit.NewAdapter(feed, verifier, a.logger), nil
		}

		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
		if err != nil {
			return nil, err
		}
		a.conn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.StoreTopology(cfg.Store.NotificationsQueue))
		if err != nil {
			return nil, err
		}
		feedCtx, cancel := context.WithCancel(context.Background())
		a.cancelFeed = cancel
		if err := feed.Start(feedCtx, ch, cfg.Store.NotificationsQueue); err != nil {
			return nil, err
		}
		return storekit.NewAdapter(feed, verifier, a.logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Store.Mode)
	}
}

// Start поднимает сессию из кеша, загружает продукт и согласует доступ
// по транзакциям платформы. Ошибки шагов логируются: клиент продолжает работу
// с последним известным состоянием.
func (a *App) Start(ctx context.Context) {
	if err := a.Engine.Restore(ctx); err != nil {
		a.logger.Warn("failed to restore session", sl.Err(err))
	}
	if err := a.Engine.LoadProducts(ctx); err != nil {
		a.logger.Warn("failed to load products", sl.Err(err))
	}
	if err := a.Engine.RefreshFromEntitlements(ctx); err != nil {
		a.logger.Warn("failed to refresh entitlements", sl.Err(err))
	}
}

// Run запускает клиент и каждые PollInterval имитирует возврат приложения на
// передний план, пока ctx не будет отменён.
func (a *App) Run(ctx context.Context) error {
	states, unsubscribe := a.Engine.Subscribe()
	defer unsubscribe()

	a.Start(ctx)

	interval := a.pollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("access client stopping")
			return nil
		case state, ok := <-states:
			if !ok {
				return nil
			}
			a.logger.Info("access state changed",
				slog.String("status", string(state.Status)),
				slog.Bool("has_access", access.HasAccess(state)),
			)
		case <-ticker.C:
			if err := a.Engine.OnForeground(ctx); err != nil {
				a.logger.Warn("foreground check failed", sl.Err(err))
			}
			if err := a.Engine.RefreshFromEntitlements(ctx); err != nil {
				a.logger.Warn("failed to refresh entitlements", sl.Err(err))
			}
		}
	}
}

// Close останавливает движок и закрывает соединения.
func (a *App) Close() {
	if a.Engine != nil {
		a.Engine.Close()
	}
	if a.cancelFeed != nil {
		a.cancelFeed()
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
}
