package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/homework-access/internal/cache"
	"github.com/magabrotheeeer/homework-access/internal/config"
	"github.com/magabrotheeeer/homework-access/internal/http/handlers/health"
	"github.com/magabrotheeeer/homework-access/internal/lib/jwt"
	"github.com/magabrotheeeer/homework-access/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/metrics"
	"github.com/magabrotheeeer/homework-access/internal/migrations"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
	"github.com/magabrotheeeer/homework-access/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = db.CheckDatabaseReady(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	checkers := map[string]health.Checker{
		"postgres": health.CheckerFunc(db.DB.PingContext),
		"redis": health.CheckerFunc(func(ctx context.Context) error {
			return cacheRedis.Db.Ping(ctx).Err()
		}),
	}

	// Без брокера бэкенд работает, но события синхронизации не публикуются.
	var (
		publisher account.Publisher
		conn      *amqp.Connection
	)
	if cfg.RabbitMQ.URL != "" {
		conn, err = rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.Delay)
		if err != nil {
			_ = cacheRedis.Close()
			_ = db.Close()
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.SubscriptionTopology())
		if err != nil {
			_ = conn.Close()
			_ = cacheRedis.Close()
			_ = db.Close()
			return nil, err
		}
		publisher = rabbitmq.NewPublisher(ch, rabbitmq.SubscriptionsExchange)
		checkers["rabbitmq"] = health.CheckerFunc(func(context.Context) error {
			if conn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		})
	} else {
		logger.Warn("rabbitmq url is empty, subscription events are disabled")
	}

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	accountService := account.New(logger, db, cacheRedis, publisher, tokens, account.Options{
		TrialPeriod: cfg.Account.TrialPeriod,
		UserTTL:     cfg.Account.UserCacheTTL,
		Location:    cfg.Session.Location(),
	})

	router := chi.NewRouter()
	RegisterRoutes(router, logger, accountService, metrics.New(), RouteOptions{
		RateLimit: rate.Limit(cfg.RateLimit),
		RateBurst: cfg.RateBurst,
		Checkers:  checkers,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
