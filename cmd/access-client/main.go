// Command access-client — клиент доступа к платным функциям: поднимает сессию,
// согласует подписку с платформой покупок и бэкендом и следит за ней.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/homework-access/internal/app/client"
	"github.com/magabrotheeeer/homework-access/internal/config"
)

func main() {
	if err := newRootCommand(loadApp).Execute(); err != nil {
		os.Exit(1)
	}
}

// appLoader собирает клиент. Вызывающий закрывает App.
type appLoader func(ctx context.Context) (*client.App, error)

func loadApp(ctx context.Context) (*client.App, error) {
	cfg := config.MustLoad()
	level := slog.LevelDebug
	if cfg.Env == "prod" {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Info("starting access client", slog.String("env", cfg.Env), slog.String("store_mode", cfg.Store.Mode))
	return client.New(ctx, cfg, logger)
}

func newRootCommand(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "access-client",
		Short:        "Premium access client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := load(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Run(ctx)
		},
	}

	cmd.AddCommand(
		runLoginCommand(load),
		runLogoutCommand(load),
		runStatusCommand(load),
		runPurchaseCommand(load),
		runRestoreCommand(load),
	)
	return cmd
}
