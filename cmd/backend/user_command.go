package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/homework-access/internal/cache"
	"github.com/magabrotheeeer/homework-access/internal/config"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
	"github.com/magabrotheeeer/homework-access/internal/storage/repository"
)

// userAdmin — операции администратора, доступные из командной строки.
type userAdmin interface {
	Block(ctx context.Context, uid, reason string) error
	Unblock(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid string) error
	Syncs(ctx context.Context, uid string, limit int) ([]models.SubscriptionEvent, error)
}

// adminOpener подключается к хранилищам и возвращает функцию их закрытия.
type adminOpener func(ctx context.Context) (userAdmin, func(), error)

func openAdmin(ctx context.Context) (userAdmin, func(), error) {
	cfg := config.MustLoad()
	logger := newLogger(cfg.Env)

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, nil, err
	}
	redis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closeFn := func() {
		_ = redis.Close()
		_ = db.Close()
	}
	return account.NewAdmin(logger, db, redis), closeFn, nil
}

func RunUserCommand(open adminOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage backend accounts",
	}
	cmd.AddCommand(
		runBlockCommand(open),
		runUnblockCommand(open),
		runDeleteCommand(open),
		runSyncsCommand(open),
	)
	return cmd
}

func withAdmin(cmd *cobra.Command, open adminOpener, fn func(ctx context.Context, admin userAdmin) error) error {
	admin, closeFn, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cmd.Context(), admin)
}

func runBlockCommand(open adminOpener) *cobra.Command {
	var uid, reason string

	cmd := &cobra.Command{
		Use:   "block",
		Short: "Block an account; the reason is shown to the user on sign-out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uid == "" {
				return errors.New("--id is required")
			}
			return withAdmin(cmd, open, func(ctx context.Context, admin userAdmin) error {
				if err := admin.Block(ctx, uid, reason); err != nil {
					return err
				}
				cmd.Printf("User %s blocked\n", uid)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "id", "", "User id")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the user")
	return cmd
}

func runUnblockCommand(open adminOpener) *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "unblock",
		Short: "Unblock an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uid == "" {
				return errors.New("--id is required")
			}
			return withAdmin(cmd, open, func(ctx context.Context, admin userAdmin) error {
				if err := admin.Unblock(ctx, uid); err != nil {
					return err
				}
				cmd.Printf("User %s unblocked\n", uid)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "id", "", "User id")
	return cmd
}

func runDeleteCommand(open adminOpener) *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an account and its sync history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uid == "" {
				return errors.New("--id is required")
			}
			return withAdmin(cmd, open, func(ctx context.Context, admin userAdmin) error {
				if err := admin.Delete(ctx, uid); err != nil {
					return err
				}
				cmd.Printf("User %s deleted\n", uid)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "id", "", "User id")
	return cmd
}

func runSyncsCommand(open adminOpener) *cobra.Command {
	var (
		uid   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "syncs",
		Short: "Show recent subscription status pushes for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uid == "" {
				return errors.New("--id is required")
			}
			return withAdmin(cmd, open, func(ctx context.Context, admin userAdmin) error {
				events, err := admin.Syncs(ctx, uid, limit)
				if err != nil {
					return err
				}
				cmd.Printf("Syncs: %d\n", len(events))
				for _, e := range events {
					end := "-"
					if e.EndDate != nil {
						end = e.EndDate.UTC().Format(time.RFC3339)
					}
					cmd.Printf("  - %s status=%s end=%s\n", e.SyncedAt.UTC().Format(time.RFC3339), e.Status, end)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uid, "id", "", "User id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}
