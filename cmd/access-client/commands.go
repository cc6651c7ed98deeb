package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/homework-access/internal/access"
	"github.com/magabrotheeeer/homework-access/internal/app/client"
	"github.com/magabrotheeeer/homework-access/internal/platform/sandbox"
)

var outcomes = map[string]sandbox.Outcome{
	"success":    sandbox.OutcomeSuccess,
	"cancelled":  sandbox.OutcomeCancelled,
	"pending":    sandbox.OutcomePending,
	"unverified": sandbox.OutcomeUnverified,
}

func withApp(cmd *cobra.Command, load appLoader, fn func(ctx context.Context, app *client.App) error) error {
	app, err := load(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cmd.Context(), app)
}

func printState(cmd *cobra.Command, engine *access.Engine) {
	state := engine.State()
	cmd.Printf("Status: %s\n", state.Status)
	if days := engine.DaysRemaining(); days != nil {
		cmd.Printf("Days remaining: %d\n", *days)
	}
	if state.RenewalOrExpiryDate != nil {
		cmd.Printf("Until: %s\n", state.RenewalOrExpiryDate.Format("2006-01-02"))
	}
	premium := "no"
	if engine.HasAccess() {
		premium = "yes"
	}
	cmd.Printf("Premium access: %s\n", premium)
	if msg := engine.Message(); msg != "" {
		cmd.Printf("Message: %s\n", msg)
	}
}

func runLoginCommand(load appLoader) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			return withApp(cmd, load, func(ctx context.Context, app *client.App) error {
				token, user, err := app.Backend.Login(ctx, email, password)
				if err != nil {
					return err
				}
				if err := app.Engine.SignIn(ctx, token, *user); err != nil {
					return err
				}
				app.Start(ctx)
				cmd.Printf("Signed in as %s\n", user.Email)
				printState(cmd, app.Engine)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	return cmd
}

func runLogoutCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(ctx context.Context, app *client.App) error {
				if err := app.Engine.SignOut(ctx, ""); err != nil {
					return err
				}
				cmd.Println("Signed out")
				return nil
			})
		},
	}
}

func runStatusCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Restore the session and print the current access state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(ctx context.Context, app *client.App) error {
				app.Start(ctx)
				if !app.Engine.IsAuthenticated() {
					cmd.Println("Not signed in")
				}
				printState(cmd, app.Engine)
				return nil
			})
		},
	}
}

func runPurchaseCommand(load appLoader) *cobra.Command {
	var outcome string

	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Buy the premium subscription",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scripted, ok := outcomes[strings.ToLower(outcome)]
			if outcome != "" && !ok {
				return fmt.Errorf("unknown outcome %q", outcome)
			}
			return withApp(cmd, load, func(ctx context.Context, app *client.App) error {
				if outcome != "" {
					if app.Sandbox == nil {
						return errors.New("--outcome is only available in sandbox mode")
					}
					app.Sandbox.ScriptOutcomes(scripted)
				}
				app.Start(ctx)

				purchased, err := app.Engine.Purchase(ctx)
				if err != nil {
					return err
				}
				if purchased {
					cmd.Println("Purchase completed")
				} else {
					cmd.Println("Purchase not completed")
				}
				printState(cmd, app.Engine)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "Sandbox purchase outcome: success, cancelled, pending or unverified")
	return cmd
}

func runRestoreCommand(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore purchases from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, load, func(ctx context.Context, app *client.App) error {
				app.Start(ctx)
				if err := app.Engine.RestorePurchases(ctx); err != nil {
					return err
				}
				printState(cmd, app.Engine)
				return nil
			})
		},
	}
}
