package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/homework-access/internal/app/backend"
	"github.com/magabrotheeeer/homework-access/internal/app/client"
	"github.com/magabrotheeeer/homework-access/internal/config"
	"github.com/magabrotheeeer/homework-access/internal/metrics"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

// accountsStub — бэкенд с одним пользователем в пробном периоде.
type accountsStub struct {
	mu    sync.Mutex
	syncs []account.SyncInput
}

var stubUser = models.User{UUID: "uid-1", Email: "student@example.com", DisplayName: "Student"}

func (s *accountsStub) Register(context.Context, string, string, string) (string, error) {
	return stubUser.UUID, nil
}

func (s *accountsStub) Login(_ context.Context, _, password string) (string, *models.User, error) {
	if password != "password123" {
		return "", nil, account.ErrInvalidCredentials
	}
	u := stubUser
	return "tok-1", &u, nil
}

func (s *accountsStub) Authenticate(_ context.Context, token string) (*models.User, error) {
	if token != "tok-1" {
		return nil, account.ErrInvalidToken
	}
	u := stubUser
	return &u, nil
}

func (s *accountsStub) Entitlement(*models.User) account.Entitlement {
	end := time.Now().Add(48 * time.Hour)
	days := 2
	return account.Entitlement{Status: models.StatusTrial, EndDate: &end, DaysRemaining: &days}
}

func (s *accountsStub) Sync(_ context.Context, _ *models.User, in account.SyncInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncs = append(s.syncs, in)
	return nil
}

// testLoader собирает клиент против тестового бэкенда. Токен переживает
// перезапуски через общий файл хранилища секретов.
func testLoader(t *testing.T) appLoader {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	backend.RegisterRoutes(r, log, &accountsStub{}, metrics.New(), backend.RouteOptions{RateLimit: rate.Inf})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Backend: config.Backend{BaseURL: srv.URL + "/api/v1", Timeout: 2 * time.Second},
		Store:   config.Store{Mode: client.ModeSandbox, ProductID: "premium.monthly", VerificationSecret: "secret"},
		Session: config.Session{RevalidateInterval: time.Minute, SyncTimeout: time.Second, Timezone: "UTC"},
		SecretStore: config.SecretStore{
			Path:       filepath.Join(t.TempDir(), "secrets.json"),
			Passphrase: "passphrase",
		},
	}
	return func(ctx context.Context) (*client.App, error) {
		return client.New(ctx, cfg, log)
	}
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestLoginThenStatus(t *testing.T) {
	load := testLoader(t)

	out, err := execute(newRootCommand(load), "login", "--email", "student@example.com", "--password", "password123")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as student@example.com")
	assert.Contains(t, out, "Status: trial")
	assert.Contains(t, out, "Days remaining: 2")
	assert.Contains(t, out, "Premium access: yes")

	out, err = execute(newRootCommand(load), "status")
	require.NoError(t, err)
	assert.NotContains(t, out, "Not signed in")
	assert.Contains(t, out, "Status: trial")

	out, err = execute(newRootCommand(load), "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, err = execute(newRootCommand(load), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
	assert.Contains(t, out, "Premium access: no")
}

func TestLogin_WrongPassword(t *testing.T) {
	_, err := execute(newRootCommand(testLoader(t)), "login", "--email", "student@example.com", "--password", "nope")
	require.Error(t, err)
}

func TestLogin_MissingFlags(t *testing.T) {
	_, err := execute(newRootCommand(testLoader(t)), "login", "--email", "student@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email and --password are required")
}

func TestPurchaseCommand(t *testing.T) {
	tests := []struct {
		name    string
		outcome string
		want    []string
	}{
		{
			name: "success",
			want: []string{"Purchase completed", "Status: active", "Premium access: yes"},
		},
		{
			name:    "cancelled",
			outcome: "cancelled",
			want:    []string{"Purchase not completed", "Status: trial"},
		},
		{
			name:    "pending",
			outcome: "pending",
			want:    []string{"Purchase not completed", "Message: Your purchase is pending approval."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			load := testLoader(t)
			_, err := execute(newRootCommand(load), "login", "--email", "student@example.com", "--password", "password123")
			require.NoError(t, err)

			args := []string{"purchase"}
			if tt.outcome != "" {
				args = append(args, "--outcome", tt.outcome)
			}
			out, err := execute(newRootCommand(load), args...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestPurchaseCommand_UnknownOutcome(t *testing.T) {
	_, err := execute(newRootCommand(testLoader(t)), "purchase", "--outcome", "refund")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown outcome "refund"`)
}

func TestPurchaseCommand_Unverified(t *testing.T) {
	load := testLoader(t)
	_, err := execute(newRootCommand(load), "login", "--email", "student@example.com", "--password", "password123")
	require.NoError(t, err)

	_, err = execute(newRootCommand(load), "purchase", "--outcome", "unverified")
	require.Error(t, err)
}

func TestRestoreCommand(t *testing.T) {
	load := testLoader(t)
	_, err := execute(newRootCommand(load), "login", "--email", "student@example.com", "--password", "password123")
	require.NoError(t, err)

	out, err := execute(newRootCommand(load), "restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: trial")
}
