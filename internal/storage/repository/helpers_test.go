package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/homework-access/internal/migrations"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// TestDataFactory создаёт тестовые данные напрямую в БД
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, email string, trialEnd *time.Time) string {
	t.Helper()
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (email, display_name, password_hash, trial_end_date)
		VALUES ($1, $2, $3, $4) RETURNING uid`,
		email, "Student", "hashedpassword", trialEnd).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// setupTestDatabase поднимает PostgreSQL в контейнере и накатывает миграции
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, connStr)
	require.NoError(t, err, "failed to create storage")
	t.Cleanup(func() { _ = storage.Close() })

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, path))
	require.NoError(t, storage.CheckDatabaseReady(ctx))

	return storage
}

func ptrTime(t time.Time) *time.Time { return &t }

func newUser(email string) models.User {
	trialEnd := time.Now().UTC().AddDate(0, 0, 7).Truncate(time.Second)
	return models.User{
		Email:              email,
		DisplayName:        "Student",
		PasswordHash:       "hashedpassword",
		TrialEndDate:       &trialEnd,
		SubscriptionStatus: "trial",
	}
}
