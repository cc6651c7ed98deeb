package access

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/homework-access/internal/cache"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

const (
	testProductID = "com.homeworkhelper.premium.monthly"
	testToken     = "session-token"
	testUserID    = "3f2c7d1e-user"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ValidateSession(ctx context.Context, token string) models.SessionResult {
	return m.Called(ctx, token).Get(0).(models.SessionResult)
}

func (m *mockBackend) CheckTrialStatus(ctx context.Context, token string) (*models.TrialStatus, error) {
	args := m.Called(ctx, token)
	status, _ := args.Get(0).(*models.TrialStatus)
	return status, args.Error(1)
}

func (m *mockBackend) SyncSubscription(ctx context.Context, req models.SyncRequest) error {
	return m.Called(ctx, req).Error(0)
}

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) Products(ctx context.Context, ids []string) ([]models.Product, error) {
	args := m.Called(ctx, ids)
	products, _ := args.Get(0).([]models.Product)
	return products, args.Error(1)
}

func (m *mockPlatform) ListVerifiedEntitlements(ctx context.Context) ([]models.Transaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]models.Transaction)
	return txs, args.Error(1)
}

func (m *mockPlatform) Purchase(ctx context.Context, productID string) (models.PurchaseResult, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(models.PurchaseResult), args.Error(1)
}

func (m *mockPlatform) ListenForUpdates(ctx context.Context) (<-chan models.Transaction, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(<-chan models.Transaction)
	return ch, args.Error(1)
}

func (m *mockPlatform) Finish(ctx context.Context, tx models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockPlatform) SyncWithStore(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memorySecrets — защищённое хранилище в памяти.
type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySecrets() *memorySecrets {
	return &memorySecrets{values: make(map[string]string)}
}

func (s *memorySecrets) Save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memorySecrets) Load(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memorySecrets) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

type fixture struct {
	engine   *Engine
	backend  *mockBackend
	platform *mockPlatform
	secrets  *memorySecrets
	profiles *cache.ProfileStore

	clockMu sync.Mutex
	now     time.Time
}

func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(d)
}

type fixtureOpt func(*Options)

func withInterval(d time.Duration) fixtureOpt {
	return func(o *Options) { o.RevalidateInterval = d }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	f := &fixture{
		backend:  new(mockBackend),
		platform: new(mockPlatform),
		secrets:  newMemorySecrets(),
		profiles: cache.NewProfileStore(cache.NewMemory(), ""),
		now:      testNow,
	}
	o := Options{
		ProductID:   testProductID,
		SyncTimeout: time.Second,
		Location:    time.UTC,
		Now:         f.clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	f.engine = New(newNoopLogger(), f.secrets, f.profiles, f.backend, f.platform, o)
	t.Cleanup(f.engine.Close)
	return f
}

// seedSession записывает токен и профиль так, как их оставил бы прошлый запуск.
func (f *fixture) seedSession(t *testing.T, status string, end *time.Time, daysLeft *int) {
	t.Helper()
	require.NoError(t, f.secrets.Save(TokenKey, testToken))
	require.NoError(t, f.profiles.SaveProfile(context.Background(), models.UserProfile{
		UserID:              testUserID,
		Email:               "student@example.com",
		DisplayName:         "Student",
		SubscriptionStatus:  status,
		SubscriptionEndDate: end,
		DaysRemaining:       daysLeft,
	}))
}

// signIn выполняет вход; слушатель обновлений получает закрытый поток.
func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	f.expectNoUpdates()
	require.NoError(t, f.engine.SignIn(context.Background(), testToken, models.SessionUser{
		ID:          testUserID,
		Email:       "student@example.com",
		DisplayName: "Student",
	}))
}

func (f *fixture) expectNoUpdates() {
	closed := make(chan models.Transaction)
	close(closed)
	f.platform.On("ListenForUpdates", mock.Anything).Return((<-chan models.Transaction)(closed), nil).Maybe()
}

func (f *fixture) storedToken(t *testing.T) string {
	t.Helper()
	token, _, err := f.secrets.Load(TokenKey)
	require.NoError(t, err)
	return token
}

func (f *fixture) storedProfile(t *testing.T) (*models.UserProfile, bool) {
	t.Helper()
	profile, found, err := f.profiles.LoadProfile(context.Background())
	require.NoError(t, err)
	return profile, found
}
