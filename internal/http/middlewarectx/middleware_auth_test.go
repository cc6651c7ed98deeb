package middlewarectx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

type AuthMock struct {
	mock.Mock
}

func (m *AuthMock) Authenticate(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type observerStub struct {
	outcomes []string
}

func (o *observerStub) ObserveValidation(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	user := &models.User{UUID: "uid-1", Email: "student@example.com"}

	tests := []struct {
		name           string
		authHeader     string
		mockUser       *models.User
		mockErr        error
		wantStatusCode int
		wantOutcome    string
		wantError      string
		wantReason     string
		wantNext       bool
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer good",
			mockUser:       user,
			wantStatusCode: http.StatusOK,
			wantOutcome:    "valid",
			wantNext:       true,
		},
		{
			name:           "missing header",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
			wantOutcome:    "unauthorized",
			wantError:      "missing or invalid authorization header",
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer good",
			mockErr:        fmt.Errorf("account.Authenticate: %w", account.ErrInvalidToken),
			wantStatusCode: http.StatusUnauthorized,
			wantOutcome:    "unauthorized",
			wantError:      "invalid or expired token",
		},
		{
			name:           "blocked account",
			authHeader:     "Bearer good",
			mockErr:        fmt.Errorf("account.Authenticate: %w", &account.BlockedError{Reason: "Terms violation"}),
			wantStatusCode: http.StatusForbidden,
			wantOutcome:    "blocked",
			wantError:      "account blocked",
			wantReason:     "Terms violation",
		},
		{
			name:           "deleted account",
			authHeader:     "Bearer good",
			mockErr:        fmt.Errorf("account.Authenticate: %w", account.ErrUserNotFound),
			wantStatusCode: http.StatusNotFound,
			wantOutcome:    "not_found",
			wantError:      "user not found",
		},
		{
			name:           "storage failure",
			authHeader:     "Bearer good",
			mockErr:        errors.New("db down"),
			wantStatusCode: http.StatusInternalServerError,
			wantOutcome:    "error",
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthMock)
			observer := &observerStub{}
			if tt.mockUser != nil || tt.mockErr != nil {
				authMock.On("Authenticate", mock.Anything, "good").Return(tt.mockUser, tt.mockErr).Once()
			}

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				got, ok := middlewarectx.UserFromContext(r.Context())
				require.True(t, ok)
				assert.Equal(t, "uid-1", got.UUID)
				w.WriteHeader(http.StatusOK)
			})
			handler := middlewarectx.JWTMiddleware(authMock, observer, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodPost, "/auth/validate", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			assert.Equal(t, tt.wantNext, nextCalled)
			assert.Equal(t, []string{tt.wantOutcome}, observer.outcomes)

			if tt.wantError != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
				if tt.wantReason != "" {
					assert.Equal(t, tt.wantReason, body["reason"])
				}
			}
			authMock.AssertExpectations(t)
		})
	}
}

func TestJWTMiddleware_NilObserver(t *testing.T) {
	handler := middlewarectx.JWTMiddleware(new(AuthMock), nil, newNoopLogger())(http.NotFoundHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUserFromContext_Missing(t *testing.T) {
	_, ok := middlewarectx.UserFromContext(context.Background())
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := middlewarectx.RateLimitMiddleware(newNoopLogger(), rate.Limit(0.001), 2)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
