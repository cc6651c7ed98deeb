package syncstatus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Sync(ctx context.Context, caller *models.User, in account.SyncInput) error {
	return m.Called(ctx, caller, in).Error(0)
}

type observerStub struct {
	statuses []string
}

func (o *observerStub) ObserveSync(status string) { o.statuses = append(o.statuses, status) }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSyncHandler(t *testing.T) {
	caller := &models.User{UUID: "uid-1"}
	end := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		wantInput      *account.SyncInput
		mockErr        error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "active with end date",
			body:           `{"user_id":"uid-1","status":"active","end_date":"2025-04-10T12:00:00Z"}`,
			wantInput:      &account.SyncInput{UserID: "uid-1", Status: "active", EndDate: &end},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "expired with empty end date",
			body:           `{"user_id":"uid-1","status":"expired","end_date":""}`,
			wantInput:      &account.SyncInput{UserID: "uid-1", Status: "expired"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "unknown status",
			body:           `{"user_id":"uid-1","status":"lifetime"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Status must be one of: active expired grace_period",
		},
		{
			name:           "bad date",
			body:           `{"user_id":"uid-1","status":"active","end_date":"10.04.2025"}`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "end_date must be RFC3339",
		},
		{
			name:           "invalid json",
			body:           `[`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "another user",
			body:           `{"user_id":"uid-2","status":"expired"}`,
			wantInput:      &account.SyncInput{UserID: "uid-2", Status: "expired"},
			mockErr:        fmt.Errorf("account.Sync: %w", account.ErrForbidden),
			wantStatusCode: http.StatusForbidden,
			wantError:      "cannot sync another user",
		},
		{
			name:           "deleted user",
			body:           `{"user_id":"uid-1","status":"expired"}`,
			wantInput:      &account.SyncInput{UserID: "uid-1", Status: "expired"},
			mockErr:        fmt.Errorf("account.Sync: %w", account.ErrUserNotFound),
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name:           "storage failure",
			body:           `{"user_id":"uid-1","status":"expired"}`,
			wantInput:      &account.SyncInput{UserID: "uid-1", Status: "expired"},
			mockErr:        errors.New("db down"),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			observer := &observerStub{}
			if tt.wantInput != nil {
				svc.On("Sync", mock.Anything, caller, mock.MatchedBy(func(in account.SyncInput) bool {
					if in.UserID != tt.wantInput.UserID || in.Status != tt.wantInput.Status {
						return false
					}
					if tt.wantInput.EndDate == nil {
						return in.EndDate == nil
					}
					return in.EndDate != nil && in.EndDate.Equal(*tt.wantInput.EndDate)
				})).Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/subscription/sync", bytes.NewBufferString(tt.body))
			req = req.WithContext(middlewarectx.WithUser(req.Context(), caller))
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc, observer).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp["error"])
				assert.Empty(t, observer.statuses)
			} else {
				assert.Equal(t, "OK", resp["status"])
				assert.Equal(t, []string{tt.wantInput.Status}, observer.statuses)
			}
			svc.AssertExpectations(t)
		})
	}
}
