package trialstatus

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/homework-access/internal/http/middlewarectx"
	"github.com/magabrotheeeer/homework-access/internal/models"
	"github.com/magabrotheeeer/homework-access/internal/services/account"
)

type entitlementStub struct {
	ent account.Entitlement
}

func (s entitlementStub) Entitlement(*models.User) account.Entitlement { return s.ent }

func TestTrialStatusHandler(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	end := time.Date(2025, 3, 12, 3, 0, 0, 0, msk)
	days := 2

	tests := []struct {
		name     string
		ent      account.Entitlement
		noUser   bool
		wantCode int
		wantBody string
	}{
		{
			name:     "trial",
			ent:      account.Entitlement{Status: models.StatusTrial, EndDate: &end, DaysRemaining: &days},
			wantCode: http.StatusOK,
			wantBody: `{"subscription_status":"trial","subscription_end_date":"2025-03-12T00:00:00Z"}`,
		},
		{
			name:     "expired",
			ent:      account.Entitlement{Status: models.StatusExpired},
			wantCode: http.StatusOK,
			wantBody: `{"subscription_status":"expired"}`,
		},
		{
			name:     "no user",
			noUser:   true,
			wantCode: http.StatusUnauthorized,
			wantBody: `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), entitlementStub{ent: tt.ent})
			req := httptest.NewRequest(http.MethodGet, "/subscription/trial-status", nil)
			if !tt.noUser {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{UUID: "uid-1"}))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.JSONEq(t, tt.wantBody, rr.Body.String())
		})
	}
}
