package backendclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

type trialStatusResponse struct {
	SubscriptionStatus  *string `json:"subscription_status"`
	SubscriptionEndDate string  `json:"subscription_end_date"`
}

// CheckTrialStatus запрашивает у бэкенда статус пробного периода.
// Любая ошибка (сеть, код ответа, разбор) возвращается вызывающему.
func (c *Client) CheckTrialStatus(ctx context.Context, token string) (*models.TrialStatus, error) {
	const op = "backendclient.CheckTrialStatus"
	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/subscription/trial-status", token, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: %w", op, parseError(resp))
	}

	var body trialStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	if body.SubscriptionStatus == nil {
		return nil, fmt.Errorf("%s: %w: missing subscription_status", op, ErrMalformedResponse)
	}
	end, err := parseTimestamp(body.SubscriptionEndDate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.TrialStatus{
		SubscriptionStatus:  *body.SubscriptionStatus,
		SubscriptionEndDate: end,
	}, nil
}

type syncRequest struct {
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	EndDate string `json:"end_date"`
}

// SyncSubscription отправляет согласованный статус подписки на бэкенд.
// Пустая дата окончания передаётся пустой строкой.
func (c *Client) SyncSubscription(ctx context.Context, r models.SyncRequest) error {
	const op = "backendclient.SyncSubscription"
	if r.Token == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}

	body := syncRequest{
		UserID:  r.UserID,
		Status:  string(r.Status),
		EndDate: formatTimestamp(r.EndDate),
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/subscription/sync", r.Token, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", op, parseError(resp))
	}
	return nil
}
