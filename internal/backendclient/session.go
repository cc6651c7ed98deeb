package backendclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/homework-access/internal/lib/sl"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

type wireUser struct {
	ID                  string `json:"id"`
	Email               string `json:"email"`
	DisplayName         string `json:"displayName"`
	SubscriptionStatus  string `json:"subscriptionStatus"`
	DaysRemaining       *int   `json:"daysRemaining"`
	SubscriptionEndDate string `json:"subscriptionEndDate"`
}

func (w wireUser) toModel() (*models.SessionUser, error) {
	end, err := parseTimestamp(w.SubscriptionEndDate)
	if err != nil {
		return nil, err
	}
	return &models.SessionUser{
		ID:                  w.ID,
		Email:               w.Email,
		DisplayName:         w.DisplayName,
		SubscriptionStatus:  w.SubscriptionStatus,
		DaysRemaining:       w.DaysRemaining,
		SubscriptionEndDate: end,
	}, nil
}

type validateResponse struct {
	Valid *bool     `json:"valid"`
	User  *wireUser `json:"user"`
}

// ValidateSession проверяет токен на бэкенде и возвращает размеченный результат:
// 200 valid=true — SessionValid, 200 valid=false — SessionRejected,
// 401/403/404 — SessionUnauthorized/SessionBlocked/SessionNotFound,
// прочие коды — SessionServerError, отсутствие ответа — SessionNetworkError,
// нераспознанное тело — SessionMalformed.
func (c *Client) ValidateSession(ctx context.Context, token string) models.SessionResult {
	const op = "backendclient.ValidateSession"
	log := c.log.With(slog.String("op", op))

	if token == "" {
		return models.SessionResult{Outcome: models.SessionUnauthorized, Err: ErrEmptyToken}
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/validate", token, nil)
	if err != nil {
		return models.SessionResult{Outcome: models.SessionNetworkError, Err: fmt.Errorf("%s: %w", op, err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("session validation request failed", sl.Err(err))
		return models.SessionResult{Outcome: models.SessionNetworkError, Err: fmt.Errorf("%s: %w", op, err)}
	}
	defer drain(resp)

	result := models.SessionResult{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		result.Outcome = models.SessionUnauthorized
		result.Reason = readErrorMessage(resp.Body)
		return result
	case http.StatusForbidden:
		result.Outcome = models.SessionBlocked
		result.Reason = readErrorMessage(resp.Body)
		return result
	case http.StatusNotFound:
		result.Outcome = models.SessionNotFound
		result.Reason = readErrorMessage(resp.Body)
		return result
	default:
		result.Outcome = models.SessionServerError
		result.Err = fmt.Errorf("%s: %w", op, parseError(resp))
		return result
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			result.Outcome = models.SessionNetworkError
			result.Err = fmt.Errorf("%s: %w", op, ctx.Err())
			return result
		}
		result.Outcome = models.SessionMalformed
		result.Err = fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
		return result
	}
	if body.Valid == nil {
		result.Outcome = models.SessionMalformed
		result.Err = fmt.Errorf("%s: %w: missing valid field", op, ErrMalformedResponse)
		return result
	}
	if !*body.Valid {
		result.Outcome = models.SessionRejected
		return result
	}
	if body.User == nil {
		result.Outcome = models.SessionMalformed
		result.Err = fmt.Errorf("%s: %w: missing user", op, ErrMalformedResponse)
		return result
	}
	user, err := body.User.toModel()
	if err != nil {
		result.Outcome = models.SessionMalformed
		result.Err = fmt.Errorf("%s: %w", op, err)
		return result
	}

	result.Outcome = models.SessionValid
	result.User = user
	return result
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  *wireUser `json:"user"`
}

// Login выполняет вход и возвращает токен сессии и данные пользователя.
func (c *Client) Login(ctx context.Context, email, password string) (string, *models.SessionUser, error) {
	const op = "backendclient.Login"

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("%s: %w", op, parseError(resp))
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}
	if body.Token == "" || body.User == nil {
		return "", nil, fmt.Errorf("%s: %w: missing token or user", op, ErrMalformedResponse)
	}
	user, err := body.User.toModel()
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return body.Token, user, nil
}

// IsHTTPStatus сообщает, является ли err ответом бэкенда с указанным кодом.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
