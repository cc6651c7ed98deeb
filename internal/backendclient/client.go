// Package backendclient — HTTP-клиент бэкенда подписок: проверка сессии,
// статус пробного периода, синхронизация статуса подписки и вход.
//
// Проверка сессии возвращает размеченный результат (models.SessionResult), а не
// ошибку: вызывающему важно отличать явный отказ сервера от сетевого сбоя.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse — ответ получен, но в нём нет ожидаемых полей.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrInvalidCredentials — неверная почта или пароль при входе.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmptyToken — запрос требует токен, но он пуст.
	ErrEmptyToken = errors.New("empty auth token")
)

const (
	defaultTimeout    = 15 * time.Second
	maxErrorBodyBytes = 64 * 1024
)

// HTTPError — ответ бэкенда с кодом вне диапазона 2xx.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// Client — клиент бэкенда подписок.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        *slog.Logger
}

// OptFunc настраивает Client.
type OptFunc func(*Client)

// WithHTTPClient подменяет HTTP-клиент (например, в тестах).
func WithHTTPClient(httpClient *http.Client) OptFunc {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout задаёт таймаут запросов.
func WithTimeout(timeout time.Duration) OptFunc {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(log *slog.Logger) OptFunc {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithUserAgent задаёт заголовок User-Agent.
func WithUserAgent(userAgent string) OptFunc {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// New создаёт клиент для базового адреса API, например http://host/api/v1.
func New(baseURL string, opts ...OptFunc) (*Client, error) {
	const op = "backendclient.New"
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: unsupported scheme %q", op, u.Scheme)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "homework-access",
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL возвращает базовый адрес API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// readErrorMessage достаёт текст ошибки из тела ответа: reason, error или message.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil {
		switch {
		case parsed.Reason != "":
			return parsed.Reason
		case parsed.Error != "":
			return parsed.Error
		case parsed.Message != "":
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func parseError(resp *http.Response) error {
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    readErrorMessage(resp.Body),
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
}
