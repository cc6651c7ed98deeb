// Package response содержит вспомогательные типы и функции для формирования
// JSON-ответов HTTP-обработчиков бэкенда: единый формат успеха и ошибки,
// тексты ошибок валидации и представление пользователя для клиента.
package response

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// Response описывает стандартную структуру JSON-ответа сервера.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — ответ с ошибкой. Reason заполняется для заблокированных аккаунтов.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ответ с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// Blocked возвращает ответ для заблокированного аккаунта с причиной от администратора.
func Blocked(reason string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  "account blocked",
		Reason: reason,
	}
}

// ValidationError формирует ответ на основе ошибок валидации.
// Каждое нарушение формируется в человеко-читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too short", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// User — пользователь в ответах входа и проверки сессии.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"displayName"`
	SubscriptionStatus  string     `json:"subscriptionStatus"`
	DaysRemaining       *int       `json:"daysRemaining,omitempty"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
}

// NewUser собирает представление пользователя с вычисленным статусом подписки.
func NewUser(u *models.User, status models.AccessStatus, endDate *time.Time, daysRemaining *int) User {
	var end *time.Time
	if endDate != nil {
		e := endDate.UTC()
		end = &e
	}
	return User{
		ID:                  u.UUID,
		Email:               u.Email,
		DisplayName:         u.DisplayName,
		SubscriptionStatus:  string(status),
		DaysRemaining:       daysRemaining,
		SubscriptionEndDate: end,
	}
}
