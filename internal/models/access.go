// Package models содержит доменные структуры, общие для клиента и бэкенда:
// согласованное состояние доступа, кешируемый профиль пользователя,
// транзакции платформы покупок и результаты проверки сессии.
package models

import (
	"strings"
	"time"
)

// AccessStatus — статус доступа пользователя к платным функциям.
// В любой момент времени действует ровно один статус.
type AccessStatus string

const (
	// StatusUnknown — состояние ещё не согласовано (или пользователь вышел).
	StatusUnknown AccessStatus = "unknown"
	// StatusTrial — действует пробный период, выданный бэкендом.
	StatusTrial AccessStatus = "trial"
	// StatusActive — есть действующая оплаченная подписка.
	StatusActive AccessStatus = "active"
	// StatusGracePeriod — подписка истекла, но доступ сохраняется до повторного списания.
	StatusGracePeriod AccessStatus = "grace_period"
	// StatusExpired — доступа нет.
	StatusExpired AccessStatus = "expired"
)

// GrantsAccess сообщает, даёт ли статус доступ к платным функциям.
func (s AccessStatus) GrantsAccess() bool {
	switch s {
	case StatusTrial, StatusActive, StatusGracePeriod:
		return true
	default:
		return false
	}
}

// ParseAccessStatus разбирает статус, пришедший от бэкенда.
// Незнакомые значения превращаются в StatusUnknown.
func ParseAccessStatus(raw string) AccessStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trial":
		return StatusTrial
	case "active":
		return StatusActive
	case "grace_period", "grace", "graceperiod":
		return StatusGracePeriod
	case "expired":
		return StatusExpired
	default:
		return StatusUnknown
	}
}

// AccessState — согласованное, авторитетное представление доступа.
//
// RenewalOrExpiryDate зависит от статуса: для Active это дата продления,
// для Trial и GracePeriod — дата, от которой считаются оставшиеся дни,
// для Expired и Unknown поле пустое.
// DaysRemaining никогда не бывает отрицательным и пусто, когда неприменимо.
type AccessState struct {
	Status              AccessStatus `json:"status"`
	RenewalOrExpiryDate *time.Time   `json:"renewal_or_expiry_date,omitempty"`
	DaysRemaining       *int         `json:"days_remaining,omitempty"`
}

// UnknownState возвращает начальное состояние.
func UnknownState() AccessState {
	return AccessState{Status: StatusUnknown}
}

// ExpiredState возвращает состояние без доступа.
func ExpiredState() AccessState {
	return AccessState{Status: StatusExpired}
}

// HasAccess истинно тогда и только тогда, когда статус Trial, Active или GracePeriod.
func (a AccessState) HasAccess() bool {
	return a.Status.GrantsAccess()
}

// Equal сравнивает два состояния по значению.
func (a AccessState) Equal(b AccessState) bool {
	if a.Status != b.Status {
		return false
	}
	if !equalTimePtr(a.RenewalOrExpiryDate, b.RenewalOrExpiryDate) {
		return false
	}
	switch {
	case a.DaysRemaining == nil && b.DaysRemaining == nil:
		return true
	case a.DaysRemaining == nil || b.DaysRemaining == nil:
		return false
	default:
		return *a.DaysRemaining == *b.DaysRemaining
	}
}

func equalTimePtr(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}
