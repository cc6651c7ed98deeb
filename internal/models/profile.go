package models

import (
	"time"

	"github.com/magabrotheeeer/homework-access/internal/lib/days"
)

// UserProfile — локально кешируемый профиль пользователя.
//
// Токен авторизации здесь не хранится: он живёт только в защищённом хранилище.
// Поля подписки — денормализованная, возможно устаревшая копия AccessState,
// которую обновляет только движок согласования.
type UserProfile struct {
	UserID              string     `json:"user_id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	SubscriptionStatus  string     `json:"subscription_status"`
	DaysRemaining       *int       `json:"days_remaining,omitempty"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Snapshot восстанавливает AccessState из сохранённой копии профиля.
// Используется как последнее известное состояние при запуске без сети.
// Если известна дата окончания, дни пересчитываются на момент now в поясе loc;
// Trial и GracePeriod без оставшихся дней дают Expired.
func (p UserProfile) Snapshot(now time.Time, loc *time.Location) AccessState {
	status := ParseAccessStatus(p.SubscriptionStatus)
	if status == StatusUnknown || status == StatusExpired {
		return AccessState{Status: status}
	}
	state := AccessState{Status: status}
	if p.DaysRemaining != nil {
		d := *p.DaysRemaining
		state.DaysRemaining = &d
	}
	if p.SubscriptionEndDate != nil {
		end := *p.SubscriptionEndDate
		state.RenewalOrExpiryDate = &end
		d := days.Between(now, end, loc)
		state.DaysRemaining = &d
	}

	if state.DaysRemaining != nil && *state.DaysRemaining <= 0 {
		if status != StatusActive {
			return ExpiredState()
		}
		zero := 0
		state.DaysRemaining = &zero
	}
	return state
}

// ApplyState переписывает поля подписки профиля из согласованного состояния.
func (p *UserProfile) ApplyState(state AccessState, now time.Time) {
	p.SubscriptionStatus = string(state.Status)
	p.DaysRemaining = nil
	p.SubscriptionEndDate = nil
	if state.DaysRemaining != nil {
		d := *state.DaysRemaining
		p.DaysRemaining = &d
	}
	if state.RenewalOrExpiryDate != nil {
		end := *state.RenewalOrExpiryDate
		p.SubscriptionEndDate = &end
	}
	p.UpdatedAt = now
}
