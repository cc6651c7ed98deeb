package models

import "time"

// SessionOutcome — размеченный результат проверки сессии на бэкенде.
type SessionOutcome int

const (
	// SessionValid — HTTP 200, valid=true и есть данные пользователя.
	SessionValid SessionOutcome = iota
	// SessionRejected — HTTP 200, но valid=false.
	SessionRejected
	// SessionUnauthorized — HTTP 401, токен истёк или недействителен.
	SessionUnauthorized
	// SessionBlocked — HTTP 403, аккаунт заблокирован.
	SessionBlocked
	// SessionNotFound — HTTP 404, аккаунт удалён.
	SessionNotFound
	// SessionServerError — любой другой HTTP статус.
	SessionServerError
	// SessionNetworkError — ответ не получен.
	SessionNetworkError
	// SessionMalformed — ответ получен, но тело не разобрано.
	SessionMalformed
)

func (o SessionOutcome) String() string {
	switch o {
	case SessionValid:
		return "valid"
	case SessionRejected:
		return "rejected"
	case SessionUnauthorized:
		return "unauthorized"
	case SessionBlocked:
		return "blocked"
	case SessionNotFound:
		return "not_found"
	case SessionServerError:
		return "server_error"
	case SessionNetworkError:
		return "network_error"
	case SessionMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Deauthorizes сообщает, является ли результат явным отказом сервера,
// после которого локальную сессию нужно завершить.
func (o SessionOutcome) Deauthorizes() bool {
	switch o {
	case SessionRejected, SessionUnauthorized, SessionBlocked, SessionNotFound:
		return true
	default:
		return false
	}
}

// SessionUser — данные пользователя из ответа проверки сессии.
type SessionUser struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"displayName"`
	SubscriptionStatus  string     `json:"subscriptionStatus"`
	DaysRemaining       *int       `json:"daysRemaining,omitempty"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate,omitempty"`
}

// SessionResult — результат ValidateSession.
// Reason содержит текст причины от сервера (для 403), Err — исходную ошибку.
type SessionResult struct {
	Outcome    SessionOutcome
	StatusCode int
	User       *SessionUser
	Reason     string
	Err        error
}

// MergeInto переносит поля из ответа сервера в кешируемый профиль.
// Пустые идентификационные поля не затирают существующие.
func (u SessionUser) MergeInto(p *UserProfile, now time.Time) {
	if u.ID != "" {
		p.UserID = u.ID
	}
	if u.Email != "" {
		p.Email = u.Email
	}
	if u.DisplayName != "" {
		p.DisplayName = u.DisplayName
	}
	p.SubscriptionStatus = u.SubscriptionStatus
	p.DaysRemaining = nil
	if u.DaysRemaining != nil {
		d := *u.DaysRemaining
		if d < 0 {
			d = 0
		}
		p.DaysRemaining = &d
	}
	p.SubscriptionEndDate = nil
	if u.SubscriptionEndDate != nil {
		end := *u.SubscriptionEndDate
		p.SubscriptionEndDate = &end
	}
	p.UpdatedAt = now
}

// Profile строит новый профиль из данных пользователя (при входе).
func (u SessionUser) Profile(now time.Time) UserProfile {
	var p UserProfile
	u.MergeInto(&p, now)
	return p
}

// TrialStatus — ответ бэкенда о пробном периоде.
type TrialStatus struct {
	SubscriptionStatus  string
	SubscriptionEndDate *time.Time
}

// SyncRequest — данные для отправки согласованного статуса на бэкенд.
// EndDate пустой, если дата неприменима.
type SyncRequest struct {
	UserID  string
	Token   string
	Status  AccessStatus
	EndDate *time.Time
}
