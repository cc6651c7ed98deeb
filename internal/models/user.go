package models

import "time"

// User представляет пользователя в хранилище бэкенда.
type User struct {
	UUID               string     // Уникальный идентификатор пользователя
	Email              string     // Электронная почта
	DisplayName        string     // Отображаемое имя
	PasswordHash       string     // Хэш пароля пользователя
	Blocked            bool       // Аккаунт заблокирован администратором
	BlockedReason      string     // Причина блокировки, показывается клиенту
	TrialEndDate       *time.Time // Дата истечения пробного периода
	SubscriptionExpire *time.Time // Дата истечения оплаченной подписки
	SubscriptionStatus string     // trial, active, grace_period или expired
	CreatedAt          time.Time
}

// SubscriptionEvent публикуется в RabbitMQ после синхронизации статуса подписки.
type SubscriptionEvent struct {
	UserUID  string     `json:"user_uid"`
	Status   string     `json:"status"`
	EndDate  *time.Time `json:"end_date,omitempty"`
	SyncedAt time.Time  `json:"synced_at"`
}
