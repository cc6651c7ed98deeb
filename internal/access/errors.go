package access

import "errors"

var (
	// ErrFailedVerification — транзакция покупки не прошла проверку подписи.
	// Такая транзакция не применяется к состоянию и не подтверждается.
	ErrFailedVerification = errors.New("purchase failed verification")
	// ErrProductUnavailable — магазин не вернул поддерживаемый продукт.
	ErrProductUnavailable = errors.New("subscription product is unavailable")
	// ErrProductMismatch — магазин вернул транзакцию другого продукта.
	ErrProductMismatch = errors.New("purchase returned a different product")
	// ErrNotAuthenticated — операция требует входа.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Сообщения для пользователя.
const (
	MessageProductNotLoaded   = "Subscription is not available yet. Please try again later."
	MessagePurchasePending    = "Your purchase is pending approval."
	MessageFailedVerification = "We could not verify your purchase."
	MessagePurchaseFailed     = "Purchase failed. Please try again."
	MessagePurchaseExpired    = "This subscription has already expired."
	MessageRestoreFailed      = "Could not restore purchases. Please try again."
	MessageSessionExpired     = "Your session has expired. Please sign in again."
	MessageAccountBlocked     = "Your account has been blocked."
	MessageAccountNotFound    = "Your account no longer exists."
)
