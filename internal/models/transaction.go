package models

import "time"

// VerificationResult — результат проверки подписи транзакции платформой.
type VerificationResult int

const (
	// Unverified — подпись не прошла проверку, транзакции доверять нельзя.
	Unverified VerificationResult = iota
	// Verified — подпись проверена.
	Verified
)

func (v VerificationResult) String() string {
	if v == Verified {
		return "verified"
	}
	return "unverified"
}

// Transaction — запись платформы покупок о приобретённой подписке.
//
// RevocationDate заполняется при возврате или отмене, GracePeriodExpiresDate —
// когда магазин продлил доступ на время повторного списания.
type Transaction struct {
	ID                     string
	OriginalID             string
	ProductID              string
	PurchaseDate           time.Time
	ExpirationDate         *time.Time
	RevocationDate         *time.Time
	GracePeriodExpiresDate *time.Time
	Verification           VerificationResult
	VerificationFailure    string
	Raw                    string // подписанное представление от магазина
}

// IsVerified сообщает, прошла ли транзакция проверку подписи.
func (t Transaction) IsVerified() bool {
	return t.Verification == Verified
}

// GraceDate возвращает дату, до которой сохраняется доступ после истечения:
// дату отзыва, а если её нет — конец grace-периода магазина.
func (t Transaction) GraceDate() *time.Time {
	if t.RevocationDate != nil {
		return t.RevocationDate
	}
	return t.GracePeriodExpiresDate
}

// Product — продукт подписки, загруженный из каталога платформы.
type Product struct {
	ID           string
	DisplayName  string
	DisplayPrice string
}

// PurchaseOutcome — итог покупки на стороне платформы.
type PurchaseOutcome int

const (
	// PurchaseSuccess — покупка завершена, в результате есть транзакция.
	PurchaseSuccess PurchaseOutcome = iota
	// PurchaseUserCancelled — пользователь отменил покупку.
	PurchaseUserCancelled
	// PurchasePending — покупка ждёт подтверждения (например, родительского).
	PurchasePending
)

func (o PurchaseOutcome) String() string {
	switch o {
	case PurchaseSuccess:
		return "success"
	case PurchaseUserCancelled:
		return "user_cancelled"
	case PurchasePending:
		return "pending"
	default:
		return "unknown"
	}
}

// PurchaseResult — результат вызова покупки у платформы.
// Transaction заполнена только при PurchaseSuccess.
type PurchaseResult struct {
	Outcome     PurchaseOutcome
	Transaction *Transaction
}
