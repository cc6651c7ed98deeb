// Package storekit — адаптер платформы покупок: проверяет подпись транзакций
// магазина (JWS), превращает их в models.Transaction и отдаёт движку только
// то, чему можно доверять.
package storekit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// TransactionClaims — полезная нагрузка подписанной транзакции.
// Даты передаются в миллисекундах Unix, как это делает магазин приложений.
type TransactionClaims struct {
	TransactionID          string `json:"transactionId"`
	OriginalTransactionID  string `json:"originalTransactionId"`
	ProductID              string `json:"productId"`
	PurchaseDate           int64  `json:"purchaseDate"`
	ExpiresDate            int64  `json:"expiresDate,omitempty"`
	RevocationDate         int64  `json:"revocationDate,omitempty"`
	GracePeriodExpiresDate int64  `json:"gracePeriodExpiresDate,omitempty"`
	Environment            string `json:"environment,omitempty"`
	jwt.RegisteredClaims
}

// ClaimsFromTransaction строит полезную нагрузку из транзакции.
func ClaimsFromTransaction(tx models.Transaction) TransactionClaims {
	return TransactionClaims{
		TransactionID:          tx.ID,
		OriginalTransactionID:  tx.OriginalID,
		ProductID:              tx.ProductID,
		PurchaseDate:           toMillis(&tx.PurchaseDate),
		ExpiresDate:            toMillis(tx.ExpirationDate),
		RevocationDate:         toMillis(tx.RevocationDate),
		GracePeriodExpiresDate: toMillis(tx.GracePeriodExpiresDate),
	}
}

func (c TransactionClaims) transaction() models.Transaction {
	tx := models.Transaction{
		ID:                     c.TransactionID,
		OriginalID:             c.OriginalTransactionID,
		ProductID:              c.ProductID,
		ExpirationDate:         fromMillis(c.ExpiresDate),
		RevocationDate:         fromMillis(c.RevocationDate),
		GracePeriodExpiresDate: fromMillis(c.GracePeriodExpiresDate),
	}
	if p := fromMillis(c.PurchaseDate); p != nil {
		tx.PurchaseDate = *p
	}
	if tx.OriginalID == "" {
		tx.OriginalID = tx.ID
	}
	return tx
}

func toMillis(t *time.Time) int64 {
	if t == nil || t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
