package access

import (
	"time"

	"github.com/magabrotheeeer/homework-access/internal/lib/days"
	"github.com/magabrotheeeer/homework-access/internal/models"
)

// HasAccess истинно для Trial, Active и GracePeriod.
func HasAccess(state models.AccessState) bool {
	return state.HasAccess()
}

// DaysRemaining возвращает оставшиеся дни: сохранённое значение для Trial и
// GracePeriod, дни до даты продления для Active, nil для Expired и Unknown.
func DaysRemaining(state models.AccessState, now time.Time, loc *time.Location) *int {
	switch state.Status {
	case models.StatusTrial, models.StatusGracePeriod:
		if state.DaysRemaining == nil {
			return nil
		}
		d := max(*state.DaysRemaining, 0)
		return &d
	case models.StatusActive:
		if state.RenewalOrExpiryDate == nil {
			return nil
		}
		d := days.Remaining(now, *state.RenewalOrExpiryDate, loc)
		return &d
	default:
		return nil
	}
}

// HasAccess — запрос к текущему состоянию без ввода-вывода.
func (e *Engine) HasAccess() bool {
	return HasAccess(e.State())
}

// DaysRemaining — запрос к текущему состоянию без ввода-вывода.
func (e *Engine) DaysRemaining() *int {
	return DaysRemaining(e.State(), e.now(), e.loc)
}

// syncPush — статус, который нужно отправить на бэкенд после согласования.
type syncPush struct {
	status  models.AccessStatus
	endDate *time.Time
}

// resolveEntitlement выводит состояние из проверенной транзакции.
// Второе значение — статус для отправки на бэкенд, nil если отправлять нечего.
func resolveEntitlement(tx models.Transaction, now time.Time, loc *time.Location) (models.AccessState, *syncPush) {
	if tx.ExpirationDate == nil {
		return models.ExpiredState(), nil
	}
	expiration := *tx.ExpirationDate

	if expiration.After(now) {
		d := days.Remaining(now, expiration, loc)
		return models.AccessState{
			Status:              models.StatusActive,
			RenewalOrExpiryDate: &expiration,
			DaysRemaining:       &d,
		}, &syncPush{status: models.StatusActive, endDate: &expiration}
	}

	if grace := tx.GraceDate(); grace != nil && grace.After(now) {
		if d := days.Remaining(now, *grace, loc); d > 0 {
			graceEnd := *grace
			return models.AccessState{
				Status:              models.StatusGracePeriod,
				RenewalOrExpiryDate: &graceEnd,
				DaysRemaining:       &d,
			}, nil
		}
	}
	return models.ExpiredState(), &syncPush{status: models.StatusExpired}
}

// resolveTrial выводит состояние из ответа бэкенда о пробном периоде.
// Trial получается только при статусе trial и положительном числе дней.
func resolveTrial(status *models.TrialStatus, now time.Time, loc *time.Location) models.AccessState {
	if status == nil || status.SubscriptionEndDate == nil {
		return models.ExpiredState()
	}
	if models.ParseAccessStatus(status.SubscriptionStatus) != models.StatusTrial {
		return models.ExpiredState()
	}
	end := *status.SubscriptionEndDate
	d := days.Between(now, end, loc)
	if d <= 0 {
		return models.ExpiredState()
	}
	return models.AccessState{
		Status:              models.StatusTrial,
		RenewalOrExpiryDate: &end,
		DaysRemaining:       &d,
	}
}

// selectEntitlement выбирает проверенную транзакцию нужного продукта с самой
// поздней датой истечения. Пустой productID подходит к любому продукту.
func selectEntitlement(txs []models.Transaction, productID string) *models.Transaction {
	var best *models.Transaction
	for i := range txs {
		tx := &txs[i]
		if !tx.IsVerified() {
			continue
		}
		if productID != "" && tx.ProductID != productID {
			continue
		}
		if best == nil || laterExpiration(tx, best) {
			best = tx
		}
	}
	return best
}

func laterExpiration(a, b *models.Transaction) bool {
	switch {
	case a.ExpirationDate == nil:
		return false
	case b.ExpirationDate == nil:
		return true
	default:
		return a.ExpirationDate.After(*b.ExpirationDate)
	}
}
