// Package days содержит арифметику календарных дней, которая используется
// при расчёте оставшихся дней пробного периода, подписки и grace-периода.
package days

import "time"

// Between возвращает количество календарных дней между from и to в часовом поясе loc.
// Обе даты усекаются до начала суток, дробные дни не учитываются.
// Если to раньше from, результат отрицательный.
func Between(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	// номера суток берём от календарной даты в UTC: переходы на летнее время не влияют
	return int(dayNumber(to.In(loc)) - dayNumber(from.In(loc)))
}

// Remaining возвращает неотрицательное количество календарных дней до to.
func Remaining(now, to time.Time, loc *time.Location) int {
	n := Between(now, to, loc)
	if n < 0 {
		return 0
	}
	return n
}

const secondsPerDay = 24 * 60 * 60

// dayNumber возвращает номер календарных суток даты t от начала эпохи Unix.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}
