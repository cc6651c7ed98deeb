// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель — упростить формирование структурированных полей лога,
// например, для передачи информации об ошибках и замаскированных идентификаторов.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
// Удобно использовать в логировании для единообразного вывода ошибок.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Mask возвращает slog.Attr, в котором видны только первые 8 символов значения.
// Используется для идентификаторов пользователей и транзакций.
func Mask(key, value string) slog.Attr {
	return slog.String(key, MaskString(value))
}

// MaskString маскирует строку для логов (первые 8 символов + ***).
func MaskString(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:8] + "***"
}
