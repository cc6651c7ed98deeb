package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// RecordSync добавляет запись в журнал синхронизаций статуса.
func (s *Storage) RecordSync(ctx context.Context, event models.SubscriptionEvent) error {
	const op = "storage.RecordSync"
	query := `INSERT INTO subscription_syncs (user_uid, status, end_date, synced_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query, event.UserUID, event.Status, event.EndDate, event.SyncedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListSyncs возвращает последние синхронизации пользователя, новые первыми.
func (s *Storage) ListSyncs(ctx context.Context, userUID string, limit int) ([]models.SubscriptionEvent, error) {
	const op = "storage.ListSyncs"
	query := `SELECT user_uid, status, end_date, synced_at
			  FROM subscription_syncs
			  WHERE user_uid = $1
			  ORDER BY synced_at DESC, id DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.SubscriptionEvent
	for rows.Next() {
		var e models.SubscriptionEvent
		var endDate sql.NullTime
		if err = rows.Scan(&e.UserUID, &e.Status, &endDate, &e.SyncedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if endDate.Valid {
			e.EndDate = &endDate.Time
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
