package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

const userColumns = `uid, email, display_name, password_hash, blocked, blocked_reason,
			      trial_end_date, subscription_status, subscription_expiry, created_at`

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, display_name, password_hash, trial_end_date, subscription_status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.DisplayName, user.PasswordHash, user.TrialEndDate,
		user.SubscriptionStatus).Scan(&newID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := s.scanUser(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := s.scanUser(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *Storage) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	u := &models.User{}
	var trialEndDate, subscriptionExpiry sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(&u.UUID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.Blocked, &u.BlockedReason, &trialEndDate, &u.SubscriptionStatus, &subscriptionExpiry, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		// некорректный UUID означает, что такого пользователя нет
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if trialEndDate.Valid {
		u.TrialEndDate = &trialEndDate.Time
	}
	if subscriptionExpiry.Valid {
		u.SubscriptionExpire = &subscriptionExpiry.Time
	}
	return u, nil
}

// UpdateSubscription записывает согласованный клиентом статус подписки и дату окончания.
func (s *Storage) UpdateSubscription(ctx context.Context, userUID, status string, expiry *time.Time) error {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
		      SET subscription_status = $1,
			      subscription_expiry = $2
			  WHERE uid = $3`
	res, err := s.DB.ExecContext(ctx, query, status, expiry, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// SetBlocked блокирует или разблокирует пользователя. reason показывается клиенту.
func (s *Storage) SetBlocked(ctx context.Context, userUID string, blocked bool, reason string) error {
	const op = "storage.SetBlocked"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET blocked = $1, blocked_reason = $2
		      WHERE uid = $3`
	res, err := s.DB.ExecContext(ctx, query, blocked, reason, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с журналом синхронизаций.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
