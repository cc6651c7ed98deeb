package cache

import (
	"context"
	"time"

	"github.com/magabrotheeeer/homework-access/internal/models"
)

// Store описывает методы кеша, которые нужны адаптеру профиля.
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// DefaultProfileKey — ключ, под которым хранится профиль текущего пользователя.
const DefaultProfileKey = "profile:current"

// ProfileStore хранит снимок профиля пользователя в кеше без срока жизни:
// это последнее известное состояние для работы без сети.
type ProfileStore struct {
	store Store
	key   string
}

// NewProfileStore создаёт адаптер профиля поверх кеша.
func NewProfileStore(store Store, key string) *ProfileStore {
	if key == "" {
		key = DefaultProfileKey
	}
	return &ProfileStore{store: store, key: key}
}

// LoadProfile возвращает сохранённый профиль и признак его наличия.
func (p *ProfileStore) LoadProfile(ctx context.Context) (*models.UserProfile, bool, error) {
	var profile models.UserProfile
	found, err := p.store.Get(ctx, p.key, &profile)
	if err != nil || !found {
		return nil, false, err
	}
	return &profile, true, nil
}

// SaveProfile сохраняет профиль.
func (p *ProfileStore) SaveProfile(ctx context.Context, profile models.UserProfile) error {
	return p.store.Set(ctx, p.key, profile, 0)
}

// ClearProfile удаляет профиль.
func (p *ProfileStore) ClearProfile(ctx context.Context) error {
	return p.store.Invalidate(ctx, p.key)
}
