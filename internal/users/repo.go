package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail expects email already normalized.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, where string, arg any) (*models.User, error) {
	user := new(models.User)
	if err := r.db.WithContext(ctx).Where(where, arg).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// LinkPassword sets the password of an account created without one. It
// reports false when a password was already present.
func (r *Repository) LinkPassword(ctx context.Context, id uuid.UUID, hash string) (bool, error) {
	return r.setPasswordWhere(ctx, id, hash, "password_hash IS NULL OR password_hash = ''")
}

// ReplacePasswordHash is a compare-and-swap on the stored hash; false means
// it changed after the caller read it.
func (r *Repository) ReplacePasswordHash(ctx context.Context, id uuid.UUID, oldHash, newHash string) (bool, error) {
	return r.setPasswordWhere(ctx, id, newHash, "password_hash = ?", oldHash)
}

func (r *Repository) setPasswordWhere(ctx context.Context, id uuid.UUID, hash, cond string, args ...any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Where(cond, args...).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}
