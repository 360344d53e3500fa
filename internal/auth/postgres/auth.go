package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/hr-ops/internal/auth"
	employeeDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/employee"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetPasswordForUsername(ctx context.Context, email string) (string, int64, error) {
	var row employeeDatamodel.Employee
	err := r.db.WithContext(ctx).
		Select("id", "password_hash").
		Where("email = ? AND is_active = ?", email, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, auth.ErrUserNotFound
		}
		return "", 0, err
	}
	return row.PasswordHash, row.ID, nil
}

func (r *Repository) GetUserWithPermissions(ctx context.Context, userID int64) (*auth.User, error) {
	var row employeeDatamodel.Employee
	err := r.db.WithContext(ctx).
		Select("id", "email", "is_active").
		Where("id = ?", userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}

	var permissions []string
	err = r.db.WithContext(ctx).
		Table("permissions p").
		Joins("JOIN user_permissions up ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Order("p.name").
		Pluck("p.name", &permissions).Error
	if err != nil {
		return nil, err
	}

	return &auth.User{
		ID:          row.ID,
		Email:       row.Email,
		IsActive:    row.IsActive,
		Permissions: permissions,
	}, nil
}
