package postgres

import (
	"context"
	"errors"
	"time"

	employeeDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/employee"
	"github.com/frahmantamala/hr-ops/internal/employee"
	"gorm.io/gorm"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	var row employeeDatamodel.Employee
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employee.ErrNotFound
		}
		return nil, err
	}
	return employee.FromDataModel(&row), nil
}

func (r *EmployeeRepository) GetPermissions(ctx context.Context, id int64) ([]string, error) {
	var permissions []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Joins("JOIN user_permissions up ON p.id = up.permission_id").
		Where("up.user_id = ?", id).
		Order("p.name").
		Pluck("p.name", &permissions).Error
	if err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *EmployeeRepository) SetExitFields(ctx context.Context, id int64, exit employee.ExitFields) error {
	reason := exit.ExitReason
	return r.update(ctx, id, map[string]interface{}{
		"exit_date":            exit.ExitDate,
		"exit_reason":          &reason,
		"last_working_date":    exit.LastWorkingDate,
		"notice_period_waived": exit.NoticePeriodWaived,
	})
}

func (r *EmployeeRepository) ClearExitFields(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"exit_date":            nil,
		"exit_reason":          nil,
		"last_working_date":    nil,
		"notice_period_waived": false,
	})
}

func (r *EmployeeRepository) Archive(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_active":   false,
		"archived_at": at,
	})
}

// Reinstate makes an archived employee active again.
func (r *EmployeeRepository) Reinstate(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"is_active":   true,
		"archived_at": nil,
	})
}

func (r *EmployeeRepository) update(ctx context.Context, id int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&employeeDatamodel.Employee{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return employee.ErrNotFound
	}
	return nil
}
