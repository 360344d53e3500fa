package postgres

import (
	"context"
	"errors"
	"time"

	payrollDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/payroll"
	"github.com/frahmantamala/hr-ops/internal/payroll"
	"gorm.io/gorm"
)

type PayrollRepository struct {
	db *gorm.DB
}

func NewPayrollRepository(db *gorm.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

func (r *PayrollRepository) EffectiveStructure(ctx context.Context, userID int64, asOf time.Time) (*payroll.SalaryStructure, error) {
	var row payrollDatamodel.SalaryStructure
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND effective_from <= ?", userID, asOf).
		Order("effective_from DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payroll.ErrNoSalaryStructure
		}
		return nil, err
	}
	return payroll.FromDataModel(&row), nil
}

func (r *PayrollRepository) CountLossOfPayDays(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&payrollDatamodel.AttendanceRecord{}).
		Where("user_id = ? AND status = ? AND date >= ? AND date <= ?", userID, payroll.AttendanceLossOfPay, from, to).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
