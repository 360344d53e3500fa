package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalaryStructure struct {
	ID                int64           `gorm:"primaryKey"`
	UserID            int64           `gorm:"column:user_id;not null;index"`
	MonthlyGross      decimal.Decimal `gorm:"column:monthly_gross;type:numeric(14,2);not null"`
	MonthlyDeductions decimal.Decimal `gorm:"column:monthly_deductions;type:numeric(14,2);not null;default:0"`
	EffectiveFrom     time.Time       `gorm:"column:effective_from;type:date;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (SalaryStructure) TableName() string {
	return "salary_structures"
}

type AttendanceRecord struct {
	ID     int64     `gorm:"primaryKey"`
	UserID int64     `gorm:"column:user_id;not null;index"`
	Date   time.Time `gorm:"column:date;type:date;not null"`
	Status string    `gorm:"column:status;not null"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
