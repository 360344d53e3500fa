package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Settlement struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"column:user_id;not null;index"`
	// ActiveUserID mirrors UserID while the settlement is non-terminal and is
	// NULL afterwards; the unique index allows one open settlement per user.
	ActiveUserID *int64 `gorm:"column:active_user_id;uniqueIndex:idx_settlements_active_user"`

	ExitDate        time.Time `gorm:"column:exit_date;type:date;not null"`
	ExitReason      string    `gorm:"column:exit_reason;not null"`
	LastWorkingDate time.Time `gorm:"column:last_working_date;type:date;not null"`

	DaysWorked                  int             `gorm:"column:days_worked;default:0"`
	DailySalary                 decimal.Decimal `gorm:"column:daily_salary;type:numeric(14,2);default:0"`
	FinalSalary                 decimal.Decimal `gorm:"column:final_salary;type:numeric(14,2);default:0"`
	EncashableLeaves            decimal.Decimal `gorm:"column:encashable_leaves;type:numeric(8,2);default:0"`
	LeaveEncashmentAmount       decimal.Decimal `gorm:"column:leave_encashment_amount;type:numeric(14,2);default:0"`
	ServiceYears                decimal.Decimal `gorm:"column:service_years;type:numeric(6,2);default:0"`
	GratuityAmount              decimal.Decimal `gorm:"column:gratuity_amount;type:numeric(14,2);default:0"`
	PendingExpenseReimbursement decimal.Decimal `gorm:"column:pending_expense_reimbursement;type:numeric(14,2);default:0"`
	UnsettledExpenseCredit      decimal.Decimal `gorm:"column:unsettled_expense_credit;type:numeric(14,2);default:0"`
	PendingFuelReimbursement    decimal.Decimal `gorm:"column:pending_fuel_reimbursement;type:numeric(14,2);default:0"`
	UnsettledFuelCredit         decimal.Decimal `gorm:"column:unsettled_fuel_credit;type:numeric(14,2);default:0"`
	PendingReimbursements       decimal.Decimal `gorm:"column:pending_reimbursements;type:numeric(14,2);default:0"`
	OtherAdditions              decimal.Decimal `gorm:"column:other_additions;type:numeric(14,2);default:0"`
	NoticePeriodDays            int             `gorm:"column:notice_period_days;default:0"`
	NoticePeriodRecovery        decimal.Decimal `gorm:"column:notice_period_recovery;type:numeric(14,2);default:0"`
	OtherDeductions             decimal.Decimal `gorm:"column:other_deductions;type:numeric(14,2);default:0"`
	TotalEarnings               decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);default:0"`
	TotalDeductions             decimal.Decimal `gorm:"column:total_deductions;type:numeric(14,2);default:0"`
	NetPayable                  decimal.Decimal `gorm:"column:net_payable;type:numeric(14,2);default:0"`

	AssetClearance   string `gorm:"column:asset_clearance;not null;default:PENDING"`
	VehicleClearance string `gorm:"column:vehicle_clearance;not null;default:PENDING"`
	CardClearance    string `gorm:"column:card_clearance;not null;default:PENDING"`

	Status       string     `gorm:"column:status;not null;default:INITIATED;index"`
	RulesVersion string     `gorm:"column:rules_version"`
	InitiatedBy  int64      `gorm:"column:initiated_by"`
	CalculatedBy *int64     `gorm:"column:calculated_by"`
	CalculatedAt *time.Time `gorm:"column:calculated_at"`
	ApprovedBy   *int64     `gorm:"column:approved_by"`
	ApprovedAt   *time.Time `gorm:"column:approved_at"`
	CompletedBy  *int64     `gorm:"column:completed_by"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CancelledBy  *int64     `gorm:"column:cancelled_by"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`

	RelievingLetterKey     *string `gorm:"column:relieving_letter_key"`
	ExperienceLetterKey    *string `gorm:"column:experience_letter_key"`
	SettlementStatementKey *string `gorm:"column:settlement_statement_key"`
	FinalPayslipKey        *string `gorm:"column:final_payslip_key"`

	Remarks   *string   `gorm:"column:remarks"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Settlement) TableName() string {
	return "settlements"
}
