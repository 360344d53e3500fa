package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

type Expense struct {
	ID              int64           `gorm:"primaryKey"`
	UserID          int64           `gorm:"column:user_id;not null;index"`
	Kind            string          `gorm:"column:kind;not null;default:expense"`
	EntryType       string          `gorm:"column:entry_type;not null;default:debit"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Description     string          `gorm:"not null"`
	Category        string          `gorm:"column:category"`
	ReceiptURL      *string         `gorm:"column:receipt_url"`
	ReceiptFileName *string         `gorm:"column:receipt_filename"`
	ExpenseStatus   string          `gorm:"column:expense_status;default:pending_approval"`
	ExpenseDate     time.Time       `gorm:"column:expense_date;type:date"`
	SubmittedAt     time.Time       `gorm:"column:submitted_at"`
	ProcessedAt     *time.Time      `gorm:"column:processed_at"`
	Settled         bool            `gorm:"column:settled;default:false"`
	SettledAt       *time.Time      `gorm:"column:settled_at"`
	SettlementID    *int64          `gorm:"column:settlement_id"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Expense) TableName() string {
	return "expenses"
}
