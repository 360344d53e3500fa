package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	ID        int64           `gorm:"primaryKey"`
	UserID    int64           `gorm:"column:user_id;not null;uniqueIndex:idx_leave_balances_user_category_year"`
	Category  string          `gorm:"column:category;not null;uniqueIndex:idx_leave_balances_user_category_year"`
	Year      int             `gorm:"column:year;not null;uniqueIndex:idx_leave_balances_user_category_year"`
	Allocated decimal.Decimal `gorm:"column:allocated;type:numeric(8,2);not null;default:0"`
	Consumed  decimal.Decimal `gorm:"column:consumed;type:numeric(8,2);not null;default:0"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Balance) TableName() string {
	return "leave_balances"
}
