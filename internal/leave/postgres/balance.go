package postgres

import (
	"context"
	"fmt"

	leaveDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/leave"
	"github.com/frahmantamala/hr-ops/internal/leave"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetBalances returns the balances of the given categories for year. A
// category without a row is simply absent.
func (r *BalanceRepository) GetBalances(ctx context.Context, userID int64, categories []string, year int) ([]settlement.LeaveBalance, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	var rows []leaveDatamodel.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND category IN ?", userID, year, categories).
		Order("category").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	balances := make([]settlement.LeaveBalance, len(rows))
	for i, row := range rows {
		balances[i] = settlement.LeaveBalance{
			Category:  row.Category,
			Allocated: row.Allocated,
			Consumed:  row.Consumed,
		}
	}
	return balances, nil
}

// Consume debits days from the balances in category order. It must run in
// the same transaction as the settlement completion.
func (r *BalanceRepository) Consume(ctx context.Context, userID int64, categories []string, year int, days decimal.Decimal) error {
	balances, err := r.GetBalances(ctx, userID, categories, year)
	if err != nil {
		return err
	}

	for _, debit := range leave.PlanConsumption(balances, categories, days) {
		res := r.db.WithContext(ctx).
			Model(&leaveDatamodel.Balance{}).
			Where("user_id = ? AND year = ? AND category = ?", userID, year, debit.Category).
			Update("consumed", gorm.Expr("consumed + ?", debit.Days))
		if res.Error != nil {
			return fmt.Errorf("consume %s leave: %w", debit.Category, res.Error)
		}
	}
	return nil
}
