package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	expenseDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/expense"
	"github.com/frahmantamala/hr-ops/internal/expense"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseRepository stores expense and fuel ledger entries. Besides the
// expense.Repository contract it is the ledger provider and writer used by
// the settlement engine.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, exp *expense.Expense) error {
	row := expense.ToDataModel(exp)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	exp.ID = row.ID
	exp.CreatedAt = row.CreatedAt
	exp.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expense.Expense, error) {
	var row expenseDatamodel.Expense
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, expense.ErrExpenseNotFound.WithMessage(fmt.Sprintf("expense %d not found", id))
		}
		return nil, err
	}
	return expense.FromDataModel(&row), nil
}

func (r *ExpenseRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*expense.Expense, error) {
	var rows []*expenseDatamodel.Expense
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return expense.FromDataModelSlice(rows), nil
}

func (r *ExpenseRepository) GetAllExpenses(ctx context.Context, limit, offset int) ([]*expense.Expense, error) {
	var rows []*expenseDatamodel.Expense
	err := r.db.WithContext(ctx).
		Order("submitted_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return expense.FromDataModelSlice(rows), nil
}

func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id int64, status string, processedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"expense_status": status,
			"processed_at":   processedAt,
			"updated_at":     processedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return expense.ErrExpenseNotFound.WithMessage(fmt.Sprintf("expense %d not found", id))
	}
	return nil
}

// outstanding selects the entries a settlement absorbs as of asOf: debits
// approved by then that the company has not paid yet and advances raised by
// then that the employee has not returned.
func (r *ExpenseRepository) outstanding(ctx context.Context, userID int64, kind settlement.LedgerKind, asOf time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Where("user_id = ? AND kind = ? AND settled = ?", userID, string(kind), false).
		Where(
			r.db.Where("entry_type = ? AND expense_status = ? AND COALESCE(processed_at, submitted_at) <= ?",
				expense.EntryTypeDebit, expense.ExpenseStatusApproved, asOf).
				Or("entry_type = ? AND expense_status <> ? AND submitted_at <= ?",
					expense.EntryTypeCredit, expense.ExpenseStatusRejected, asOf),
		)
}

func (r *ExpenseRepository) GetPendingAndUnsettled(ctx context.Context, userID int64, kind settlement.LedgerKind, asOf time.Time) (*settlement.LedgerPosition, error) {
	var rows []*expenseDatamodel.Expense
	if err := r.outstanding(ctx, userID, kind, asOf).Find(&rows).Error; err != nil {
		return nil, err
	}

	pos := &settlement.LedgerPosition{
		PendingDebitsTotal:    decimal.Zero,
		UnsettledCreditsTotal: decimal.Zero,
		Count:                 len(rows),
	}
	for _, row := range rows {
		switch row.EntryType {
		case expense.EntryTypeDebit:
			pos.PendingDebitsTotal = pos.PendingDebitsTotal.Add(row.Amount)
		case expense.EntryTypeCredit:
			pos.UnsettledCreditsTotal = pos.UnsettledCreditsTotal.Add(row.Amount)
		}
	}
	return pos, nil
}

// SettleOutstanding marks the entries of kind that were outstanding at asOf
// as absorbed by the settlement and returns how many were touched. Entries
// approved or raised later stay open.
func (r *ExpenseRepository) SettleOutstanding(ctx context.Context, userID, settlementID int64, kind settlement.LedgerKind, asOf, at time.Time) (int64, error) {
	res := r.outstanding(ctx, userID, kind, asOf).Updates(map[string]interface{}{
		"settled":       true,
		"settled_at":    at,
		"settlement_id": settlementID,
		"updated_at":    at,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RecordLeaveEncashment books the encashment as an already-settled debit so
// it shows in the employee's ledger without being picked up again.
func (r *ExpenseRepository) RecordLeaveEncashment(ctx context.Context, userID, settlementID int64, amount decimal.Decimal, at time.Time) error {
	row := &expenseDatamodel.Expense{
		UserID:        userID,
		Kind:          expense.KindExpense,
		EntryType:     expense.EntryTypeDebit,
		Amount:        amount.Round(2),
		Description:   fmt.Sprintf("Leave encashment for settlement %d", settlementID),
		Category:      expense.CategoryLeaveEncashment,
		ExpenseStatus: expense.ExpenseStatusApproved,
		ExpenseDate:   at,
		SubmittedAt:   at,
		ProcessedAt:   &at,
		Settled:       true,
		SettledAt:     &at,
		SettlementID:  &settlementID,
	}
	return r.db.WithContext(ctx).Create(row).Error
}
