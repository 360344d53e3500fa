package postgres

import (
	"context"

	employeePostgres "github.com/frahmantamala/hr-ops/internal/employee/postgres"
	expensePostgres "github.com/frahmantamala/hr-ops/internal/expense/postgres"
	leavePostgres "github.com/frahmantamala/hr-ops/internal/leave/postgres"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"gorm.io/gorm"
)

// UnitOfWork binds the settlement, employee, ledger and leave repositories to
// one gorm transaction.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, repos settlement.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, reposFor(tx))
	})
}

func (u *UnitOfWork) Repos() settlement.Repos {
	return reposFor(u.db)
}

func reposFor(db *gorm.DB) settlement.Repos {
	return settlement.Repos{
		Settlements: NewSettlementRepository(db),
		Employees:   employeePostgres.NewEmployeeRepository(db),
		Ledger:      expensePostgres.NewExpenseRepository(db),
		Leaves:      leavePostgres.NewBalanceRepository(db),
	}
}
