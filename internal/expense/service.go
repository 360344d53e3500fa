package expense

import (
	"context"
	"log/slog"
	"time"
)

// Repository interface defines the data access methods for ledger entries
type Repository interface {
	Create(ctx context.Context, expense *Expense) error
	GetByID(ctx context.Context, id int64) (*Expense, error)
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Expense, error)
	GetAllExpenses(ctx context.Context, limit, offset int) ([]*Expense, error)
	UpdateStatus(ctx context.Context, id int64, status string, processedAt time.Time) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CreateExpense records a ledger entry; small debits and every credit are
// approved on the spot.
func (s *Service) CreateExpense(ctx context.Context, userID int64, dto CreateExpenseDTO) (*Expense, error) {
	now := s.now()
	if err := dto.Validate(now); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "user_id", userID)
		return nil, err
	}

	expense := NewExpense(userID, dto, now)
	if err := s.repo.Create(ctx, expense); err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("expense created successfully",
		"expense_id", expense.ID,
		"user_id", userID,
		"kind", expense.Kind,
		"entry_type", expense.EntryType,
		"amount", expense.Amount.StringFixed(2),
		"status", expense.ExpenseStatus)

	return expense, nil
}

func (s *Service) GetExpenseByID(ctx context.Context, id, userID int64, userPermissions []string) (*Expense, error) {
	expense, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get expense", "error", err, "expense_id", id)
		return nil, err
	}

	if expense.UserID != userID && !hasManagerPermissions(userPermissions) {
		s.logger.Warn("unauthorized access to expense", "expense_id", id, "user_id", userID, "expense_user_id", expense.UserID)
		return nil, ErrUnauthorizedAccess
	}

	return expense, nil
}

func (s *Service) GetUserExpenses(ctx context.Context, userID int64, limit, offset int) ([]*Expense, error) {
	expenses, err := s.repo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error("failed to get user expenses", "error", err, "user_id", userID)
		return nil, err
	}
	return expenses, nil
}

func (s *Service) GetAllExpenses(ctx context.Context, limit, offset int, userPermissions []string) ([]*Expense, error) {
	if !hasManagerPermissions(userPermissions) {
		s.logger.Warn("get all expenses denied: insufficient permissions", "permissions", userPermissions)
		return nil, ErrUnauthorizedAccess
	}

	expenses, err := s.repo.GetAllExpenses(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to get all expenses", "error", err)
		return nil, err
	}
	return expenses, nil
}

func (s *Service) ApproveExpense(ctx context.Context, expenseID, managerID int64, userPermissions []string) error {
	expense, err := s.pendingForDecision(ctx, "approve", expenseID, managerID, userPermissions)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, expenseID, ExpenseStatusApproved, s.now()); err != nil {
		s.logger.Error("failed to update expense status to approved", "error", err, "expense_id", expenseID)
		return err
	}

	s.logger.Info("expense approved successfully",
		"expense_id", expenseID,
		"manager_id", managerID,
		"amount", expense.Amount.StringFixed(2))
	return nil
}

func (s *Service) RejectExpense(ctx context.Context, expenseID, managerID int64, reason string, userPermissions []string) error {
	expense, err := s.pendingForDecision(ctx, "reject", expenseID, managerID, userPermissions)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, expenseID, ExpenseStatusRejected, s.now()); err != nil {
		s.logger.Error("failed to update expense status to rejected", "error", err, "expense_id", expenseID)
		return err
	}

	s.logger.Info("expense rejected successfully",
		"expense_id", expenseID,
		"manager_id", managerID,
		"reason", reason,
		"amount", expense.Amount.StringFixed(2))
	return nil
}

func (s *Service) pendingForDecision(ctx context.Context, op string, expenseID, managerID int64, userPermissions []string) (*Expense, error) {
	if !hasManagerPermissions(userPermissions) {
		s.logger.Warn(op+" expense denied: insufficient permissions",
			"expense_id", expenseID,
			"manager_id", managerID,
			"permissions", userPermissions)
		return nil, ErrUnauthorizedAccess
	}

	expense, err := s.repo.GetByID(ctx, expenseID)
	if err != nil {
		s.logger.Error("expense not found", "op", op, "error", err, "expense_id", expenseID)
		return nil, err
	}

	if !expense.CanBeApproved() {
		s.logger.Warn("cannot "+op+" expense in current status",
			"expense_id", expenseID,
			"current_status", expense.ExpenseStatus,
			"settled", expense.Settled)
		return nil, ErrInvalidExpenseStatus
	}
	return expense, nil
}

func hasManagerPermissions(userPermissions []string) bool {
	managerPerms := []string{"approve_expenses", "reject_expenses", "admin", "manager"}
	for _, requiredPerm := range managerPerms {
		for _, userPerm := range userPermissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}
