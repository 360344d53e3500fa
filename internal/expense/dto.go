package expense

import (
	"fmt"
	"time"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type CreateExpenseDTO struct {
	Kind            string          `json:"kind"`
	EntryType       string          `json:"entry_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	ExpenseDate     time.Time       `json:"expense_date"`
	ReceiptURL      *string         `json:"receipt_url,omitempty"`
	ReceiptFileName *string         `json:"receipt_filename,omitempty"`
}

func (dto CreateExpenseDTO) Validate(now time.Time) error {
	v := validation.NewValidator()
	if dto.Kind != "" {
		v.Field("kind", dto.Kind).OneOf(errors.ErrCodeValidationFailed, KindExpense, KindFuel)
	}
	if dto.EntryType != "" {
		v.Field("entry_type", dto.EntryType).OneOf(errors.ErrCodeValidationFailed, EntryTypeDebit, EntryTypeCredit)
	}
	v.Field("description", dto.Description).Required().MaxLength(500)
	v.Field("category", dto.Category).Required()
	v.Field("expense_date", dto.ExpenseDate).Required()
	if err := v.Validate(); err != nil {
		return err
	}

	if !dto.Amount.IsPositive() {
		return errors.NewValidationFieldError("amount", "amount must be greater than 0", errors.ErrCodeInvalidAmount)
	}
	if dto.ExpenseDate.After(now) {
		return errors.NewValidationFieldError("expense_date",
			fmt.Sprintf("expense date %s cannot be in the future", dto.ExpenseDate.Format(time.DateOnly)),
			errors.ErrCodeInvalidDate)
	}
	return nil
}

type RejectExpenseDTO struct {
	Reason string `json:"reason"`
}

func (dto RejectExpenseDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("reason", dto.Reason).Required().MaxLength(500)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

const (
	ExpenseStatusPendingApproval = "pending_approval"
	ExpenseStatusApproved        = "approved"
	ExpenseStatusRejected        = "rejected"
)

var (
	ErrExpenseNotFound      = errors.NewNotFoundError("expense not found", errors.ErrCodeExpenseNotFound)
	ErrUnauthorizedAccess   = errors.NewForbiddenError("unauthorized access to expense", errors.ErrCodeUnauthorizedAccess)
	ErrInvalidExpenseStatus = errors.NewValidationError("invalid expense status for this operation", errors.ErrCodeInvalidExpenseStatus)
)
