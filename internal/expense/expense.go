package expense

import (
	"time"

	expenseDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

// Expense is one ledger entry. A debit is money the company owes the
// employee; a credit is an advance the employee owes back.
type Expense struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Kind            string          `json:"kind"`
	EntryType       string          `json:"entry_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	ReceiptURL      *string         `json:"receipt_url,omitempty"`
	ReceiptFileName *string         `json:"receipt_filename,omitempty"`
	ExpenseStatus   string          `json:"expense_status"`
	ExpenseDate     time.Time       `json:"expense_date"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	Settled         bool            `json:"settled"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
	SettlementID    *int64          `json:"settlement_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

const (
	KindExpense = "expense"
	KindFuel    = "fuel"

	EntryTypeDebit  = "debit"
	EntryTypeCredit = "credit"

	CategoryLeaveEncashment = "leave_encashment"
)

var AutoApprovalThreshold = decimal.NewFromInt(100000)

func (e *Expense) CanBeApproved() bool {
	return e.ExpenseStatus == ExpenseStatusPendingApproval && !e.Settled
}

func (e *Expense) CanBeRejected() bool {
	return e.ExpenseStatus == ExpenseStatusPendingApproval && !e.Settled
}

// ShouldBeAutoApproved applies to small debits only; credits are advances
// already paid out and are recorded approved.
func (e *Expense) ShouldBeAutoApproved() bool {
	return e.EntryType == EntryTypeCredit || e.Amount.LessThan(AutoApprovalThreshold)
}

func (e *Expense) Approve(at time.Time) {
	e.ExpenseStatus = ExpenseStatusApproved
	e.ProcessedAt = &at
	e.UpdatedAt = at
}

func (e *Expense) Reject(at time.Time) {
	e.ExpenseStatus = ExpenseStatusRejected
	e.ProcessedAt = &at
	e.UpdatedAt = at
}

func NewExpense(userID int64, dto CreateExpenseDTO, now time.Time) *Expense {
	kind := dto.Kind
	if kind == "" {
		kind = KindExpense
	}
	entryType := dto.EntryType
	if entryType == "" {
		entryType = EntryTypeDebit
	}

	expense := &Expense{
		UserID:          userID,
		Kind:            kind,
		EntryType:       entryType,
		Amount:          dto.Amount.Round(2),
		Description:     dto.Description,
		Category:        dto.Category,
		ReceiptURL:      dto.ReceiptURL,
		ReceiptFileName: dto.ReceiptFileName,
		ExpenseStatus:   ExpenseStatusPendingApproval,
		ExpenseDate:     dto.ExpenseDate,
		SubmittedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if expense.ShouldBeAutoApproved() {
		expense.Approve(now)
	}

	return expense
}

func ToDataModel(e *Expense) *expenseDatamodel.Expense {
	return &expenseDatamodel.Expense{
		ID:              e.ID,
		UserID:          e.UserID,
		Kind:            e.Kind,
		EntryType:       e.EntryType,
		Amount:          e.Amount,
		Description:     e.Description,
		Category:        e.Category,
		ReceiptURL:      e.ReceiptURL,
		ReceiptFileName: e.ReceiptFileName,
		ExpenseStatus:   e.ExpenseStatus,
		ExpenseDate:     e.ExpenseDate,
		SubmittedAt:     e.SubmittedAt,
		ProcessedAt:     e.ProcessedAt,
		Settled:         e.Settled,
		SettledAt:       e.SettledAt,
		SettlementID:    e.SettlementID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:              e.ID,
		UserID:          e.UserID,
		Kind:            e.Kind,
		EntryType:       e.EntryType,
		Amount:          e.Amount,
		Description:     e.Description,
		Category:        e.Category,
		ReceiptURL:      e.ReceiptURL,
		ReceiptFileName: e.ReceiptFileName,
		ExpenseStatus:   e.ExpenseStatus,
		ExpenseDate:     e.ExpenseDate,
		SubmittedAt:     e.SubmittedAt,
		ProcessedAt:     e.ProcessedAt,
		Settled:         e.Settled,
		SettledAt:       e.SettledAt,
		SettlementID:    e.SettlementID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func FromDataModelSlice(expenses []*expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(expenses))
	for i, e := range expenses {
		result[i] = FromDataModel(e)
	}
	return result
}
