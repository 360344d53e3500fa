package settlement

import (
	"time"

	settlementDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/settlement"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusInitiated          Status = "INITIATED"
	StatusCalculated         Status = "CALCULATED"
	StatusPendingClearance   Status = "PENDING_CLEARANCE"
	StatusApproved           Status = "APPROVED"
	StatusDocumentsGenerated Status = "DOCUMENTS_GENERATED"
	StatusCompleted          Status = "COMPLETED"
	StatusCancelled          Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ClearanceStatus string

const (
	ClearancePending       ClearanceStatus = "PENDING"
	ClearanceCleared       ClearanceStatus = "CLEARED"
	ClearanceNotApplicable ClearanceStatus = "NOT_APPLICABLE"
)

func (c ClearanceStatus) Valid() bool {
	switch c {
	case ClearancePending, ClearanceCleared, ClearanceNotApplicable:
		return true
	}
	return false
}

// Done reports whether the domain no longer holds up approval.
func (c ClearanceStatus) Done() bool {
	return c == ClearanceCleared || c == ClearanceNotApplicable
}

type ExitReason string

const (
	ExitReasonResignation ExitReason = "RESIGNATION"
	ExitReasonTermination ExitReason = "TERMINATION"
	ExitReasonRetirement  ExitReason = "RETIREMENT"
	ExitReasonContractEnd ExitReason = "CONTRACT_END"
	ExitReasonLayoff      ExitReason = "LAYOFF"
	ExitReasonDeath       ExitReason = "DEATH"
	ExitReasonOther       ExitReason = "OTHER"
)

var exitReasons = []ExitReason{
	ExitReasonResignation,
	ExitReasonTermination,
	ExitReasonRetirement,
	ExitReasonContractEnd,
	ExitReasonLayoff,
	ExitReasonDeath,
	ExitReasonOther,
}

func (r ExitReason) Valid() bool {
	for _, known := range exitReasons {
		if r == known {
			return true
		}
	}
	return false
}

func exitReasonNames() []string {
	names := make([]string, len(exitReasons))
	for i, r := range exitReasons {
		names[i] = string(r)
	}
	return names
}

// Amounts is the computed money breakdown of a settlement. Every decimal is
// held at two places.
type Amounts struct {
	DaysWorked                  int             `json:"days_worked"`
	DailySalary                 decimal.Decimal `json:"daily_salary"`
	FinalSalary                 decimal.Decimal `json:"final_salary"`
	EncashableLeaves            decimal.Decimal `json:"encashable_leaves"`
	LeaveEncashmentAmount       decimal.Decimal `json:"leave_encashment_amount"`
	ServiceYears                decimal.Decimal `json:"service_years"`
	GratuityAmount              decimal.Decimal `json:"gratuity_amount"`
	PendingExpenseReimbursement decimal.Decimal `json:"pending_expense_reimbursement"`
	UnsettledExpenseCredit      decimal.Decimal `json:"unsettled_expense_credit"`
	PendingFuelReimbursement    decimal.Decimal `json:"pending_fuel_reimbursement"`
	UnsettledFuelCredit         decimal.Decimal `json:"unsettled_fuel_credit"`
	PendingReimbursements       decimal.Decimal `json:"pending_reimbursements"`
	OtherAdditions              decimal.Decimal `json:"other_additions"`
	NoticePeriodDays            int             `json:"notice_period_days"`
	NoticePeriodRecovery        decimal.Decimal `json:"notice_period_recovery"`
	OtherDeductions             decimal.Decimal `json:"other_deductions"`
	TotalEarnings               decimal.Decimal `json:"total_earnings"`
	TotalDeductions             decimal.Decimal `json:"total_deductions"`
	NetPayable                  decimal.Decimal `json:"net_payable"`
}

// RecomputeTotals derives TotalEarnings, TotalDeductions and NetPayable from
// the component fields. NetPayable may be negative when the employee owes.
func (a *Amounts) RecomputeTotals() {
	a.TotalEarnings = round2(a.FinalSalary.
		Add(a.LeaveEncashmentAmount).
		Add(a.GratuityAmount).
		Add(a.PendingExpenseReimbursement).
		Add(a.PendingFuelReimbursement).
		Add(a.PendingReimbursements).
		Add(a.OtherAdditions))
	a.TotalDeductions = round2(a.NoticePeriodRecovery.
		Add(a.UnsettledExpenseCredit).
		Add(a.UnsettledFuelCredit).
		Add(a.OtherDeductions))
	a.NetPayable = round2(a.TotalEarnings.Sub(a.TotalDeductions))
}

type DocumentKeys struct {
	RelievingLetter     *string `json:"relieving_letter,omitempty"`
	ExperienceLetter    *string `json:"experience_letter,omitempty"`
	SettlementStatement *string `json:"settlement_statement,omitempty"`
	FinalPayslip        *string `json:"final_payslip,omitempty"`
}

type Settlement struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	ExitDate        time.Time  `json:"exit_date"`
	ExitReason      ExitReason `json:"exit_reason"`
	LastWorkingDate time.Time  `json:"last_working_date"`

	Amounts

	AssetClearance   ClearanceStatus `json:"asset_clearance"`
	VehicleClearance ClearanceStatus `json:"vehicle_clearance"`
	CardClearance    ClearanceStatus `json:"card_clearance"`

	Status       Status     `json:"status"`
	RulesVersion string     `json:"rules_version,omitempty"`
	InitiatedBy  int64      `json:"initiated_by"`
	CalculatedBy *int64     `json:"calculated_by,omitempty"`
	CalculatedAt *time.Time `json:"calculated_at,omitempty"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CompletedBy  *int64     `json:"completed_by,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledBy  *int64     `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	Documents DocumentKeys `json:"documents"`
	Remarks   *string      `json:"remarks,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (s *Settlement) Clearance(d Domain) ClearanceStatus {
	switch d {
	case DomainAssets:
		return s.AssetClearance
	case DomainVehicles:
		return s.VehicleClearance
	case DomainCards:
		return s.CardClearance
	}
	return ""
}

func (s *Settlement) SetClearance(d Domain, status ClearanceStatus) {
	switch d {
	case DomainAssets:
		s.AssetClearance = status
	case DomainVehicles:
		s.VehicleClearance = status
	case DomainCards:
		s.CardClearance = status
	}
}

// HasBeenCalculated reports whether the engine has populated the amounts at
// least once.
func (s *Settlement) HasBeenCalculated() bool {
	return s.CalculatedAt != nil
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ToDataModel(s *Settlement) *settlementDatamodel.Settlement {
	m := &settlementDatamodel.Settlement{
		ID:                          s.ID,
		UserID:                      s.UserID,
		ExitDate:                    s.ExitDate,
		ExitReason:                  string(s.ExitReason),
		LastWorkingDate:             s.LastWorkingDate,
		DaysWorked:                  s.DaysWorked,
		DailySalary:                 s.DailySalary,
		FinalSalary:                 s.FinalSalary,
		EncashableLeaves:            s.EncashableLeaves,
		LeaveEncashmentAmount:       s.LeaveEncashmentAmount,
		ServiceYears:                s.ServiceYears,
		GratuityAmount:              s.GratuityAmount,
		PendingExpenseReimbursement: s.PendingExpenseReimbursement,
		UnsettledExpenseCredit:      s.UnsettledExpenseCredit,
		PendingFuelReimbursement:    s.PendingFuelReimbursement,
		UnsettledFuelCredit:         s.UnsettledFuelCredit,
		PendingReimbursements:       s.PendingReimbursements,
		OtherAdditions:              s.OtherAdditions,
		NoticePeriodDays:            s.NoticePeriodDays,
		NoticePeriodRecovery:        s.NoticePeriodRecovery,
		OtherDeductions:             s.OtherDeductions,
		TotalEarnings:               s.TotalEarnings,
		TotalDeductions:             s.TotalDeductions,
		NetPayable:                  s.NetPayable,
		AssetClearance:              string(s.AssetClearance),
		VehicleClearance:            string(s.VehicleClearance),
		CardClearance:               string(s.CardClearance),
		Status:                      string(s.Status),
		RulesVersion:                s.RulesVersion,
		InitiatedBy:                 s.InitiatedBy,
		CalculatedBy:                s.CalculatedBy,
		CalculatedAt:                s.CalculatedAt,
		ApprovedBy:                  s.ApprovedBy,
		ApprovedAt:                  s.ApprovedAt,
		CompletedBy:                 s.CompletedBy,
		CompletedAt:                 s.CompletedAt,
		CancelledBy:                 s.CancelledBy,
		CancelledAt:                 s.CancelledAt,
		RelievingLetterKey:          s.Documents.RelievingLetter,
		ExperienceLetterKey:         s.Documents.ExperienceLetter,
		SettlementStatementKey:      s.Documents.SettlementStatement,
		FinalPayslipKey:             s.Documents.FinalPayslip,
		Remarks:                     s.Remarks,
		CreatedAt:                   s.CreatedAt,
		UpdatedAt:                   s.UpdatedAt,
	}
	if !s.Status.IsTerminal() {
		userID := s.UserID
		m.ActiveUserID = &userID
	}
	return m
}

func FromDataModel(m *settlementDatamodel.Settlement) *Settlement {
	return &Settlement{
		ID:              m.ID,
		UserID:          m.UserID,
		ExitDate:        m.ExitDate,
		ExitReason:      ExitReason(m.ExitReason),
		LastWorkingDate: m.LastWorkingDate,
		Amounts: Amounts{
			DaysWorked:                  m.DaysWorked,
			DailySalary:                 m.DailySalary,
			FinalSalary:                 m.FinalSalary,
			EncashableLeaves:            m.EncashableLeaves,
			LeaveEncashmentAmount:       m.LeaveEncashmentAmount,
			ServiceYears:                m.ServiceYears,
			GratuityAmount:              m.GratuityAmount,
			PendingExpenseReimbursement: m.PendingExpenseReimbursement,
			UnsettledExpenseCredit:      m.UnsettledExpenseCredit,
			PendingFuelReimbursement:    m.PendingFuelReimbursement,
			UnsettledFuelCredit:         m.UnsettledFuelCredit,
			PendingReimbursements:       m.PendingReimbursements,
			OtherAdditions:              m.OtherAdditions,
			NoticePeriodDays:            m.NoticePeriodDays,
			NoticePeriodRecovery:        m.NoticePeriodRecovery,
			OtherDeductions:             m.OtherDeductions,
			TotalEarnings:               m.TotalEarnings,
			TotalDeductions:             m.TotalDeductions,
			NetPayable:                  m.NetPayable,
		},
		AssetClearance:   ClearanceStatus(m.AssetClearance),
		VehicleClearance: ClearanceStatus(m.VehicleClearance),
		CardClearance:    ClearanceStatus(m.CardClearance),
		Status:           Status(m.Status),
		RulesVersion:     m.RulesVersion,
		InitiatedBy:      m.InitiatedBy,
		CalculatedBy:     m.CalculatedBy,
		CalculatedAt:     m.CalculatedAt,
		ApprovedBy:       m.ApprovedBy,
		ApprovedAt:       m.ApprovedAt,
		CompletedBy:      m.CompletedBy,
		CompletedAt:      m.CompletedAt,
		CancelledBy:      m.CancelledBy,
		CancelledAt:      m.CancelledAt,
		Documents: DocumentKeys{
			RelievingLetter:     m.RelievingLetterKey,
			ExperienceLetter:    m.ExperienceLetterKey,
			SettlementStatement: m.SettlementStatementKey,
			FinalPayslip:        m.FinalPayslipKey,
		},
		Remarks:   m.Remarks,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*settlementDatamodel.Settlement) []*Settlement {
	result := make([]*Settlement, len(rows))
	for i, r := range rows {
		result[i] = FromDataModel(r)
	}
	return result
}
