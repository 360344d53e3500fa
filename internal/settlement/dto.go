package settlement

import (
	"fmt"
	"strings"
	"time"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const maxRemarksLength = 1000

type InitiateDTO struct {
	EmployeeID         int64     `json:"employee_id"`
	ExitDate           time.Time `json:"exit_date"`
	ExitReason         string    `json:"exit_reason"`
	LastWorkingDate    time.Time `json:"last_working_date"`
	NoticePeriodWaived bool      `json:"notice_period_waived"`
	Remarks            *string   `json:"remarks,omitempty"`
}

func (dto InitiateDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("employee_id", dto.EmployeeID).Required().PositiveID()
	v.Field("exit_date", dto.ExitDate).Required()
	v.Field("last_working_date", dto.LastWorkingDate).Required()
	v.Field("exit_reason", strings.ToUpper(dto.ExitReason)).Required().
		OneOf(errors.ErrCodeInvalidExitReason, exitReasonNames()...)
	v.Field("remarks", dto.Remarks).MaxLength(maxRemarksLength)
	if err := v.Validate(); err != nil {
		return err
	}

	if dateOnly(dto.LastWorkingDate).After(dateOnly(dto.ExitDate)) {
		return ErrInvalidDateOrdering.WithMessage(fmt.Sprintf(
			"last working date %s cannot be after exit date %s",
			dto.LastWorkingDate.Format(time.DateOnly), dto.ExitDate.Format(time.DateOnly)))
	}
	return nil
}

// UpdateDTO carries manual overrides. Nil fields keep their stored value.
type UpdateDTO struct {
	PendingReimbursements *decimal.Decimal `json:"pending_reimbursements,omitempty"`
	OtherAdditions        *decimal.Decimal `json:"other_additions,omitempty"`
	OtherDeductions       *decimal.Decimal `json:"other_deductions,omitempty"`
	Remarks               *string          `json:"remarks,omitempty"`
}

func (dto UpdateDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("pending_reimbursements", dto.PendingReimbursements).NonNegative()
	v.Field("other_additions", dto.OtherAdditions).NonNegative()
	v.Field("other_deductions", dto.OtherDeductions).NonNegative()
	v.Field("remarks", dto.Remarks).MaxLength(maxRemarksLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto UpdateDTO) apply(a *Amounts) {
	if dto.PendingReimbursements != nil {
		a.PendingReimbursements = round2(*dto.PendingReimbursements)
	}
	if dto.OtherAdditions != nil {
		a.OtherAdditions = round2(*dto.OtherAdditions)
	}
	if dto.OtherDeductions != nil {
		a.OtherDeductions = round2(*dto.OtherDeductions)
	}
	a.RecomputeTotals()
}

// ClearanceUpdateDTO sets domain statuses by hand. Nil fields are unchanged.
type ClearanceUpdateDTO struct {
	AssetClearance   *string `json:"asset_clearance,omitempty"`
	VehicleClearance *string `json:"vehicle_clearance,omitempty"`
	CardClearance    *string `json:"card_clearance,omitempty"`
	Remarks          *string `json:"remarks,omitempty"`
}

func (dto ClearanceUpdateDTO) updates() map[Domain]*string {
	return map[Domain]*string{
		DomainAssets:   dto.AssetClearance,
		DomainVehicles: dto.VehicleClearance,
		DomainCards:    dto.CardClearance,
	}
}

func (dto ClearanceUpdateDTO) Validate() error {
	allowed := []string{string(ClearancePending), string(ClearanceCleared), string(ClearanceNotApplicable)}

	v := validation.NewValidator()
	for _, d := range Domains {
		status := dto.updates()[d]
		if status == nil {
			continue
		}
		v.Field(strings.ToLower(string(d)), strings.ToUpper(*status)).
			OneOf(errors.ErrCodeInvalidClearanceStatus, allowed...)
	}
	v.Field("remarks", dto.Remarks).MaxLength(maxRemarksLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CancelDTO struct {
	Remarks *string `json:"remarks,omitempty"`
}

func (dto CancelDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("remarks", dto.Remarks).MaxLength(maxRemarksLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
