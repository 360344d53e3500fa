package settlement

import (
	"fmt"
	"net/http"
	"strings"

	errors "github.com/frahmantamala/hr-ops/internal"
)

var (
	ErrSettlementNotFound         = errors.NewNotFoundError("settlement not found", errors.ErrCodeSettlementNotFound)
	ErrEmployeeNotFound           = errors.NewNotFoundError("employee not found", errors.ErrCodeEmployeeNotFound)
	ErrAlreadyHasActiveSettlement = errors.NewConflictError("employee already has an active settlement", errors.ErrCodeActiveSettlementExists)
	ErrInvalidDateOrdering        = errors.NewValidationError("last working date cannot be after exit date", errors.ErrCodeInvalidDateOrdering)
	ErrInvalidStateTransition     = errors.NewConflictError("invalid settlement state transition", errors.ErrCodeInvalidStateTransition)
	ErrNotCalculated              = errors.NewConflictError("settlement must be calculated before approval", errors.ErrCodeNotCalculated)
	ErrClearancePending           = errors.NewConflictError("clearance is pending", errors.ErrCodeClearancePending)
	ErrAlreadyCompleted           = errors.NewConflictError("settlement is already completed", errors.ErrCodeAlreadyCompleted)
	ErrAlreadyCancelled           = errors.NewConflictError("settlement is already cancelled", errors.ErrCodeAlreadyCancelled)
	ErrUpdateInInvalidStatus      = errors.NewConflictError("settlement cannot be updated in its current status", errors.ErrCodeUpdateInInvalidStatus)
	ErrNoSalarySource             = errors.NewValidationError("no salary source found for employee", errors.ErrCodeNoSalarySource)
	ErrRulesNotConfigured         = errors.NewUnavailableError("settlement rules are not configured", errors.ErrCodeRulesNotConfigured)
	ErrNoticeWaiverNotAllowed     = errors.NewValidationError("notice period waiver is not allowed by the current rules", errors.ErrCodeNoticeWaiverNotAllowed)
	ErrUnauthorizedAccess         = errors.NewForbiddenError("unauthorized access to settlement", errors.ErrCodeUnauthorizedAccess)
	ErrLedgerChanged              = errors.NewConflictError("ledger changed since calculation, recalculate the settlement", errors.ErrCodeLedgerChanged)
	ErrDocumentGeneration         = &errors.AppError{
		Type:       errors.ErrorTypeExternal,
		Code:       errors.ErrCodeDocumentGenerationFailure,
		Message:    "document generation failed",
		StatusCode: http.StatusBadGateway,
	}
)

type TransitionDetails struct {
	Current Status `json:"current"`
	Target  Status `json:"target"`
}

type ClearancePendingDetails struct {
	Domains []Domain `json:"domains"`
}

func newInvalidTransitionError(current, target Status) *errors.AppError {
	return ErrInvalidStateTransition.
		WithMessage(fmt.Sprintf("cannot move settlement from %s to %s", current, target)).
		WithDetails(TransitionDetails{Current: current, Target: target})
}

// alreadyTerminalError keeps the transition error as its cause so callers can
// match either the terminal kind or the generic transition kind.
func alreadyTerminalError(current, target Status) *errors.AppError {
	base := ErrAlreadyCompleted
	if current == StatusCancelled {
		base = ErrAlreadyCancelled
	}
	return base.
		WithMessage(fmt.Sprintf("settlement is already %s, cannot move to %s", strings.ToLower(string(current)), target)).
		WithDetails(TransitionDetails{Current: current, Target: target}).
		WithCause(newInvalidTransitionError(current, target))
}

func newClearancePendingError(domains []Domain) *errors.AppError {
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}
	return ErrClearancePending.
		WithMessage(fmt.Sprintf("clearance pending for: %s", strings.Join(names, ", "))).
		WithDetails(ClearancePendingDetails{Domains: domains})
}

func newUpdateInInvalidStatusError(op string, current Status) *errors.AppError {
	return ErrUpdateInInvalidStatus.
		WithMessage(fmt.Sprintf("cannot %s a settlement in status %s", op, current)).
		WithDetails(map[string]string{"status": string(current), "operation": op})
}

func newNoSalarySourceError(userID int64) *errors.AppError {
	return ErrNoSalarySource.WithMessage(fmt.Sprintf("no salary source found for employee %d", userID))
}

type LedgerChangedDetails struct {
	Kind       LedgerKind      `json:"kind"`
	Calculated *LedgerPosition `json:"calculated"`
	Current    *LedgerPosition `json:"current"`
}

func newLedgerChangedError(settlementID int64, kind LedgerKind, calculated, current *LedgerPosition) *errors.AppError {
	return ErrLedgerChanged.
		WithMessage(fmt.Sprintf("%s ledger of settlement %d changed since calculation, recalculate before completing", kind, settlementID)).
		WithDetails(LedgerChangedDetails{Kind: kind, Calculated: calculated, Current: current})
}

func newUpstreamError(source string, cause error) *errors.AppError {
	return errors.NewUpstreamError(fmt.Sprintf("%s failed", source), cause)
}
