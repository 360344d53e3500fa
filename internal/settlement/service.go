package settlement

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/core/events"
	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/frahmantamala/hr-ops/internal/employee"
	"github.com/shopspring/decimal"
)

const (
	PermissionManageSettlements  = "manage_settlements"
	PermissionApproveSettlements = "approve_settlements"
	PermissionAdmin              = "admin"
)

// Actor is the authenticated caller of a settlement operation.
type Actor struct {
	UserID      int64
	Permissions []string
}

func (a Actor) hasAny(perms ...string) bool {
	for _, have := range a.Permissions {
		if have == PermissionAdmin {
			return true
		}
		for _, want := range perms {
			if have == want {
				return true
			}
		}
	}
	return false
}

func (a Actor) canManage() bool  { return a.hasAny(PermissionManageSettlements) }
func (a Actor) canApprove() bool { return a.hasAny(PermissionApproveSettlements) }

func (a Actor) canRead(ownerID int64) bool {
	return a.UserID == ownerID || a.hasAny(PermissionManageSettlements, PermissionApproveSettlements)
}

// Repository returns ErrSettlementNotFound for unknown ids and
// ErrAlreadyHasActiveSettlement when Create hits the one-open-settlement
// constraint.
type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	GetByID(ctx context.Context, id int64) (*Settlement, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Settlement, error)
	// GetActiveByUserID returns nil, nil when the user has no open settlement.
	GetActiveByUserID(ctx context.Context, userID int64) (*Settlement, error)
	ListByUserID(ctx context.Context, userID int64) ([]*Settlement, error)
	Update(ctx context.Context, s *Settlement) error
}

type EmployeeRepository interface {
	GetByID(ctx context.Context, id int64) (*employee.Employee, error)
	SetExitFields(ctx context.Context, id int64, exit employee.ExitFields) error
	ClearExitFields(ctx context.Context, id int64) error
	Archive(ctx context.Context, id int64, at time.Time) error
	// Reinstate reverses Archive.
	Reinstate(ctx context.Context, id int64) error
}

// LedgerWriter settles exactly the entries a position read with the same asOf
// would count.
type LedgerWriter interface {
	ExpenseLedgerProvider
	RecordLeaveEncashment(ctx context.Context, userID, settlementID int64, amount decimal.Decimal, at time.Time) error
	SettleOutstanding(ctx context.Context, userID, settlementID int64, kind LedgerKind, asOf, at time.Time) (int64, error)
}

type LeaveBalanceWriter interface {
	Consume(ctx context.Context, userID int64, categories []string, year int, days decimal.Decimal) error
}

type Repos struct {
	Settlements Repository
	Employees   EmployeeRepository
	Ledger      LedgerWriter
	Leaves      LeaveBalanceWriter
}

// UnitOfWork runs fn inside one transaction; every repository in the Repos
// passed to fn shares it. Repos returns repositories bound to no transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
	Repos() Repos
}

type DocumentGenerator interface {
	RenderAll(ctx context.Context, s *Settlement, emp *employee.Employee, docs rules.Documents) (DocumentKeys, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Dependencies struct {
	UnitOfWork UnitOfWork
	Rules      rules.Provider
	Engine     *CalculationEngine
	Clearance  *ClearanceChecker
	Documents  DocumentGenerator
	Events     EventPublisher
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	uow       UnitOfWork
	rules     rules.Provider
	engine    *CalculationEngine
	clearance *ClearanceChecker
	documents DocumentGenerator
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Dependencies) *Service {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		uow:       deps.UnitOfWork,
		rules:     deps.Rules,
		engine:    deps.Engine,
		clearance: deps.Clearance,
		documents: deps.Documents,
		events:    deps.Events,
		logger:    lg.With("component", "settlement"),
		now:       now,
	}
}

func (s *Service) currentRules(ctx context.Context) (*rules.Settlement, error) {
	if s.rules == nil {
		return nil, ErrRulesNotConfigured
	}
	r, err := s.rules.Current(ctx)
	if err != nil {
		s.logger.Error("settlement rules unavailable", "error", err)
		return nil, ErrRulesNotConfigured.WithCause(err)
	}
	if r == nil {
		return nil, ErrRulesNotConfigured
	}
	return r, nil
}

// settlementRules resolves the rule set st was calculated under. A version
// that can no longer be found falls back to the current rules.
func (s *Service) settlementRules(ctx context.Context, st *Settlement) (*rules.Settlement, error) {
	lookup, ok := s.rules.(rules.VersionLookup)
	if !ok || st.RulesVersion == "" {
		return s.currentRules(ctx)
	}
	r, err := lookup.ByVersion(ctx, st.RulesVersion)
	switch {
	case err == nil && r != nil:
		return r, nil
	case err == nil || stderrors.Is(err, rules.ErrNotConfigured):
		s.logger.Warn("settlement rule version not found, using current rules",
			"settlement_id", st.ID,
			"rules_version", st.RulesVersion)
		return s.currentRules(ctx)
	default:
		s.logger.Error("settlement rule version lookup failed", "settlement_id", st.ID, "rules_version", st.RulesVersion, "error", err)
		return nil, ErrRulesNotConfigured.WithCause(err)
	}
}

func (s *Service) loadEmployee(ctx context.Context, repo EmployeeRepository, id int64) (*employee.Employee, error) {
	emp, err := repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, employee.ErrNotFound) {
			return nil, ErrEmployeeNotFound.WithMessage(fmt.Sprintf("employee %d not found", id))
		}
		return nil, errors.NewInternalError("failed to load employee", err)
	}
	return emp, nil
}

func (s *Service) publish(ctx context.Context, eventType string, st *Settlement, actor Actor) {
	if s.events == nil {
		return
	}
	ev := events.NewSettlementEvent(eventType, st.ID, st.UserID, actor.UserID, string(st.Status), st.NetPayable.StringFixed(2))
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish settlement event", "event_type", eventType, "settlement_id", st.ID, "error", err)
	}
}

func (s *Service) deny(op string, actor Actor, settlementID int64) error {
	s.logger.Warn(op+" denied: insufficient permissions",
		"settlement_id", settlementID,
		"actor_id", actor.UserID,
		"permissions", actor.Permissions)
	return ErrUnauthorizedAccess
}

// Initiate opens a settlement for an employee and records the exit facts on
// the employee. An employee archived by an earlier completed settlement is
// reinstated in the same transaction.
func (s *Service) Initiate(ctx context.Context, actor Actor, dto InitiateDTO) (*Settlement, error) {
	if !actor.canManage() {
		return nil, s.deny("initiate settlement", actor, 0)
	}
	if err := dto.Validate(); err != nil {
		s.logger.Warn("initiate settlement validation failed", "error", err, "user_id", dto.EmployeeID)
		return nil, err
	}

	r, err := s.currentRules(ctx)
	if err != nil {
		return nil, err
	}
	if dto.NoticePeriodWaived && !r.NoticePeriod.WaiverAllowed {
		s.logger.Warn("notice waiver rejected", "user_id", dto.EmployeeID)
		return nil, ErrNoticeWaiverNotAllowed
	}

	emp, err := s.loadEmployee(ctx, s.uow.Repos().Employees, dto.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive && !emp.IsArchived() {
		return nil, ErrEmployeeNotFound.WithMessage(fmt.Sprintf("employee %d is not active", emp.ID))
	}

	now := s.now()
	st := &Settlement{
		UserID:          emp.ID,
		ExitDate:        dateOnly(dto.ExitDate),
		ExitReason:      ExitReason(strings.ToUpper(dto.ExitReason)),
		LastWorkingDate: dateOnly(dto.LastWorkingDate),
		Status:          StatusInitiated,
		RulesVersion:    r.Version,
		InitiatedBy:     actor.UserID,
		Remarks:         dto.Remarks,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.clearance.Snapshot(ctx, st, r); err != nil {
		s.logger.Error("clearance snapshot failed", "error", err, "user_id", emp.ID)
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		active, err := repos.Settlements.GetActiveByUserID(ctx, emp.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyHasActiveSettlement.WithMessage(fmt.Sprintf(
				"employee %d already has active settlement %d in status %s", emp.ID, active.ID, active.Status))
		}
		if err := repos.Settlements.Create(ctx, st); err != nil {
			return err
		}
		if emp.IsArchived() {
			if err := repos.Employees.Reinstate(ctx, emp.ID); err != nil {
				return fmt.Errorf("reinstate employee: %w", err)
			}
			s.logger.Info("archived employee reinstated for new settlement", "user_id", emp.ID)
		}
		return repos.Employees.SetExitFields(ctx, emp.ID, employee.ExitFields{
			ExitDate:           st.ExitDate,
			ExitReason:         string(st.ExitReason),
			LastWorkingDate:    st.LastWorkingDate,
			NoticePeriodWaived: dto.NoticePeriodWaived || emp.NoticePeriodWaived,
		})
	})
	if err != nil {
		if stderrors.Is(err, ErrAlreadyHasActiveSettlement) {
			s.logger.Warn("initiate rejected: active settlement exists", "user_id", emp.ID)
			return nil, err
		}
		return nil, s.wrapTxError("initiate settlement", err, 0)
	}

	s.logger.Info("settlement initiated",
		"settlement_id", st.ID,
		"user_id", st.UserID,
		"status", st.Status,
		"asset_clearance", st.AssetClearance,
		"vehicle_clearance", st.VehicleClearance,
		"card_clearance", st.CardClearance)
	s.publish(ctx, events.EventTypeSettlementInitiated, st, actor)
	return st, nil
}

// Calculate runs the engine and stores the breakdown. A settlement already
// CALCULATED or PENDING_CLEARANCE is recalculated in place.
func (s *Service) Calculate(ctx context.Context, actor Actor, id int64) (*Settlement, error) {
	if !actor.canManage() {
		return nil, s.deny("calculate settlement", actor, id)
	}
	r, err := s.currentRules(ctx)
	if err != nil {
		return nil, err
	}

	repos := s.uow.Repos()
	st, err := repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkCalculable(st.Status); err != nil {
		s.logger.Warn("calculate rejected", "settlement_id", id, "status", st.Status, "error", err)
		return nil, err
	}
	emp, err := s.loadEmployee(ctx, repos.Employees, st.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	amounts, err := s.engine.Calculate(ctx, emp, st, r, now)
	if err != nil {
		s.logger.Error("settlement calculation failed", "settlement_id", id, "user_id", st.UserID, "error", err)
		return nil, err
	}

	var result *Settlement
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		locked, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCalculable(locked.Status); err != nil {
			return err
		}
		if locked.Status == StatusInitiated {
			if err := Transition(locked, StatusCalculated); err != nil {
				return err
			}
		}
		locked.Amounts = amounts
		locked.RulesVersion = r.Version
		locked.CalculatedBy = &actor.UserID
		locked.CalculatedAt = &now
		locked.UpdatedAt = now
		if err := repos.Settlements.Update(ctx, locked); err != nil {
			return err
		}
		result = locked
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("calculate settlement", err, id)
	}

	s.logger.Info("settlement calculated",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"net_payable", result.NetPayable.StringFixed(2))
	s.publish(ctx, events.EventTypeSettlementCalculated, result, actor)
	return result, nil
}

func checkCalculable(status Status) error {
	switch status {
	case StatusInitiated, StatusCalculated, StatusPendingClearance:
		return nil
	}
	return CheckTransition(status, StatusCalculated)
}

// Update applies manual overrides and recomputes only the totals.
func (s *Service) Update(ctx context.Context, actor Actor, id int64, dto UpdateDTO) (*Settlement, error) {
	if !actor.canManage() {
		return nil, s.deny("update settlement", actor, id)
	}
	if err := dto.Validate(); err != nil {
		s.logger.Warn("update settlement validation failed", "error", err, "settlement_id", id)
		return nil, err
	}

	var result *Settlement
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		st, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status != StatusCalculated && st.Status != StatusPendingClearance {
			return newUpdateInInvalidStatusError("update", st.Status)
		}
		dto.apply(&st.Amounts)
		if dto.Remarks != nil {
			st.Remarks = dto.Remarks
		}
		st.UpdatedAt = s.now()
		if err := repos.Settlements.Update(ctx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("update settlement", err, id)
	}

	s.logger.Info("settlement updated",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"net_payable", result.NetPayable.StringFixed(2))
	return result, nil
}

// GetClearanceStatus reports stored clearance statuses next to what is still
// assigned to the employee.
func (s *Service) GetClearanceStatus(ctx context.Context, actor Actor, id int64) (*ClearanceVerdict, error) {
	st, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	r, err := s.currentRules(ctx)
	if err != nil {
		return nil, err
	}
	verdict, err := s.clearance.Verdict(ctx, st, r)
	if err != nil {
		s.logger.Error("clearance lookup failed", "settlement_id", id, "error", err)
		return nil, err
	}
	return verdict, nil
}

// UpdateClearance sets domain statuses by hand. A CALCULATED settlement with
// any domain left outstanding moves to PENDING_CLEARANCE.
func (s *Service) UpdateClearance(ctx context.Context, actor Actor, id int64, dto ClearanceUpdateDTO) (*Settlement, error) {
	if !actor.canManage() {
		return nil, s.deny("update clearance", actor, id)
	}
	if err := dto.Validate(); err != nil {
		s.logger.Warn("clearance update validation failed", "error", err, "settlement_id", id)
		return nil, err
	}

	var result *Settlement
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		st, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status.IsTerminal() {
			return newUpdateInInvalidStatusError("update clearance of", st.Status)
		}
		for d, status := range dto.updates() {
			if status != nil {
				st.SetClearance(d, ClearanceStatus(strings.ToUpper(*status)))
			}
		}
		if dto.Remarks != nil {
			st.Remarks = dto.Remarks
		}
		if st.Status == StatusCalculated && !AllClearancesDone(st) {
			if err := Transition(st, StatusPendingClearance); err != nil {
				return err
			}
		}
		st.UpdatedAt = s.now()
		if err := repos.Settlements.Update(ctx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("update clearance", err, id)
	}

	s.logger.Info("settlement clearance updated",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"asset_clearance", result.AssetClearance,
		"vehicle_clearance", result.VehicleClearance,
		"card_clearance", result.CardClearance)
	s.publish(ctx, events.EventTypeSettlementClearanceUpdated, result, actor)
	return result, nil
}

// Approve moves a calculated settlement to APPROVED once every blocking
// clearance domain is settled.
func (s *Service) Approve(ctx context.Context, actor Actor, id int64) (*Settlement, error) {
	if !actor.canApprove() {
		return nil, s.deny("approve settlement", actor, id)
	}
	r, err := s.currentRules(ctx)
	if err != nil {
		return nil, err
	}

	var result *Settlement
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		st, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if st.Status == StatusInitiated {
			return ErrNotCalculated.WithMessage(fmt.Sprintf("settlement %d must be calculated before approval", st.ID))
		}
		if err := CheckTransition(st.Status, StatusApproved); err != nil {
			return err
		}
		if pending := PendingBlockingDomains(st, r); len(pending) > 0 {
			return newClearancePendingError(pending)
		}
		if err := Transition(st, StatusApproved); err != nil {
			return err
		}
		now := s.now()
		st.ApprovedBy = &actor.UserID
		st.ApprovedAt = &now
		st.UpdatedAt = now
		if err := repos.Settlements.Update(ctx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("approve settlement", err, id)
	}

	s.logger.Info("settlement approved",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"approved_by", actor.UserID)
	s.publish(ctx, events.EventTypeSettlementApproved, result, actor)
	return result, nil
}

// GenerateDocuments renders the enabled artifacts and stores their keys. On a
// settlement already in DOCUMENTS_GENERATED the keys are replaced.
func (s *Service) GenerateDocuments(ctx context.Context, actor Actor, id int64) (DocumentKeys, error) {
	if !actor.canManage() {
		return DocumentKeys{}, s.deny("generate documents", actor, id)
	}
	r, err := s.currentRules(ctx)
	if err != nil {
		return DocumentKeys{}, err
	}

	repos := s.uow.Repos()
	st, err := repos.Settlements.GetByID(ctx, id)
	if err != nil {
		return DocumentKeys{}, err
	}
	if err := checkRenderable(st.Status); err != nil {
		s.logger.Warn("document generation rejected", "settlement_id", id, "status", st.Status, "error", err)
		return DocumentKeys{}, err
	}
	emp, err := s.loadEmployee(ctx, repos.Employees, st.UserID)
	if err != nil {
		return DocumentKeys{}, err
	}

	keys, err := s.documents.RenderAll(ctx, st, emp, r.Documents)
	if err != nil {
		s.logger.Error("document rendering failed", "settlement_id", id, "error", err)
		if appErr, ok := errors.IsAppError(err); ok {
			return DocumentKeys{}, appErr
		}
		return DocumentKeys{}, ErrDocumentGeneration.
			WithMessage(fmt.Sprintf("document generation failed for settlement %d", id)).
			WithCause(err)
	}

	var result *Settlement
	err = s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		locked, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := checkRenderable(locked.Status); err != nil {
			return err
		}
		if locked.Status == StatusApproved {
			if err := Transition(locked, StatusDocumentsGenerated); err != nil {
				return err
			}
		}
		locked.Documents = keys
		locked.UpdatedAt = s.now()
		if err := repos.Settlements.Update(ctx, locked); err != nil {
			return err
		}
		result = locked
		return nil
	})
	if err != nil {
		return DocumentKeys{}, s.wrapTxError("generate documents", err, id)
	}

	s.logger.Info("settlement documents generated",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status)
	s.publish(ctx, events.EventTypeSettlementDocumentsGenerated, result, actor)
	return keys, nil
}

func checkRenderable(status Status) error {
	if status == StatusDocumentsGenerated {
		return nil
	}
	return CheckTransition(status, StatusDocumentsGenerated)
}

// Complete closes the settlement under the rule version it was calculated
// with: encashed leave is debited, the ledger entries netted at calculation
// are settled and the employee is archived, all in one transaction.
func (s *Service) Complete(ctx context.Context, actor Actor, id int64) (*Settlement, error) {
	if !actor.canApprove() {
		return nil, s.deny("complete settlement", actor, id)
	}

	var result *Settlement
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		st, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(st.Status, StatusCompleted); err != nil {
			return err
		}
		r, err := s.settlementRules(ctx, st)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.applyCompletionEffects(ctx, repos, st, r, now); err != nil {
			return err
		}
		if err := Transition(st, StatusCompleted); err != nil {
			return err
		}
		st.CompletedBy = &actor.UserID
		st.CompletedAt = &now
		st.UpdatedAt = now
		if err := repos.Settlements.Update(ctx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, s.wrapTxError("complete settlement", err, id)
	}

	s.logger.Info("settlement completed",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"net_payable", result.NetPayable.StringFixed(2))
	s.publish(ctx, events.EventTypeSettlementCompleted, result, actor)
	return result, nil
}

func (s *Service) applyCompletionEffects(ctx context.Context, repos Repos, st *Settlement, r *rules.Settlement, now time.Time) error {
	if st.EncashableLeaves.IsPositive() && r.LeaveEncashment.Enabled {
		year := now.Year()
		if st.CalculatedAt != nil {
			year = st.CalculatedAt.Year()
		}
		if err := repos.Leaves.Consume(ctx, st.UserID, r.LeaveEncashment.Categories, year, st.EncashableLeaves); err != nil {
			return fmt.Errorf("debit encashed leave: %w", err)
		}
		if r.LeaveEncashment.EffectivePaymentMode() == rules.PaymentModeExpense && st.LeaveEncashmentAmount.IsPositive() {
			if err := repos.Ledger.RecordLeaveEncashment(ctx, st.UserID, st.ID, st.LeaveEncashmentAmount, now); err != nil {
				return fmt.Errorf("book leave encashment: %w", err)
			}
		}
	}

	cutoff := now
	if st.CalculatedAt != nil {
		cutoff = *st.CalculatedAt
	}
	for _, kind := range enabledLedgers(r) {
		if err := checkLedgerUnchanged(ctx, repos.Ledger, st, kind, cutoff); err != nil {
			return err
		}
		n, err := repos.Ledger.SettleOutstanding(ctx, st.UserID, st.ID, kind, cutoff, now)
		if err != nil {
			return fmt.Errorf("settle %s ledger: %w", kind, err)
		}
		s.logger.Debug("ledger entries settled", "settlement_id", st.ID, "kind", kind, "count", n, "cutoff", cutoff)
	}

	if err := repos.Employees.Archive(ctx, st.UserID, now); err != nil {
		return fmt.Errorf("archive employee: %w", err)
	}
	return nil
}

// checkLedgerUnchanged refuses completion when the entries outstanding at the
// calculation cutoff no longer add up to what was netted, for instance after
// an advance counted then was rejected.
func checkLedgerUnchanged(ctx context.Context, ledger LedgerWriter, st *Settlement, kind LedgerKind, cutoff time.Time) error {
	pos, err := ledger.GetPendingAndUnsettled(ctx, st.UserID, kind, cutoff)
	if err != nil {
		return fmt.Errorf("read %s ledger: %w", kind, err)
	}
	calculated := &LedgerPosition{}
	switch kind {
	case LedgerExpense:
		calculated.PendingDebitsTotal = st.PendingExpenseReimbursement
		calculated.UnsettledCreditsTotal = st.UnsettledExpenseCredit
	case LedgerFuel:
		calculated.PendingDebitsTotal = st.PendingFuelReimbursement
		calculated.UnsettledCreditsTotal = st.UnsettledFuelCredit
	}
	if nonNegative(pos.PendingDebitsTotal).Equal(calculated.PendingDebitsTotal) &&
		nonNegative(pos.UnsettledCreditsTotal).Equal(calculated.UnsettledCreditsTotal) {
		return nil
	}
	return newLedgerChangedError(st.ID, kind, calculated, pos)
}

// Cancel ends a non-terminal settlement and clears the employee's exit fields
// so a new settlement can be initiated.
func (s *Service) Cancel(ctx context.Context, actor Actor, id int64, dto CancelDTO) error {
	if !actor.canManage() {
		return s.deny("cancel settlement", actor, id)
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	var result *Settlement
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos Repos) error {
		st, err := repos.Settlements.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := Transition(st, StatusCancelled); err != nil {
			return err
		}
		now := s.now()
		st.CancelledBy = &actor.UserID
		st.CancelledAt = &now
		st.UpdatedAt = now
		if dto.Remarks != nil {
			st.Remarks = dto.Remarks
		}
		if err := repos.Employees.ClearExitFields(ctx, st.UserID); err != nil {
			return fmt.Errorf("clear exit fields: %w", err)
		}
		if err := repos.Settlements.Update(ctx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return s.wrapTxError("cancel settlement", err, id)
	}

	s.logger.Info("settlement cancelled",
		"settlement_id", result.ID,
		"user_id", result.UserID,
		"status", result.Status,
		"cancelled_by", actor.UserID)
	s.publish(ctx, events.EventTypeSettlementCancelled, result, actor)
	return nil
}

func (s *Service) GetByID(ctx context.Context, actor Actor, id int64) (*Settlement, error) {
	st, err := s.uow.Repos().Settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canRead(st.UserID) {
		s.logger.Warn("unauthorized access to settlement", "settlement_id", id, "actor_id", actor.UserID, "user_id", st.UserID)
		return nil, ErrUnauthorizedAccess
	}
	return st, nil
}

func (s *Service) ListByUser(ctx context.Context, actor Actor, userID int64) ([]*Settlement, error) {
	if !actor.canRead(userID) {
		return nil, s.deny("list settlements", actor, 0)
	}
	list, err := s.uow.Repos().Settlements.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list settlements", "user_id", userID, "error", err)
		return nil, err
	}
	return list, nil
}

// wrapTxError passes domain errors through and hides storage failures behind
// an internal error.
func (s *Service) wrapTxError(op string, err error, id int64) error {
	if appErr, ok := errors.IsAppError(err); ok {
		s.logger.Warn(op+" rejected", "settlement_id", id, "code", appErr.Code, "error", err)
		return err
	}
	s.logger.Error(op+" failed", "settlement_id", id, "error", err)
	return errors.NewInternalError(op+" failed", err)
}
