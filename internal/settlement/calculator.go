package settlement

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/frahmantamala/hr-ops/internal/employee"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ProratedSalary is the exit-month salary already net of that month's
// statutory deductions.
type ProratedSalary struct {
	DailySalary decimal.Decimal            `json:"daily_salary"`
	DaysWorked  int                        `json:"days_worked"`
	NetSalary   decimal.Decimal            `json:"net_salary"`
	Breakdown   map[string]decimal.Decimal `json:"breakdown,omitempty"`
}

// SalaryProrationProvider returns ErrNoSalarySource (or an error matching it)
// when it has no salary data for the user.
type SalaryProrationProvider interface {
	CalculatePartialMonthSalary(ctx context.Context, userID int64, asOf time.Time) (*ProratedSalary, error)
}

type LeaveBalance struct {
	Category  string          `json:"category"`
	Allocated decimal.Decimal `json:"allocated"`
	Consumed  decimal.Decimal `json:"consumed"`
}

func (b LeaveBalance) Available() decimal.Decimal {
	return decimal.Max(decimal.Zero, b.Allocated.Sub(b.Consumed))
}

type LeaveBalanceProvider interface {
	GetBalances(ctx context.Context, userID int64, categories []string, year int) ([]LeaveBalance, error)
}

type LedgerKind string

const (
	LedgerExpense LedgerKind = "expense"
	LedgerFuel    LedgerKind = "fuel"
)

type LedgerPosition struct {
	PendingDebitsTotal    decimal.Decimal `json:"pending_debits_total"`
	UnsettledCreditsTotal decimal.Decimal `json:"unsettled_credits_total"`
	Count                 int             `json:"count"`
}

// ExpenseLedgerProvider reports the outstanding position of a ledger as it
// stood at asOf: debits approved and credits raised after it are left out.
type ExpenseLedgerProvider interface {
	GetPendingAndUnsettled(ctx context.Context, userID int64, kind LedgerKind, asOf time.Time) (*LedgerPosition, error)
}

// CalculationInputs is everything the providers supplied for one run.
type CalculationInputs struct {
	Salary   *ProratedSalary
	Balances []LeaveBalance
	Ledgers  map[LedgerKind]*LedgerPosition
}

var (
	daysPerYear         = decimal.RequireFromString("365.25")
	gratuityDaysPerYear = decimal.NewFromInt(15)
)

type CalculationEngine struct {
	proration SalaryProrationProvider
	leaves    LeaveBalanceProvider
	ledger    ExpenseLedgerProvider
}

func NewCalculationEngine(proration SalaryProrationProvider, leaves LeaveBalanceProvider, ledger ExpenseLedgerProvider) *CalculationEngine {
	return &CalculationEngine{
		proration: proration,
		leaves:    leaves,
		ledger:    ledger,
	}
}

// Calculate gathers the provider inputs concurrently and computes the full
// breakdown. at is the calculation instant: its date drives the balance year
// and the notice shortfall, and the ledgers are read as of it.
func (e *CalculationEngine) Calculate(ctx context.Context, emp *employee.Employee, s *Settlement, r *rules.Settlement, at time.Time) (Amounts, error) {
	today := dateOnly(at)
	in, err := e.gather(ctx, s, r, today, at)
	if err != nil {
		return Amounts{}, err
	}
	return Compute(emp, s, r, in, today)
}

func (e *CalculationEngine) gather(ctx context.Context, s *Settlement, r *rules.Settlement, today, asOf time.Time) (*CalculationInputs, error) {
	in := &CalculationInputs{Ledgers: map[LedgerKind]*LedgerPosition{}}
	kinds := enabledLedgers(r)
	positions := make([]*LedgerPosition, len(kinds))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		salary, err := e.proration.CalculatePartialMonthSalary(gctx, s.UserID, s.LastWorkingDate)
		if err != nil {
			if stderrors.Is(err, ErrNoSalarySource) {
				return newNoSalarySourceError(s.UserID)
			}
			return newUpstreamError("salary proration", err)
		}
		if salary == nil {
			return newNoSalarySourceError(s.UserID)
		}
		in.Salary = salary
		return nil
	})

	if r.LeaveEncashment.Enabled {
		g.Go(func() error {
			balances, err := e.leaves.GetBalances(gctx, s.UserID, r.LeaveEncashment.Categories, today.Year())
			if err != nil {
				return newUpstreamError("leave balance lookup", err)
			}
			in.Balances = balances
			return nil
		})
	}

	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			pos, err := e.ledger.GetPendingAndUnsettled(gctx, s.UserID, kind, asOf)
			if err != nil {
				return newUpstreamError(string(kind)+" ledger lookup", err)
			}
			positions[i] = pos
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, kind := range kinds {
		in.Ledgers[kind] = positions[i]
	}
	return in, nil
}

func enabledLedgers(r *rules.Settlement) []LedgerKind {
	if !r.ExpenseSettlement.Enabled {
		return nil
	}
	var kinds []LedgerKind
	if r.ExpenseSettlement.IncludeExpenses {
		kinds = append(kinds, LedgerExpense)
	}
	if r.ExpenseSettlement.IncludeFuelExpenses {
		kinds = append(kinds, LedgerFuel)
	}
	return kinds
}

// Compute is the pure part of the engine. Manual overrides start at zero.
func Compute(emp *employee.Employee, s *Settlement, r *rules.Settlement, in *CalculationInputs, today time.Time) (Amounts, error) {
	var a Amounts
	if in == nil || in.Salary == nil {
		return a, newNoSalarySourceError(s.UserID)
	}

	daily := round2(in.Salary.DailySalary)
	a.DailySalary = daily
	a.DaysWorked = in.Salary.DaysWorked
	a.FinalSalary = round2(in.Salary.NetSalary)

	if r.LeaveEncashment.Enabled {
		days := EncashableDays(in.Balances, r.LeaveEncashment)
		a.EncashableLeaves = days
		a.LeaveEncashmentAmount = round2(days.Mul(daily))
	}

	if r.Gratuity.Enabled && emp.DateOfJoining != nil {
		years := ServiceYears(*emp.DateOfJoining, s.LastWorkingDate)
		a.ServiceYears = round2(years)
		a.GratuityAmount = Gratuity(years, daily, r.Gratuity)
	}

	if r.NoticePeriod.Enabled && !emp.NoticePeriodWaived {
		a.NoticePeriodDays, a.NoticePeriodRecovery = NoticeRecovery(s.LastWorkingDate, today, daily, r.NoticePeriod)
	}

	if pos := in.Ledgers[LedgerExpense]; pos != nil {
		a.PendingExpenseReimbursement = nonNegative(pos.PendingDebitsTotal)
		a.UnsettledExpenseCredit = nonNegative(pos.UnsettledCreditsTotal)
	}
	if pos := in.Ledgers[LedgerFuel]; pos != nil {
		a.PendingFuelReimbursement = nonNegative(pos.PendingDebitsTotal)
		a.UnsettledFuelCredit = nonNegative(pos.UnsettledCreditsTotal)
	}

	a.PendingReimbursements = decimal.Zero
	a.OtherAdditions = decimal.Zero
	a.OtherDeductions = decimal.Zero
	a.RecomputeTotals()
	return a, nil
}

// EncashableDays sums the available balance over the configured categories
// and clamps it to MaxDays when set.
func EncashableDays(balances []LeaveBalance, rule rules.LeaveEncashment) decimal.Decimal {
	allowed := make(map[string]bool, len(rule.Categories))
	for _, c := range rule.Categories {
		allowed[c] = true
	}

	total := decimal.Zero
	for _, b := range balances {
		if !allowed[b.Category] {
			continue
		}
		total = total.Add(b.Available())
	}
	if rule.MaxDays != nil {
		total = decimal.Min(total, decimal.NewFromInt(int64(*rule.MaxDays)))
	}
	return round2(total)
}

// ServiceYears is the unrounded service length in years of 365.25 days.
func ServiceYears(joined, lastWorking time.Time) decimal.Decimal {
	days := dateOnly(lastWorking).Sub(dateOnly(joined)).Hours() / 24
	if days <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(math.Round(days))).Div(daysPerYear)
}

// Gratuity pays 15 days of salary per completed year once the minimum
// service is met, capped at MaxAmount.
func Gratuity(years, daily decimal.Decimal, rule rules.Gratuity) decimal.Decimal {
	if years.LessThan(rule.MinServiceYears) {
		return decimal.Zero
	}
	amount := round2(gratuityDaysPerYear.Mul(daily).Mul(years.Floor()))
	if rule.MaxAmount != nil {
		amount = decimal.Min(amount, *rule.MaxAmount)
	}
	return round2(amount)
}

// NoticeRecovery compares the notice actually served from today until the
// last working day with the required days.
func NoticeRecovery(lastWorking, today time.Time, daily decimal.Decimal, rule rules.NoticePeriod) (int, decimal.Decimal) {
	actual := int(math.Ceil(dateOnly(lastWorking).Sub(dateOnly(today)).Hours() / 24))
	if actual >= rule.Days || !rule.RecoveryEnabled {
		return 0, decimal.Zero
	}
	served := actual
	if served < 0 {
		served = 0
	}
	shortfall := rule.Days - served
	return shortfall, round2(decimal.NewFromInt(int64(shortfall)).Mul(daily))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	return round2(decimal.Max(decimal.Zero, d))
}
