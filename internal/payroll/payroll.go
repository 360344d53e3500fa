package payroll

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	payrollDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/payroll"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/shopspring/decimal"
)

const AttendanceLossOfPay = "loss_of_pay"

var ErrNoSalaryStructure = stderrors.New("no salary structure in effect")

type SalaryStructure struct {
	UserID            int64
	MonthlyGross      decimal.Decimal
	MonthlyDeductions decimal.Decimal
	EffectiveFrom     time.Time
}

func FromDataModel(m *payrollDatamodel.SalaryStructure) *SalaryStructure {
	return &SalaryStructure{
		UserID:            m.UserID,
		MonthlyGross:      m.MonthlyGross,
		MonthlyDeductions: m.MonthlyDeductions,
		EffectiveFrom:     m.EffectiveFrom,
	}
}

type Repository interface {
	// EffectiveStructure returns ErrNoSalaryStructure when nothing is in
	// effect on asOf.
	EffectiveStructure(ctx context.Context, userID int64, asOf time.Time) (*SalaryStructure, error)
	// CountLossOfPayDays counts loss-of-pay attendance days in [from, to].
	CountLossOfPayDays(ctx context.Context, userID int64, from, to time.Time) (int, error)
}

// ProrationService computes the exit-month salary.
type ProrationService struct {
	repo   Repository
	logger *slog.Logger
}

func NewProrationService(repo Repository, logger *slog.Logger) *ProrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProrationService{repo: repo, logger: logger.With("component", "payroll")}
}

func (s *ProrationService) CalculatePartialMonthSalary(ctx context.Context, userID int64, asOf time.Time) (*settlement.ProratedSalary, error) {
	asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	structure, err := s.repo.EffectiveStructure(ctx, userID, asOf)
	if err != nil {
		if stderrors.Is(err, ErrNoSalaryStructure) {
			s.logger.Warn("no salary structure for proration", "user_id", userID, "as_of", asOf.Format(time.DateOnly))
			return nil, settlement.ErrNoSalarySource.WithMessage(fmt.Sprintf("no salary source for employee %d", userID)).WithCause(err)
		}
		return nil, err
	}

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	lopDays, err := s.repo.CountLossOfPayDays(ctx, userID, monthStart, asOf)
	if err != nil {
		return nil, err
	}

	return Prorate(structure, asOf, lopDays), nil
}

// Prorate pays the days of asOf's month up to and including asOf, less
// loss-of-pay days, and deducts the same share of the monthly deductions.
func Prorate(structure *SalaryStructure, asOf time.Time, lopDays int) *settlement.ProratedSalary {
	daysInMonth := decimal.NewFromInt(int64(daysIn(asOf)))

	daysWorked := asOf.Day() - lopDays
	if daysWorked < 0 {
		daysWorked = 0
	}
	worked := decimal.NewFromInt(int64(daysWorked))

	daily := structure.MonthlyGross.Div(daysInMonth).Round(2)
	gross := daily.Mul(worked).Round(2)
	deductions := structure.MonthlyDeductions.Div(daysInMonth).Mul(worked).Round(2)
	net := decimal.Max(decimal.Zero, gross.Sub(deductions))

	return &settlement.ProratedSalary{
		DailySalary: daily,
		DaysWorked:  daysWorked,
		NetSalary:   net,
		Breakdown: map[string]decimal.Decimal{
			"gross":      gross,
			"deductions": deductions,
			"lop_days":   decimal.NewFromInt(int64(lopDays)),
		},
	}
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
