package settlement

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	errors "github.com/frahmantamala/hr-ops/internal"
	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/frahmantamala/hr-ops/internal/employee"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	return b
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func fullRules() *rules.Settlement {
	return &rules.Settlement{
		Version:         "test-1",
		NoticePeriod:    rules.NoticePeriod{Enabled: true, Days: 30, RecoveryEnabled: true, WaiverAllowed: true},
		Gratuity:        rules.Gratuity{Enabled: true, MinServiceYears: dec("5")},
		LeaveEncashment: rules.LeaveEncashment{Enabled: true, Categories: []string{"earned"}},
		ExpenseSettlement: rules.ExpenseSettlement{
			Enabled: true, IncludeExpenses: true, IncludeFuelExpenses: true,
		},
		AssetClearance:   rules.Clearance{Enabled: true, BlockFnfIfPending: true},
		VehicleClearance: rules.Clearance{Enabled: true, BlockFnfIfPending: true},
		CardClearance:    rules.Clearance{Enabled: false},
		Documents: rules.Documents{
			RelievingLetter: true, ExperienceLetter: true, SettlementStatement: true, FinalPayslip: true,
		},
	}
}

type stubProration struct {
	salary *ProratedSalary
	err    error
	calls  int32
}

func (p *stubProration) CalculatePartialMonthSalary(_ context.Context, _ int64, _ time.Time) (*ProratedSalary, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.salary, p.err
}

type stubLeaves struct {
	balances []LeaveBalance
	err      error
	year     int
}

func (l *stubLeaves) GetBalances(_ context.Context, _ int64, _ []string, year int) ([]LeaveBalance, error) {
	l.year = year
	return l.balances, l.err
}

type stubLedger struct {
	positions map[LedgerKind]*LedgerPosition
	err       error

	mu   sync.Mutex
	asOf []time.Time
}

func (l *stubLedger) GetPendingAndUnsettled(_ context.Context, _ int64, kind LedgerKind, asOf time.Time) (*LedgerPosition, error) {
	l.mu.Lock()
	l.asOf = append(l.asOf, asOf)
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if pos, ok := l.positions[kind]; ok {
		return pos, nil
	}
	return &LedgerPosition{PendingDebitsTotal: decimal.Zero, UnsettledCreditsTotal: decimal.Zero}, nil
}

var _ = Describe("CalculationEngine", func() {
	var (
		joined = day(2019, time.January, 1)
		today  = day(2024, time.June, 1)
		emp    *employee.Employee
		st     *Settlement
		salary *ProratedSalary
	)

	BeforeEach(func() {
		emp = &employee.Employee{ID: 7, DateOfJoining: &joined, IsActive: true}
		st = &Settlement{UserID: 7, ExitDate: day(2024, time.June, 11), LastWorkingDate: day(2024, time.June, 11)}
		salary = &ProratedSalary{DailySalary: dec("1000"), DaysWorked: 11, NetSalary: dec("11000")}
	})

	Describe("leave encashment", func() {
		balances := []LeaveBalance{
			{Category: "earned", Allocated: dec("20"), Consumed: dec("12")},
			{Category: "sick", Allocated: dec("10"), Consumed: dec("0")},
		}

		It("encashes the available balance of the configured categories", func() {
			r := fullRules()
			a, err := Compute(emp, st, r, &CalculationInputs{Salary: salary, Balances: balances}, today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.EncashableLeaves.Equal(dec("8"))).To(BeTrue())
			Expect(a.LeaveEncashmentAmount.Equal(dec("8000"))).To(BeTrue())
		})

		It("clamps to the maximum day count", func() {
			r := fullRules()
			r.LeaveEncashment.MaxDays = intPtr(5)
			a, err := Compute(emp, st, r, &CalculationInputs{Salary: salary, Balances: balances}, today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.EncashableLeaves.Equal(dec("5"))).To(BeTrue())
			Expect(a.LeaveEncashmentAmount.Equal(dec("5000"))).To(BeTrue())
		})

		It("ignores overdrawn balances", func() {
			days := EncashableDays([]LeaveBalance{
				{Category: "earned", Allocated: dec("5"), Consumed: dec("9")},
			}, rules.LeaveEncashment{Enabled: true, Categories: []string{"earned"}})

			Expect(days.IsZero()).To(BeTrue())
		})

		It("is skipped when disabled", func() {
			r := fullRules()
			r.LeaveEncashment = rules.LeaveEncashment{}
			a, err := Compute(emp, st, r, &CalculationInputs{Salary: salary, Balances: balances}, today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.LeaveEncashmentAmount.IsZero()).To(BeTrue())
		})
	})

	Describe("gratuity", func() {
		rule := rules.Gratuity{Enabled: true, MinServiceYears: dec("5")}

		It("pays 15 days per completed year", func() {
			Expect(Gratuity(dec("5.46"), dec("1000"), rule).Equal(dec("75000"))).To(BeTrue())
		})

		It("pays nothing below the minimum service", func() {
			Expect(Gratuity(dec("4.9"), dec("1000"), rule).IsZero()).To(BeTrue())
		})

		It("caps at the maximum amount", func() {
			capped := rule
			capped.MaxAmount = decPtr("50000")
			Expect(Gratuity(dec("7.2"), dec("1000"), capped).Equal(dec("50000"))).To(BeTrue())
		})

		It("measures service in years of 365.25 days", func() {
			years := ServiceYears(day(2019, time.January, 1), day(2024, time.June, 11))
			Expect(years.Floor().Equal(dec("5"))).To(BeTrue())
			Expect(years.Round(2).Equal(dec("5.44"))).To(BeTrue())
		})

		It("is skipped without a join date", func() {
			emp.DateOfJoining = nil
			a, err := Compute(emp, st, fullRules(), &CalculationInputs{Salary: salary}, today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.GratuityAmount.IsZero()).To(BeTrue())
			Expect(a.ServiceYears.IsZero()).To(BeTrue())
		})
	})

	Describe("notice period recovery", func() {
		rule := rules.NoticePeriod{Enabled: true, Days: 30, RecoveryEnabled: true}

		It("recovers the shortfall", func() {
			days, amount := NoticeRecovery(day(2024, time.June, 11), today, dec("1000"), rule)

			Expect(days).To(Equal(20))
			Expect(amount.Equal(dec("20000"))).To(BeTrue())
		})

		It("treats a last working day in the past as no notice served", func() {
			days, amount := NoticeRecovery(day(2024, time.May, 20), today, dec("1000"), rule)

			Expect(days).To(Equal(30))
			Expect(amount.Equal(dec("30000"))).To(BeTrue())
		})

		It("recovers nothing when the notice was served", func() {
			days, amount := NoticeRecovery(day(2024, time.July, 15), today, dec("1000"), rule)

			Expect(days).To(BeZero())
			Expect(amount.IsZero()).To(BeTrue())
		})

		It("recovers nothing when recovery is disabled", func() {
			off := rule
			off.RecoveryEnabled = false
			days, amount := NoticeRecovery(day(2024, time.June, 11), today, dec("1000"), off)

			Expect(days).To(BeZero())
			Expect(amount.IsZero()).To(BeTrue())
		})

		It("recovers nothing from an employee whose notice was waived", func() {
			emp.NoticePeriodWaived = true
			a, err := Compute(emp, st, fullRules(), &CalculationInputs{Salary: salary}, today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.NoticePeriodDays).To(BeZero())
			Expect(a.NoticePeriodRecovery.IsZero()).To(BeTrue())
		})
	})

	Describe("totals", func() {
		It("nets earnings against deductions for any combination of rule flags", func() {
			in := &CalculationInputs{
				Salary:   salary,
				Balances: []LeaveBalance{{Category: "earned", Allocated: dec("20"), Consumed: dec("12")}},
				Ledgers: map[LedgerKind]*LedgerPosition{
					LedgerExpense: {PendingDebitsTotal: dec("500.25"), UnsettledCreditsTotal: dec("200")},
					LedgerFuel:    {PendingDebitsTotal: dec("120"), UnsettledCreditsTotal: dec("80.10")},
				},
			}

			for mask := 0; mask < 16; mask++ {
				r := fullRules()
				r.NoticePeriod.Enabled = mask&1 != 0
				r.Gratuity.Enabled = mask&2 != 0
				r.LeaveEncashment.Enabled = mask&4 != 0
				r.ExpenseSettlement.Enabled = mask&8 != 0

				a, err := Compute(emp, st, r, in, today)
				Expect(err).NotTo(HaveOccurred())
				Expect(a.NetPayable.Equal(a.TotalEarnings.Sub(a.TotalDeductions))).To(BeTrue(), "mask %d", mask)
				Expect(a.OtherAdditions.IsZero()).To(BeTrue())
				Expect(a.OtherDeductions.IsZero()).To(BeTrue())
				Expect(a.PendingReimbursements.IsZero()).To(BeTrue())
			}
		})

		It("adds up every component", func() {
			in := &CalculationInputs{
				Salary:   salary,
				Balances: []LeaveBalance{{Category: "earned", Allocated: dec("20"), Consumed: dec("12")}},
				Ledgers: map[LedgerKind]*LedgerPosition{
					LedgerExpense: {PendingDebitsTotal: dec("500"), UnsettledCreditsTotal: dec("200")},
				},
			}
			a, err := Compute(emp, st, fullRules(), in, today)

			Expect(err).NotTo(HaveOccurred())
			// 11000 salary + 8000 leave + 75000 gratuity + 500 expense
			Expect(a.TotalEarnings.Equal(dec("94500"))).To(BeTrue())
			// 20000 notice + 200 expense credit
			Expect(a.TotalDeductions.Equal(dec("20200"))).To(BeTrue())
			Expect(a.NetPayable.Equal(dec("74300"))).To(BeTrue())
		})

		It("allows a negative net payable", func() {
			r := fullRules()
			r.Gratuity.Enabled = false
			r.LeaveEncashment.Enabled = false
			in := &CalculationInputs{Salary: &ProratedSalary{DailySalary: dec("1000"), NetSalary: dec("0")}}

			a, err := Compute(emp, st, r, in, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.NetPayable.Equal(dec("-20000"))).To(BeTrue())
		})
	})

	Describe("Calculate", func() {
		var (
			proration *stubProration
			leaves    *stubLeaves
			ledger    *stubLedger
			engine    *CalculationEngine
		)

		BeforeEach(func() {
			proration = &stubProration{salary: salary}
			leaves = &stubLeaves{balances: []LeaveBalance{{Category: "earned", Allocated: dec("20"), Consumed: dec("12")}}}
			ledger = &stubLedger{positions: map[LedgerKind]*LedgerPosition{
				LedgerFuel: {PendingDebitsTotal: dec("40"), UnsettledCreditsTotal: dec("15")},
			}}
			engine = NewCalculationEngine(proration, leaves, ledger)
		})

		It("gathers every provider and computes the breakdown", func() {
			a, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)

			Expect(err).NotTo(HaveOccurred())
			Expect(a.FinalSalary.Equal(dec("11000"))).To(BeTrue())
			Expect(a.PendingFuelReimbursement.Equal(dec("40"))).To(BeTrue())
			Expect(a.UnsettledFuelCredit.Equal(dec("15"))).To(BeTrue())
			Expect(leaves.year).To(Equal(2024))
		})

		It("reads the ledgers as of the calculation instant", func() {
			at := time.Date(2024, time.June, 1, 16, 45, 0, 0, time.UTC)

			a, err := engine.Calculate(context.Background(), emp, st, fullRules(), at)
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.asOf).To(HaveLen(2))
			Expect(ledger.asOf).To(HaveEach(Equal(at)))

			byDate, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Marshal(a)).To(Equal(mustJSON(byDate)))
		})

		It("is idempotent for unchanged inputs", func() {
			first, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)
			Expect(err).NotTo(HaveOccurred())

			Expect(json.Marshal(second)).To(Equal(mustJSON(first)))
		})

		It("reports a missing salary source", func() {
			proration.salary = nil
			proration.err = ErrNoSalarySource.WithMessage("nothing for 7")

			_, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)
			Expect(stderrors.Is(err, ErrNoSalarySource)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("7"))
		})

		It("wraps provider failures as upstream errors", func() {
			leaves.err = stderrors.New("connection reset")

			_, err := engine.Calculate(context.Background(), emp, st, fullRules(), today)
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeUpstreamFailure))
			Expect(appErr.Message).To(ContainSubstring("leave balance"))
		})

		It("skips ledgers that are not enabled", func() {
			ledger.err = stderrors.New("should not be called")
			r := fullRules()
			r.ExpenseSettlement.Enabled = false

			_, err := engine.Calculate(context.Background(), emp, st, r, today)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
