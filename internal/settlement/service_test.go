package settlement

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/hr-ops/internal/core/events"
	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"github.com/frahmantamala/hr-ops/internal/employee"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

type consumption struct {
	UserID int64
	Year   int
	Days   decimal.Decimal
}

type ledgerBooking struct {
	UserID       int64
	SettlementID int64
	Kind         LedgerKind
	Amount       decimal.Decimal
	Cutoff       time.Time
}

// memoryState is the whole fake database; WithinTx restores a copy of it
// when fn fails.
type memoryState struct {
	nextID      int64
	settlements map[int64]Settlement
	employees   map[int64]employee.Employee
	consumed    []consumption
	bookings    []ledgerBooking
	positions   map[LedgerKind]LedgerPosition
}

func (m *memoryState) clone() *memoryState {
	cp := &memoryState{
		nextID:      m.nextID,
		settlements: make(map[int64]Settlement, len(m.settlements)),
		employees:   make(map[int64]employee.Employee, len(m.employees)),
		consumed:    append([]consumption(nil), m.consumed...),
		bookings:    append([]ledgerBooking(nil), m.bookings...),
		positions:   make(map[LedgerKind]LedgerPosition, len(m.positions)),
	}
	for k, v := range m.positions {
		cp.positions[k] = v
	}
	for k, v := range m.settlements {
		cp.settlements[k] = v
	}
	for k, v := range m.employees {
		cp.employees[k] = v
	}
	return cp
}

type memoryUoW struct {
	mu         sync.Mutex
	state      *memoryState
	archiveErr error
}

func newMemoryUoW() *memoryUoW {
	return &memoryUoW{state: &memoryState{
		settlements: map[int64]Settlement{},
		employees:   map[int64]employee.Employee{},
		positions:   map[LedgerKind]LedgerPosition{},
	}}
}

func (u *memoryUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	u.mu.Lock()
	snapshot := u.state.clone()
	u.mu.Unlock()

	if err := fn(ctx, u.Repos()); err != nil {
		u.mu.Lock()
		u.state = snapshot
		u.mu.Unlock()
		return err
	}
	return nil
}

func (u *memoryUoW) Repos() Repos {
	return Repos{
		Settlements: memorySettlements{u},
		Employees:   memoryEmployees{u},
		Ledger:      memoryLedger{u},
		Leaves:      memoryLeaves{u},
	}
}

type memorySettlements struct{ u *memoryUoW }

func (r memorySettlements) Create(_ context.Context, s *Settlement) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, existing := range r.u.state.settlements {
		if existing.UserID == s.UserID && !existing.Status.IsTerminal() {
			return ErrAlreadyHasActiveSettlement
		}
	}
	r.u.state.nextID++
	s.ID = r.u.state.nextID
	r.u.state.settlements[s.ID] = *s
	return nil
}

func (r memorySettlements) GetByID(_ context.Context, id int64) (*Settlement, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	s, ok := r.u.state.settlements[id]
	if !ok {
		return nil, ErrSettlementNotFound
	}
	return &s, nil
}

func (r memorySettlements) GetByIDForUpdate(ctx context.Context, id int64) (*Settlement, error) {
	return r.GetByID(ctx, id)
}

func (r memorySettlements) GetActiveByUserID(_ context.Context, userID int64) (*Settlement, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	for _, s := range r.u.state.settlements {
		if s.UserID == userID && !s.Status.IsTerminal() {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memorySettlements) ListByUserID(_ context.Context, userID int64) ([]*Settlement, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	var out []*Settlement
	for _, s := range r.u.state.settlements {
		if s.UserID == userID {
			cp := s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memorySettlements) Update(_ context.Context, s *Settlement) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if _, ok := r.u.state.settlements[s.ID]; !ok {
		return ErrSettlementNotFound
	}
	r.u.state.settlements[s.ID] = *s
	return nil
}

type memoryEmployees struct{ u *memoryUoW }

func (r memoryEmployees) GetByID(_ context.Context, id int64) (*employee.Employee, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	e, ok := r.u.state.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return &e, nil
}

func (r memoryEmployees) SetExitFields(_ context.Context, id int64, exit employee.ExitFields) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	e := r.u.state.employees[id]
	e.ExitDate = &exit.ExitDate
	e.ExitReason = &exit.ExitReason
	e.LastWorkingDate = &exit.LastWorkingDate
	e.NoticePeriodWaived = exit.NoticePeriodWaived
	r.u.state.employees[id] = e
	return nil
}

func (r memoryEmployees) ClearExitFields(_ context.Context, id int64) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	e := r.u.state.employees[id]
	e.ExitDate = nil
	e.ExitReason = nil
	e.LastWorkingDate = nil
	e.NoticePeriodWaived = false
	r.u.state.employees[id] = e
	return nil
}

func (r memoryEmployees) Archive(_ context.Context, id int64, at time.Time) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	if r.u.archiveErr != nil {
		return r.u.archiveErr
	}
	e := r.u.state.employees[id]
	e.ArchivedAt = &at
	e.IsActive = false
	r.u.state.employees[id] = e
	return nil
}

func (r memoryEmployees) Reinstate(_ context.Context, id int64) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	e, ok := r.u.state.employees[id]
	if !ok {
		return employee.ErrNotFound
	}
	e.ArchivedAt = nil
	e.IsActive = true
	r.u.state.employees[id] = e
	return nil
}

// memoryLedger keeps one position per kind; settling a kind empties it.
type memoryLedger struct{ u *memoryUoW }

func (r memoryLedger) GetPendingAndUnsettled(_ context.Context, _ int64, kind LedgerKind, _ time.Time) (*LedgerPosition, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	pos, ok := r.u.state.positions[kind]
	if !ok {
		return &LedgerPosition{PendingDebitsTotal: decimal.Zero, UnsettledCreditsTotal: decimal.Zero}, nil
	}
	return &pos, nil
}

func (r memoryLedger) RecordLeaveEncashment(_ context.Context, userID, settlementID int64, amount decimal.Decimal, _ time.Time) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.state.bookings = append(r.u.state.bookings, ledgerBooking{UserID: userID, SettlementID: settlementID, Kind: "leave_encashment", Amount: amount})
	return nil
}

func (r memoryLedger) SettleOutstanding(_ context.Context, userID, settlementID int64, kind LedgerKind, asOf, _ time.Time) (int64, error) {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.state.bookings = append(r.u.state.bookings, ledgerBooking{UserID: userID, SettlementID: settlementID, Kind: kind, Cutoff: asOf})
	delete(r.u.state.positions, kind)
	return 1, nil
}

type memoryLeaves struct{ u *memoryUoW }

func (r memoryLeaves) Consume(_ context.Context, userID int64, _ []string, year int, days decimal.Decimal) error {
	r.u.mu.Lock()
	defer r.u.mu.Unlock()
	r.u.state.consumed = append(r.u.state.consumed, consumption{UserID: userID, Year: year, Days: days})
	return nil
}

type stubDocuments struct {
	keys DocumentKeys
	err  error
}

func (d *stubDocuments) RenderAll(_ context.Context, _ *Settlement, _ *employee.Employee, _ rules.Documents) (DocumentKeys, error) {
	return d.keys, d.err
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.EventType())
	return nil
}

// versionedRules serves several rule versions and lets a test switch the
// one in force.
type versionedRules struct {
	current  string
	versions map[string]*rules.Settlement
}

func (p *versionedRules) Current(ctx context.Context) (*rules.Settlement, error) {
	return p.ByVersion(ctx, p.current)
}

func (p *versionedRules) ByVersion(_ context.Context, version string) (*rules.Settlement, error) {
	s, ok := p.versions[version]
	if !ok {
		return nil, rules.ErrNotConfigured
	}
	cp := *s
	return &cp, nil
}

func strPtr(s string) *string { return &s }

var _ = Describe("Service", func() {
	const employeeID int64 = 7

	var (
		ctx       context.Context
		uow       *memoryUoW
		proration *stubProration
		source    *stubClearanceSource
		docs      *stubDocuments
		publisher *recordingPublisher
		ruleSet   *rules.Settlement
		provider  rules.Provider
		service   *Service
		now       = time.Date(2024, time.June, 1, 10, 30, 0, 0, time.UTC)
		joined    = day(2019, time.January, 1)

		manager  = Actor{UserID: 100, Permissions: []string{PermissionManageSettlements}}
		approver = Actor{UserID: 200, Permissions: []string{PermissionApproveSettlements}}
		self     = Actor{UserID: employeeID}
		stranger = Actor{UserID: 8}
	)

	build := func() {
		var p rules.Provider = rules.NewStatic(ruleSet)
		if provider != nil {
			p = provider
		}
		service = NewService(Dependencies{
			UnitOfWork: uow,
			Rules:      p,
			Engine: NewCalculationEngine(proration,
				&stubLeaves{balances: []LeaveBalance{{Category: "earned", Allocated: dec("20"), Consumed: dec("12")}}},
				memoryLedger{uow}),
			Clearance: NewClearanceChecker(source),
			Documents: docs,
			Events:    publisher,
			Now:       func() time.Time { return now },
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		uow = newMemoryUoW()
		uow.state.employees[employeeID] = employee.Employee{ID: employeeID, Name: "Rina", DateOfJoining: &joined, IsActive: true}
		uow.state.positions[LedgerExpense] = LedgerPosition{PendingDebitsTotal: dec("500"), UnsettledCreditsTotal: dec("200"), Count: 3}
		proration = &stubProration{salary: &ProratedSalary{DailySalary: dec("1000"), DaysWorked: 11, NetSalary: dec("11000")}}
		source = &stubClearanceSource{assets: []ClearanceItem{{ID: 1, Identifier: "LAP-0042"}}}
		docs = &stubDocuments{keys: DocumentKeys{RelievingLetter: strPtr("docs/relieving.pdf"), FinalPayslip: strPtr("docs/payslip.pdf")}}
		publisher = &recordingPublisher{}
		ruleSet = fullRules()
		provider = nil
		build()
	})

	initiate := func() *Settlement {
		st, err := service.Initiate(ctx, manager, InitiateDTO{
			EmployeeID:      employeeID,
			ExitDate:        day(2024, time.June, 11),
			ExitReason:      "resignation",
			LastWorkingDate: day(2024, time.June, 11),
		})
		Expect(err).NotTo(HaveOccurred())
		return st
	}

	storedEmployee := func() employee.Employee {
		return uow.state.employees[employeeID]
	}

	Describe("Initiate", func() {
		It("opens a settlement with a clearance snapshot and records the exit on the employee", func() {
			st := initiate()

			Expect(st.ID).NotTo(BeZero())
			Expect(st.Status).To(Equal(StatusInitiated))
			Expect(st.ExitReason).To(Equal(ExitReasonResignation))
			Expect(st.RulesVersion).To(Equal("test-1"))
			Expect(st.InitiatedBy).To(Equal(manager.UserID))
			Expect(st.AssetClearance).To(Equal(ClearancePending))
			Expect(st.VehicleClearance).To(Equal(ClearanceCleared))
			Expect(st.CardClearance).To(Equal(ClearanceNotApplicable))
			Expect(st.NetPayable.IsZero()).To(BeTrue())

			emp := storedEmployee()
			Expect(emp.ExitDate).NotTo(BeNil())
			Expect(*emp.ExitReason).To(Equal("RESIGNATION"))
			Expect(publisher.types).To(ContainElement(events.EventTypeSettlementInitiated))
		})

		It("refuses a second open settlement for the same employee", func() {
			initiate()

			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 30),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 30),
			})
			Expect(stderrors.Is(err, ErrAlreadyHasActiveSettlement)).To(BeTrue())
		})

		It("rejects a deactivated employee that was never archived", func() {
			emp := storedEmployee()
			emp.IsActive = false
			uow.state.employees[employeeID] = emp

			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 30),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 30),
			})
			Expect(stderrors.Is(err, ErrEmployeeNotFound)).To(BeTrue())
		})

		It("rejects a last working date after the exit date", func() {
			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 1),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 2),
			})
			Expect(stderrors.Is(err, ErrInvalidDateOrdering)).To(BeTrue())
		})

		It("rejects unknown employees", func() {
			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: 999, ExitDate: day(2024, time.June, 1),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 1),
			})
			Expect(stderrors.Is(err, ErrEmployeeNotFound)).To(BeTrue())
		})

		It("rejects a waiver the rules do not allow", func() {
			ruleSet.NoticePeriod.WaiverAllowed = false
			build()

			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 11),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 11),
				NoticePeriodWaived: true,
			})
			Expect(stderrors.Is(err, ErrNoticeWaiverNotAllowed)).To(BeTrue())
		})

		It("requires the manage permission", func() {
			_, err := service.Initiate(ctx, self, InitiateDTO{EmployeeID: employeeID})
			Expect(stderrors.Is(err, ErrUnauthorizedAccess)).To(BeTrue())
		})

		It("fails with RulesNotConfigured when no rule set is in force", func() {
			ruleSet = nil
			build()

			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 11),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 11),
			})
			Expect(stderrors.Is(err, ErrRulesNotConfigured)).To(BeTrue())
		})
	})

	Describe("Calculate", func() {
		It("stores the breakdown and stamps the calculator", func() {
			st := initiate()

			calc, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(calc.Status).To(Equal(StatusCalculated))
			Expect(calc.EncashableLeaves.Equal(dec("8"))).To(BeTrue())
			Expect(calc.LeaveEncashmentAmount.Equal(dec("8000"))).To(BeTrue())
			Expect(calc.GratuityAmount.Equal(dec("75000"))).To(BeTrue())
			Expect(calc.NoticePeriodDays).To(Equal(20))
			Expect(calc.NoticePeriodRecovery.Equal(dec("20000"))).To(BeTrue())
			Expect(calc.NetPayable.Equal(calc.TotalEarnings.Sub(calc.TotalDeductions))).To(BeTrue())
			Expect(*calc.CalculatedBy).To(Equal(manager.UserID))
			Expect(calc.CalculatedAt).NotTo(BeNil())
		})

		It("yields identical amounts when run twice", func() {
			st := initiate()

			first, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			second, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Status).To(Equal(StatusCalculated))
			Expect(mustJSON(second.Amounts)).To(Equal(mustJSON(first.Amounts)))
		})

		It("ignores the notice shortfall for waived employees", func() {
			_, err := service.Initiate(ctx, manager, InitiateDTO{
				EmployeeID: employeeID, ExitDate: day(2024, time.June, 11),
				ExitReason: "RESIGNATION", LastWorkingDate: day(2024, time.June, 11),
				NoticePeriodWaived: true,
			})
			Expect(err).NotTo(HaveOccurred())

			calc, err := service.Calculate(ctx, manager, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(calc.NoticePeriodRecovery.IsZero()).To(BeTrue())
		})

		It("leaves the record untouched when the salary source is missing", func() {
			st := initiate()
			proration.salary = nil
			proration.err = ErrNoSalarySource

			_, err := service.Calculate(ctx, manager, st.ID)
			Expect(stderrors.Is(err, ErrNoSalarySource)).To(BeTrue())

			stored, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(StatusInitiated))
			Expect(stored.CalculatedAt).To(BeNil())
		})

		It("returns NotFound for unknown ids", func() {
			_, err := service.Calculate(ctx, manager, 42)
			Expect(stderrors.Is(err, ErrSettlementNotFound)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("applies overrides and recomputes only the totals", func() {
			st := initiate()
			calc, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			calls := proration.calls

			extra := dec("1500")
			deduct := dec("250.50")
			updated, err := service.Update(ctx, manager, st.ID, UpdateDTO{
				OtherAdditions:  &extra,
				OtherDeductions: &deduct,
				Remarks:         strPtr("laptop damage"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(proration.calls).To(Equal(calls))
			Expect(updated.FinalSalary.Equal(calc.FinalSalary)).To(BeTrue())
			Expect(updated.TotalEarnings.Equal(calc.TotalEarnings.Add(extra))).To(BeTrue())
			Expect(updated.TotalDeductions.Equal(calc.TotalDeductions.Add(deduct))).To(BeTrue())
			Expect(updated.NetPayable.Equal(updated.TotalEarnings.Sub(updated.TotalDeductions))).To(BeTrue())
			Expect(*updated.Remarks).To(Equal("laptop damage"))
		})

		It("is refused before calculation", func() {
			st := initiate()
			extra := dec("10")

			_, err := service.Update(ctx, manager, st.ID, UpdateDTO{OtherAdditions: &extra})
			Expect(stderrors.Is(err, ErrUpdateInInvalidStatus)).To(BeTrue())
		})

		It("rejects negative overrides", func() {
			st := initiate()
			negative := dec("-1")

			_, err := service.Update(ctx, manager, st.ID, UpdateDTO{OtherDeductions: &negative})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("approval and clearance", func() {
		It("needs a calculation first", func() {
			st := initiate()

			_, err := service.Approve(ctx, approver, st.ID)
			Expect(stderrors.Is(err, ErrNotCalculated)).To(BeTrue())
			Expect(stderrors.Is(err, ErrInvalidStateTransition)).To(BeFalse())
		})

		It("blocks on pending gated domains until they are cleared", func() {
			st := initiate()
			_, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, approver, st.ID)
			Expect(stderrors.Is(err, ErrClearancePending)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Assets"))

			cleared, err := service.UpdateClearance(ctx, manager, st.ID, ClearanceUpdateDTO{AssetClearance: strPtr("cleared")})
			Expect(err).NotTo(HaveOccurred())
			Expect(cleared.AssetClearance).To(Equal(ClearanceCleared))
			Expect(cleared.Status).To(Equal(StatusCalculated))

			approved, err := service.Approve(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(StatusApproved))
			Expect(*approved.ApprovedBy).To(Equal(approver.UserID))
		})

		It("moves a calculated settlement to pending clearance while a domain is outstanding", func() {
			st := initiate()
			_, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())

			updated, err := service.UpdateClearance(ctx, manager, st.ID, ClearanceUpdateDTO{VehicleClearance: strPtr("NOT_APPLICABLE")})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(StatusPendingClearance))

			_, err = service.UpdateClearance(ctx, manager, st.ID, ClearanceUpdateDTO{AssetClearance: strPtr("CLEARED")})
			Expect(err).NotTo(HaveOccurred())

			approved, err := service.Approve(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(StatusApproved))
		})

		It("rejects unknown clearance statuses", func() {
			st := initiate()

			_, err := service.UpdateClearance(ctx, manager, st.ID, ClearanceUpdateDTO{AssetClearance: strPtr("returned")})
			Expect(err).To(HaveOccurred())
		})

		It("reports the verdict to the employee", func() {
			st := initiate()

			verdict, err := service.GetClearanceStatus(ctx, self, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(verdict.CanApprove).To(BeFalse())
			Expect(verdict.Domains[0].Pending).To(Equal(1))
		})

		It("requires the approve permission", func() {
			st := initiate()

			_, err := service.Approve(ctx, manager, st.ID)
			Expect(stderrors.Is(err, ErrUnauthorizedAccess)).To(BeTrue())
		})
	})

	Describe("documents and completion", func() {
		approve := func() *Settlement {
			st := initiate()
			_, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.UpdateClearance(ctx, manager, st.ID, ClearanceUpdateDTO{AssetClearance: strPtr("CLEARED")})
			Expect(err).NotTo(HaveOccurred())
			approved, err := service.Approve(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())
			return approved
		}

		It("only completes after documents were generated", func() {
			st := approve()

			_, err := service.Complete(ctx, approver, st.ID)
			Expect(stderrors.Is(err, ErrInvalidStateTransition)).To(BeTrue())
		})

		It("stores document keys and completes with every side effect", func() {
			st := approve()

			keys, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*keys.RelievingLetter).To(Equal("docs/relieving.pdf"))

			withDocs, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(withDocs.Status).To(Equal(StatusDocumentsGenerated))
			Expect(*withDocs.Documents.FinalPayslip).To(Equal("docs/payslip.pdf"))

			done, err := service.Complete(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(StatusCompleted))
			Expect(*done.CompletedBy).To(Equal(approver.UserID))

			Expect(uow.state.consumed).To(HaveLen(1))
			Expect(uow.state.consumed[0].Year).To(Equal(2024))
			Expect(uow.state.consumed[0].Days.Equal(dec("8"))).To(BeTrue())

			var kinds []LedgerKind
			for _, b := range uow.state.bookings {
				kinds = append(kinds, b.Kind)
			}
			Expect(kinds).To(ConsistOf(LedgerExpense, LedgerFuel))

			emp := storedEmployee()
			Expect(emp.IsArchived()).To(BeTrue())
			Expect(publisher.types).To(ContainElement(events.EventTypeSettlementCompleted))
		})

		It("settles the ledgers as of the calculation, not the completion", func() {
			calculatedAt := now
			DeferCleanup(func() { now = calculatedAt })

			st := approve()
			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			now = calculatedAt.Add(48 * time.Hour)

			done, err := service.Complete(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*done.CompletedAt).To(Equal(now))
			Expect(uow.state.bookings).To(HaveLen(2))
			for _, b := range uow.state.bookings {
				Expect(b.Cutoff).To(Equal(calculatedAt))
			}
		})

		It("refuses to complete when the netted ledger changed since calculation", func() {
			st := approve()
			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			uow.state.positions[LedgerExpense] = LedgerPosition{PendingDebitsTotal: dec("500"), UnsettledCreditsTotal: dec("50")}

			_, err = service.Complete(ctx, approver, st.ID)
			Expect(stderrors.Is(err, ErrLedgerChanged)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("expense"))

			stored, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(StatusDocumentsGenerated))
			Expect(uow.state.bookings).To(BeEmpty())
			Expect(uow.state.consumed).To(BeEmpty())
			archived := storedEmployee()
			Expect(archived.IsArchived()).To(BeFalse())
		})

		It("allows a new settlement for the employee after completion", func() {
			first := approve()
			_, err := service.GenerateDocuments(ctx, manager, first.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Complete(ctx, approver, first.ID)
			Expect(err).NotTo(HaveOccurred())
			archived := storedEmployee()
			Expect(archived.IsArchived()).To(BeTrue())

			again := initiate()
			Expect(again.ID).NotTo(Equal(first.ID))
			Expect(again.Status).To(Equal(StatusInitiated))

			emp := storedEmployee()
			Expect(emp.IsArchived()).To(BeFalse())
			Expect(emp.IsActive).To(BeTrue())
			Expect(emp.HasOpenExit()).To(BeTrue())

			settlements, err := service.ListByUser(ctx, manager, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(settlements).To(HaveLen(2))
		})

		Context("when the rules change after calculation", func() {
			var versions *versionedRules

			BeforeEach(func() {
				revised := fullRules()
				revised.Version = "test-2"
				revised.ExpenseSettlement.Enabled = false
				revised.LeaveEncashment.PaymentMode = rules.PaymentModeExpense
				versions = &versionedRules{current: "test-1", versions: map[string]*rules.Settlement{
					"test-1": fullRules(),
					"test-2": revised,
				}}
				provider = versions
				build()
			})

			It("completes under the version the settlement was calculated with", func() {
				st := approve()
				_, err := service.GenerateDocuments(ctx, manager, st.ID)
				Expect(err).NotTo(HaveOccurred())
				versions.current = "test-2"

				done, err := service.Complete(ctx, approver, st.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(done.RulesVersion).To(Equal("test-1"))

				var kinds []LedgerKind
				for _, b := range uow.state.bookings {
					kinds = append(kinds, b.Kind)
				}
				Expect(kinds).To(ConsistOf(LedgerExpense, LedgerFuel))
			})

			It("falls back to the current rules when the stored version is gone", func() {
				st := approve()
				_, err := service.GenerateDocuments(ctx, manager, st.ID)
				Expect(err).NotTo(HaveOccurred())
				versions.current = "test-2"
				delete(versions.versions, "test-1")

				_, err = service.Complete(ctx, approver, st.ID)
				Expect(err).NotTo(HaveOccurred())

				Expect(uow.state.bookings).To(HaveLen(1))
				Expect(uow.state.bookings[0].Kind).To(Equal(LedgerKind("leave_encashment")))
			})
		})

		It("books the encashment on the ledger in expense payment mode", func() {
			ruleSet.LeaveEncashment.PaymentMode = rules.PaymentModeExpense
			build()
			st := approve()
			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Complete(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(uow.state.bookings).To(ContainElement(ledgerBooking{
				UserID: employeeID, SettlementID: st.ID, Kind: "leave_encashment", Amount: st.LeaveEncashmentAmount,
			}))
		})

		It("rolls back every side effect when one fails", func() {
			st := approve()
			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			uow.archiveErr = stderrors.New("disk full")

			_, err = service.Complete(ctx, approver, st.ID)
			Expect(err).To(HaveOccurred())

			stored, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(StatusDocumentsGenerated))
			Expect(uow.state.consumed).To(BeEmpty())
			Expect(uow.state.bookings).To(BeEmpty())
		})

		It("keeps the status when rendering fails", func() {
			st := approve()
			docs.err = stderrors.New("renderer down")

			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(stderrors.Is(err, ErrDocumentGeneration)).To(BeTrue())

			stored, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(StatusApproved))
		})

		It("refuses to cancel a completed settlement", func() {
			st := approve()
			_, err := service.GenerateDocuments(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Complete(ctx, approver, st.ID)
			Expect(err).NotTo(HaveOccurred())

			err = service.Cancel(ctx, manager, st.ID, CancelDTO{})
			Expect(stderrors.Is(err, ErrAlreadyCompleted)).To(BeTrue())
		})
	})

	Describe("Cancel", func() {
		It("clears the exit fields so a fresh settlement can start", func() {
			st := initiate()
			_, err := service.Calculate(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.Cancel(ctx, manager, st.ID, CancelDTO{Remarks: strPtr("withdrew resignation")})).To(Succeed())

			emp := storedEmployee()
			Expect(emp.HasOpenExit()).To(BeFalse())
			Expect(emp.ExitReason).To(BeNil())

			cancelled, err := service.GetByID(ctx, manager, st.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.Status).To(Equal(StatusCancelled))
			Expect(*cancelled.CancelledBy).To(Equal(manager.UserID))

			fresh := initiate()
			Expect(fresh.ID).NotTo(Equal(st.ID))
			Expect(fresh.Status).To(Equal(StatusInitiated))
			Expect(fresh.NetPayable.IsZero()).To(BeTrue())
			Expect(fresh.CalculatedAt).To(BeNil())
		})

		It("refuses to cancel twice", func() {
			st := initiate()
			Expect(service.Cancel(ctx, manager, st.ID, CancelDTO{})).To(Succeed())

			err := service.Cancel(ctx, manager, st.ID, CancelDTO{})
			Expect(stderrors.Is(err, ErrAlreadyCancelled)).To(BeTrue())
		})
	})

	Describe("reads", func() {
		It("lets employees read their own settlements only", func() {
			st := initiate()

			_, err := service.GetByID(ctx, self, st.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetByID(ctx, stranger, st.ID)
			Expect(stderrors.Is(err, ErrUnauthorizedAccess)).To(BeTrue())

			list, err := service.ListByUser(ctx, self, employeeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))

			_, err = service.ListByUser(ctx, stranger, employeeID)
			Expect(stderrors.Is(err, ErrUnauthorizedAccess)).To(BeTrue())
		})
	})
})
