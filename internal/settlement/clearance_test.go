package settlement

import (
	"context"
	stderrors "errors"
	"sync"

	errors "github.com/frahmantamala/hr-ops/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubClearanceSource struct {
	assets   []ClearanceItem
	vehicles []ClearanceItem
	cards    []ClearanceItem
	err      error

	mu    sync.Mutex
	calls map[Domain]int
}

func (s *stubClearanceSource) record(d Domain, items []ClearanceItem) ([]ClearanceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[Domain]int{}
	}
	s.calls[d]++
	if s.err != nil {
		return nil, s.err
	}
	return items, nil
}

func (s *stubClearanceSource) AssignedAssets(_ context.Context, _ int64) ([]ClearanceItem, error) {
	return s.record(DomainAssets, s.assets)
}

func (s *stubClearanceSource) AssignedVehicles(_ context.Context, _ int64) ([]ClearanceItem, error) {
	return s.record(DomainVehicles, s.vehicles)
}

func (s *stubClearanceSource) AssignedCards(_ context.Context, _ int64) ([]ClearanceItem, error) {
	return s.record(DomainCards, s.cards)
}

var _ = Describe("ClearanceChecker", func() {
	var (
		source  *stubClearanceSource
		checker *ClearanceChecker
		ctx     context.Context
	)

	BeforeEach(func() {
		source = &stubClearanceSource{
			assets: []ClearanceItem{{ID: 1, Identifier: "LAP-0042", Description: "Laptop"}},
		}
		checker = NewClearanceChecker(source)
		ctx = context.Background()
	})

	Describe("Snapshot", func() {
		It("marks domains with assigned items pending and empty ones cleared", func() {
			st := &Settlement{UserID: 7}
			Expect(checker.Snapshot(ctx, st, fullRules())).To(Succeed())

			Expect(st.AssetClearance).To(Equal(ClearancePending))
			Expect(st.VehicleClearance).To(Equal(ClearanceCleared))
			Expect(st.CardClearance).To(Equal(ClearanceNotApplicable))
		})

		It("does not query disabled domains", func() {
			Expect(checker.Snapshot(ctx, &Settlement{UserID: 7}, fullRules())).To(Succeed())

			Expect(source.calls[DomainCards]).To(BeZero())
			Expect(source.calls[DomainAssets]).To(Equal(1))
		})

		It("surfaces source failures as upstream errors", func() {
			source.err = stderrors.New("timeout")

			err := checker.Snapshot(ctx, &Settlement{UserID: 7}, fullRules())
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeUpstreamFailure))
		})
	})

	Describe("Verdict", func() {
		It("reports stored statuses next to the items still assigned", func() {
			st := &Settlement{
				ID:               3,
				UserID:           7,
				AssetClearance:   ClearancePending,
				VehicleClearance: ClearanceCleared,
				CardClearance:    ClearanceNotApplicable,
			}

			v, err := checker.Verdict(ctx, st, fullRules())
			Expect(err).NotTo(HaveOccurred())
			Expect(v.SettlementID).To(Equal(int64(3)))
			Expect(v.AllCleared).To(BeFalse())
			Expect(v.CanApprove).To(BeFalse())
			Expect(v.Domains).To(HaveLen(3))
			Expect(v.Domains[0].Domain).To(Equal(DomainAssets))
			Expect(v.Domains[0].Pending).To(Equal(1))
			Expect(v.Domains[0].Blocking).To(BeTrue())
			Expect(v.Domains[0].Items[0].Identifier).To(Equal("LAP-0042"))
			Expect(v.Domains[1].Blocking).To(BeFalse())
		})

		It("never flips a pending domain on its own", func() {
			source.assets = nil
			st := &Settlement{UserID: 7, AssetClearance: ClearancePending, VehicleClearance: ClearanceCleared, CardClearance: ClearanceNotApplicable}

			v, err := checker.Verdict(ctx, st, fullRules())
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Domains[0].Pending).To(BeZero())
			Expect(v.Domains[0].Status).To(Equal(ClearancePending))
			Expect(st.AssetClearance).To(Equal(ClearancePending))
		})
	})

	Describe("PendingBlockingDomains", func() {
		It("only lists domains whose rule blocks approval", func() {
			r := fullRules()
			r.VehicleClearance.BlockFnfIfPending = false
			st := &Settlement{AssetClearance: ClearancePending, VehicleClearance: ClearancePending, CardClearance: ClearancePending}

			Expect(PendingBlockingDomains(st, r)).To(Equal([]Domain{DomainAssets}))
			Expect(AllClearancesDone(st)).To(BeFalse())
		})

		It("treats not applicable as done", func() {
			st := &Settlement{AssetClearance: ClearanceCleared, VehicleClearance: ClearanceNotApplicable, CardClearance: ClearanceCleared}

			Expect(PendingBlockingDomains(st, fullRules())).To(BeEmpty())
			Expect(AllClearancesDone(st)).To(BeTrue())
		})
	})

	DescribeTable("ParseDomain",
		func(in string, want Domain, ok bool) {
			d, found := ParseDomain(in)
			Expect(found).To(Equal(ok))
			Expect(d).To(Equal(want))
		},
		Entry("lower case", "assets", DomainAssets, true),
		Entry("singular", "vehicle", DomainVehicles, true),
		Entry("upper case", "CARDS", DomainCards, true),
		Entry("unknown", "laptops", Domain(""), false),
	)
})
