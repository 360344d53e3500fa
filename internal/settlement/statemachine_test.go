package settlement

import (
	stderrors "errors"

	errors "github.com/frahmantamala/hr-ops/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lifecycle transitions", func() {
	listed := func(from, to Status) bool {
		for _, t := range AllowedTargets(from) {
			if t == to {
				return true
			}
		}
		return false
	}

	It("moves along every listed edge", func() {
		for _, from := range AllStatuses() {
			for _, to := range AllowedTargets(from) {
				s := &Settlement{Status: from}
				Expect(Transition(s, to)).To(Succeed(), "%s -> %s", from, to)
				Expect(s.Status).To(Equal(to))
			}
		}
	})

	It("rejects every pair that is not listed and leaves the status untouched", func() {
		for _, from := range AllStatuses() {
			for _, to := range AllStatuses() {
				if listed(from, to) {
					continue
				}
				s := &Settlement{Status: from}
				err := Transition(s, to)
				Expect(err).To(HaveOccurred(), "%s -> %s", from, to)
				Expect(stderrors.Is(err, ErrInvalidStateTransition)).To(BeTrue(), "%s -> %s", from, to)
				Expect(s.Status).To(Equal(from))
			}
		}
	})

	It("lets every non-terminal status cancel", func() {
		for _, from := range AllStatuses() {
			if from.IsTerminal() {
				continue
			}
			Expect(CanTransition(from, StatusCancelled)).To(BeTrue(), string(from))
		}
	})

	It("never allows a self transition", func() {
		for _, s := range AllStatuses() {
			Expect(CanTransition(s, s)).To(BeFalse(), string(s))
		}
	})

	It("reports the current and target status", func() {
		err := CheckTransition(StatusInitiated, StatusCompleted)

		appErr, ok := errors.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(errors.ErrCodeInvalidStateTransition))
		Expect(appErr.Message).To(ContainSubstring("INITIATED"))
		Expect(appErr.Message).To(ContainSubstring("COMPLETED"))
		Expect(appErr.Details).To(Equal(TransitionDetails{Current: StatusInitiated, Target: StatusCompleted}))
	})

	DescribeTable("leaving a terminal status",
		func(current Status, want *errors.AppError) {
			err := CheckTransition(current, StatusCancelled)

			Expect(stderrors.Is(err, want)).To(BeTrue())
			Expect(stderrors.Is(err, ErrInvalidStateTransition)).To(BeTrue())
		},
		Entry("completed", StatusCompleted, ErrAlreadyCompleted),
		Entry("cancelled", StatusCancelled, ErrAlreadyCancelled),
	)

	It("returns a copy of the allowed targets", func() {
		targets := AllowedTargets(StatusInitiated)
		targets[0] = StatusCompleted

		Expect(AllowedTargets(StatusInitiated)).To(ConsistOf(StatusCalculated, StatusCancelled))
	})
})
