package leave

import (
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/shopspring/decimal"
)

// Debit is the number of days to take out of one category's balance.
type Debit struct {
	Category string
	Days     decimal.Decimal
}

// PlanConsumption spreads days across the balances in the order of
// categories, never taking more than a category has available. Days that
// cannot be covered are left unplanned.
func PlanConsumption(balances []settlement.LeaveBalance, categories []string, days decimal.Decimal) []Debit {
	byCategory := make(map[string]settlement.LeaveBalance, len(balances))
	for _, b := range balances {
		byCategory[b.Category] = b
	}

	remaining := days
	var plan []Debit
	for _, c := range categories {
		if !remaining.IsPositive() {
			break
		}
		b, ok := byCategory[c]
		if !ok {
			continue
		}
		take := decimal.Min(remaining, b.Available())
		if !take.IsPositive() {
			continue
		}
		plan = append(plan, Debit{Category: c, Days: take})
		remaining = remaining.Sub(take)
	}
	return plan
}
