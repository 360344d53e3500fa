package settlement

import (
	"context"

	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"golang.org/x/sync/errgroup"
)

type Domain string

const (
	DomainAssets   Domain = "Assets"
	DomainVehicles Domain = "Vehicles"
	DomainCards    Domain = "Cards"
)

// Domains is the fixed reporting order of clearance domains.
var Domains = []Domain{DomainAssets, DomainVehicles, DomainCards}

func ParseDomain(s string) (Domain, bool) {
	switch s {
	case "assets", "Assets", "ASSETS", "asset":
		return DomainAssets, true
	case "vehicles", "Vehicles", "VEHICLES", "vehicle":
		return DomainVehicles, true
	case "cards", "Cards", "CARDS", "card":
		return DomainCards, true
	}
	return "", false
}

// ClearanceItem is one thing still assigned to the employee.
type ClearanceItem struct {
	ID          int64  `json:"id" db:"id"`
	Identifier  string `json:"identifier" db:"identifier"`
	Description string `json:"description" db:"description"`
}

// ClearanceSource returns the items currently assigned to a user and not yet
// returned or deactivated.
type ClearanceSource interface {
	AssignedAssets(ctx context.Context, userID int64) ([]ClearanceItem, error)
	AssignedVehicles(ctx context.Context, userID int64) ([]ClearanceItem, error)
	AssignedCards(ctx context.Context, userID int64) ([]ClearanceItem, error)
}

type DomainVerdict struct {
	Domain   Domain          `json:"domain"`
	Status   ClearanceStatus `json:"status"`
	Pending  int             `json:"pending"`
	Blocking bool            `json:"blocking"`
	Items    []ClearanceItem `json:"items,omitempty"`
}

type ClearanceVerdict struct {
	SettlementID int64           `json:"settlement_id"`
	Domains      []DomainVerdict `json:"domains"`
	AllCleared   bool            `json:"all_cleared"`
	CanApprove   bool            `json:"can_approve"`
}

type ClearanceChecker struct {
	source ClearanceSource
}

func NewClearanceChecker(source ClearanceSource) *ClearanceChecker {
	return &ClearanceChecker{source: source}
}

func domainRule(r *rules.Settlement, d Domain) rules.Clearance {
	switch d {
	case DomainAssets:
		return r.AssetClearance
	case DomainVehicles:
		return r.VehicleClearance
	case DomainCards:
		return r.CardClearance
	}
	return rules.Clearance{}
}

// pendingItems queries every enabled domain concurrently. Disabled domains
// are absent from the result.
func (c *ClearanceChecker) pendingItems(ctx context.Context, userID int64, r *rules.Settlement) (map[Domain][]ClearanceItem, error) {
	lookups := map[Domain]func(context.Context, int64) ([]ClearanceItem, error){
		DomainAssets:   c.source.AssignedAssets,
		DomainVehicles: c.source.AssignedVehicles,
		DomainCards:    c.source.AssignedCards,
	}

	results := make([][]ClearanceItem, len(Domains))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range Domains {
		if !domainRule(r, d).Enabled {
			continue
		}
		lookup := lookups[d]
		i, d := i, d
		g.Go(func() error {
			items, err := lookup(gctx, userID)
			if err != nil {
				return newUpstreamError("clearance source ("+string(d)+")", err)
			}
			if items == nil {
				items = []ClearanceItem{}
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Domain][]ClearanceItem, len(Domains))
	for i, d := range Domains {
		if results[i] != nil {
			out[d] = results[i]
		}
	}
	return out, nil
}

// Snapshot sets the initial clearance status of each domain on s: disabled
// domains are NOT_APPLICABLE, domains with nothing assigned are CLEARED and
// the rest PENDING.
func (c *ClearanceChecker) Snapshot(ctx context.Context, s *Settlement, r *rules.Settlement) error {
	items, err := c.pendingItems(ctx, s.UserID, r)
	if err != nil {
		return err
	}
	for _, d := range Domains {
		assigned, enabled := items[d]
		switch {
		case !enabled:
			s.SetClearance(d, ClearanceNotApplicable)
		case len(assigned) == 0:
			s.SetClearance(d, ClearanceCleared)
		default:
			s.SetClearance(d, ClearancePending)
		}
	}
	return nil
}

// Verdict reports the stored status of each domain next to what is still
// assigned right now. Stored statuses are never changed here.
func (c *ClearanceChecker) Verdict(ctx context.Context, s *Settlement, r *rules.Settlement) (*ClearanceVerdict, error) {
	items, err := c.pendingItems(ctx, s.UserID, r)
	if err != nil {
		return nil, err
	}

	v := &ClearanceVerdict{
		SettlementID: s.ID,
		Domains:      make([]DomainVerdict, 0, len(Domains)),
		AllCleared:   AllClearancesDone(s),
	}
	for _, d := range Domains {
		assigned := items[d]
		v.Domains = append(v.Domains, DomainVerdict{
			Domain:   d,
			Status:   s.Clearance(d),
			Pending:  len(assigned),
			Blocking: domainRule(r, d).Blocks() && !s.Clearance(d).Done(),
			Items:    assigned,
		})
	}
	v.CanApprove = len(PendingBlockingDomains(s, r)) == 0
	return v, nil
}

// AllClearancesDone is true iff every domain is CLEARED or NOT_APPLICABLE.
func AllClearancesDone(s *Settlement) bool {
	for _, d := range Domains {
		if !s.Clearance(d).Done() {
			return false
		}
	}
	return true
}

// PendingBlockingDomains lists the domains whose rule blocks approval while
// they are still outstanding.
func PendingBlockingDomains(s *Settlement, r *rules.Settlement) []Domain {
	var pending []Domain
	for _, d := range Domains {
		if domainRule(r, d).Blocks() && !s.Clearance(d).Done() {
			pending = append(pending, d)
		}
	}
	return pending
}
