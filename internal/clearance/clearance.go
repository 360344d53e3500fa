package clearance

import (
	"context"
	"fmt"

	"github.com/frahmantamala/hr-ops/internal/settlement"
	"github.com/jmoiron/sqlx"
)

const (
	assignedAssetsQuery = `
		SELECT id, asset_tag AS identifier, COALESCE(description, '') AS description
		FROM asset_assignments
		WHERE user_id = ? AND returned_at IS NULL
		ORDER BY assigned_at, id`

	assignedVehiclesQuery = `
		SELECT id, registration_no AS identifier, COALESCE(description, '') AS description
		FROM vehicle_assignments
		WHERE user_id = ? AND returned_at IS NULL
		ORDER BY assigned_at, id`

	activeCardsQuery = `
		SELECT id, card_number AS identifier, COALESCE(card_type, '') AS description
		FROM card_assignments
		WHERE user_id = ? AND deactivated_at IS NULL
		ORDER BY issued_at, id`
)

// Source reads outstanding assignments straight from the asset, fleet and
// access-card tables.
type Source struct {
	db *sqlx.DB
}

func NewSource(db *sqlx.DB) *Source {
	return &Source{db: db}
}

func (s *Source) AssignedAssets(ctx context.Context, userID int64) ([]settlement.ClearanceItem, error) {
	return s.list(ctx, "assets", assignedAssetsQuery, userID)
}

func (s *Source) AssignedVehicles(ctx context.Context, userID int64) ([]settlement.ClearanceItem, error) {
	return s.list(ctx, "vehicles", assignedVehiclesQuery, userID)
}

func (s *Source) AssignedCards(ctx context.Context, userID int64) ([]settlement.ClearanceItem, error) {
	return s.list(ctx, "cards", activeCardsQuery, userID)
}

func (s *Source) list(ctx context.Context, domain, query string, userID int64) ([]settlement.ClearanceItem, error) {
	items := []settlement.ClearanceItem{}
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("list assigned %s for user %d: %w", domain, userID, err)
	}
	return items, nil
}
