package postgres

import (
	"context"
	"errors"
	"fmt"

	settlementDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/settlement"
	"github.com/frahmantamala/hr-ops/internal/settlement"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create relies on the unique index over active_user_id; the database must be
// opened with TranslateError so the violation surfaces as ErrDuplicatedKey.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	row := settlement.ToDataModel(s)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return settlement.ErrAlreadyHasActiveSettlement.WithMessage(
				fmt.Sprintf("employee %d already has an active settlement", s.UserID)).WithCause(err)
		}
		return err
	}
	s.ID = row.ID
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*settlement.Settlement, error) {
	return r.first(r.db.WithContext(ctx), id)
}

func (r *SettlementRepository) GetByIDForUpdate(ctx context.Context, id int64) (*settlement.Settlement, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *SettlementRepository) first(q *gorm.DB, id int64) (*settlement.Settlement, error) {
	var row settlementDatamodel.Settlement
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlement.ErrSettlementNotFound.WithMessage(fmt.Sprintf("settlement %d not found", id))
		}
		return nil, err
	}
	return settlement.FromDataModel(&row), nil
}

func (r *SettlementRepository) GetActiveByUserID(ctx context.Context, userID int64) (*settlement.Settlement, error) {
	var row settlementDatamodel.Settlement
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active_user_id IS NOT NULL", userID).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return settlement.FromDataModel(&row), nil
}

func (r *SettlementRepository) ListByUserID(ctx context.Context, userID int64) ([]*settlement.Settlement, error) {
	var rows []*settlementDatamodel.Settlement
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return settlement.FromDataModelSlice(rows), nil
}

// Update writes every column, so active_user_id is cleared once the
// settlement reaches a terminal status.
func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	row := settlement.ToDataModel(s)
	res := r.db.WithContext(ctx).Model(row).Select("*").Omit("id", "created_at").Updates(row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return settlement.ErrAlreadyHasActiveSettlement.WithCause(res.Error)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return settlement.ErrSettlementNotFound.WithMessage(fmt.Sprintf("settlement %d not found", s.ID))
	}
	s.UpdatedAt = row.UpdatedAt
	return nil
}
