package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rulesDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/rules"
	"github.com/frahmantamala/hr-ops/internal/core/rules"
	"gorm.io/gorm"
)

// RuleSetRepository stores versioned rule sets as JSON and serves the most
// recent active one. Older versions stay readable through ByVersion.
type RuleSetRepository struct {
	db *gorm.DB
}

func NewRuleSetRepository(db *gorm.DB) *RuleSetRepository {
	return &RuleSetRepository{db: db}
}

func (r *RuleSetRepository) Current(ctx context.Context) (*rules.Settlement, error) {
	var row rulesDatamodel.RuleSet
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rules.ErrNotConfigured
		}
		return nil, err
	}
	return decode(row)
}

// ByVersion returns the newest row stored under version, active or not.
func (r *RuleSetRepository) ByVersion(ctx context.Context, version string) (*rules.Settlement, error) {
	var row rulesDatamodel.RuleSet
	err := r.db.WithContext(ctx).
		Where("version = ?", version).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: version %q", rules.ErrNotConfigured, version)
		}
		return nil, err
	}
	return decode(row)
}

func decode(row rulesDatamodel.RuleSet) (*rules.Settlement, error) {
	var s rules.Settlement
	if err := json.Unmarshal(row.Payload, &s); err != nil {
		return nil, fmt.Errorf("%w: rule set %s is not valid JSON: %v", rules.ErrNotConfigured, row.Version, err)
	}
	if s.Version == "" {
		s.Version = row.Version
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: rule set %s: %v", rules.ErrNotConfigured, row.Version, err)
	}
	return &s, nil
}

// Publish validates s and stores it as the newest active version.
func (r *RuleSetRepository) Publish(ctx context.Context, s *rules.Settlement, createdBy *int64) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Version == "" {
		return errors.New("rule set version is required")
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal rule set: %w", err)
	}

	return r.db.WithContext(ctx).Create(&rulesDatamodel.RuleSet{
		Version:   s.Version,
		Payload:   payload,
		IsActive:  true,
		CreatedBy: createdBy,
	}).Error
}
