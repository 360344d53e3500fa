package rules

import (
	"encoding/json"
	"time"
)

type RuleSet struct {
	ID        int64           `gorm:"primaryKey"`
	Version   string          `gorm:"column:version;not null;uniqueIndex"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	IsActive  bool            `gorm:"column:is_active;default:true"`
	CreatedBy *int64          `gorm:"column:created_by"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (RuleSet) TableName() string {
	return "settlement_rule_sets"
}
