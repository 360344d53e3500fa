// Package rules holds the typed settlement rule set. Rules are validated once
// when they are loaded; consumers receive either a valid set or
// ErrNotConfigured.
package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	// PaymentModeSettlement pays leave encashment inside the settlement net payable.
	PaymentModeSettlement PaymentMode = "SETTLEMENT"
	// PaymentModeExpense additionally books the encashment as a settled expense
	// ledger entry when the settlement completes.
	PaymentModeExpense PaymentMode = "EXPENSE"
)

var ErrNotConfigured = errors.New("settlement rules are not configured")

type Settlement struct {
	Version           string            `mapstructure:"version" json:"version"`
	NoticePeriod      NoticePeriod      `mapstructure:"notice_period" json:"notice_period"`
	Gratuity          Gratuity          `mapstructure:"gratuity" json:"gratuity"`
	LeaveEncashment   LeaveEncashment   `mapstructure:"leave_encashment" json:"leave_encashment"`
	ExpenseSettlement ExpenseSettlement `mapstructure:"expense_settlement" json:"expense_settlement"`
	AssetClearance    Clearance         `mapstructure:"asset_clearance" json:"asset_clearance"`
	VehicleClearance  Clearance         `mapstructure:"vehicle_clearance" json:"vehicle_clearance"`
	CardClearance     Clearance         `mapstructure:"card_clearance" json:"card_clearance"`
	Documents         Documents         `mapstructure:"documents" json:"documents"`
}

type NoticePeriod struct {
	Enabled         bool `mapstructure:"enabled" json:"enabled"`
	Days            int  `mapstructure:"days" json:"days" validate:"min=0,max=365"`
	RecoveryEnabled bool `mapstructure:"recovery_enabled" json:"recovery_enabled"`
	WaiverAllowed   bool `mapstructure:"waiver_allowed" json:"waiver_allowed"`
}

type Gratuity struct {
	Enabled         bool             `mapstructure:"enabled" json:"enabled"`
	MinServiceYears decimal.Decimal  `mapstructure:"min_service_years" json:"min_service_years"`
	MaxAmount       *decimal.Decimal `mapstructure:"max_amount" json:"max_amount,omitempty"`
}

type LeaveEncashment struct {
	Enabled     bool        `mapstructure:"enabled" json:"enabled"`
	Categories  []string    `mapstructure:"categories" json:"categories" validate:"required_if=Enabled true,dive,required"`
	PaymentMode PaymentMode `mapstructure:"payment_mode" json:"payment_mode" validate:"omitempty,oneof=SETTLEMENT EXPENSE"`
	MaxDays     *int        `mapstructure:"max_days" json:"max_days,omitempty" validate:"omitempty,min=0"`
}

type ExpenseSettlement struct {
	Enabled             bool `mapstructure:"enabled" json:"enabled"`
	IncludeExpenses     bool `mapstructure:"include_expenses" json:"include_expenses"`
	IncludeFuelExpenses bool `mapstructure:"include_fuel_expenses" json:"include_fuel_expenses"`
}

type Clearance struct {
	Enabled           bool `mapstructure:"enabled" json:"enabled"`
	BlockFnfIfPending bool `mapstructure:"block_fnf_if_pending" json:"block_fnf_if_pending"`
}

// Blocks reports whether a pending domain under this rule stops approval.
func (c Clearance) Blocks() bool {
	return c.Enabled && c.BlockFnfIfPending
}

type Documents struct {
	RelievingLetter      bool   `mapstructure:"relieving_letter" json:"relieving_letter"`
	ExperienceLetter     bool   `mapstructure:"experience_letter" json:"experience_letter"`
	SettlementStatement  bool   `mapstructure:"settlement_statement" json:"settlement_statement"`
	FinalPayslip         bool   `mapstructure:"final_payslip" json:"final_payslip"`
	CompanyName          string `mapstructure:"company_name" json:"company_name" validate:"max=200"`
	SignatoryName        string `mapstructure:"signatory_name" json:"signatory_name" validate:"max=200"`
	SignatoryDesignation string `mapstructure:"signatory_designation" json:"signatory_designation" validate:"max=200"`
}

// EffectivePaymentMode defaults an empty mode to SETTLEMENT.
func (l LeaveEncashment) EffectivePaymentMode() PaymentMode {
	if l.PaymentMode == "" {
		return PaymentModeSettlement
	}
	return l.PaymentMode
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags and the decimal fields validator cannot reach.
func (s *Settlement) Validate() error {
	if s == nil {
		return ErrNotConfigured
	}

	var errs []string
	if err := structValidator().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if s.Gratuity.MinServiceYears.IsNegative() {
		errs = append(errs, "gratuity.min_service_years must not be negative")
	}
	if s.Gratuity.MaxAmount != nil && s.Gratuity.MaxAmount.IsNegative() {
		errs = append(errs, "gratuity.max_amount must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid settlement rules: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Provider yields the rule set in force.
type Provider interface {
	Current(ctx context.Context) (*Settlement, error)
}

// VersionLookup finds a rule set by version, in force or not. An unknown
// version is ErrNotConfigured.
type VersionLookup interface {
	ByVersion(ctx context.Context, version string) (*Settlement, error)
}

// Static serves a rule set fixed at construction, typically the one read
// from config.
type Static struct {
	rules *Settlement
	err   error
}

func NewStatic(s *Settlement) *Static {
	if s == nil {
		return &Static{err: ErrNotConfigured}
	}
	if err := s.Validate(); err != nil {
		return &Static{err: fmt.Errorf("%w: %v", ErrNotConfigured, err)}
	}
	cp := *s
	return &Static{rules: &cp}
}

func (p *Static) Current(_ context.Context) (*Settlement, error) {
	if p.err != nil {
		return nil, p.err
	}
	cp := *p.rules
	return &cp, nil
}

func (p *Static) ByVersion(ctx context.Context, version string) (*Settlement, error) {
	s, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}
	if s.Version != version {
		return nil, fmt.Errorf("%w: version %q", ErrNotConfigured, version)
	}
	return s, nil
}

// Chain asks each provider in turn and returns the first rule set found.
// Only ErrNotConfigured moves on to the next provider; other errors stop the
// lookup.
type Chain []Provider

func (c Chain) Current(ctx context.Context) (*Settlement, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		s, err := p.Current(ctx)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
	}
	return nil, ErrNotConfigured
}

// ByVersion asks each member that can look versions up, in order.
func (c Chain) ByVersion(ctx context.Context, version string) (*Settlement, error) {
	for _, p := range c {
		lookup, ok := p.(VersionLookup)
		if !ok || p == nil {
			continue
		}
		s, err := lookup.ByVersion(ctx, version)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: version %q", ErrNotConfigured, version)
}

// DecimalHookFunc lets viper decode numbers and numeric strings into
// decimal.Decimal fields.
func DecimalHookFunc() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case uint64:
			return decimal.NewFromUint64(v), nil
		}
		return data, nil
	}
}
