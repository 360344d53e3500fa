package employee

import (
	"errors"
	"time"

	employeeDatamodel "github.com/frahmantamala/hr-ops/internal/core/datamodel/employee"
)

type Employee struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	PasswordHash       string     `json:"-"`
	Department         string     `json:"department"`
	Designation        string     `json:"designation"`
	DateOfJoining      *time.Time `json:"date_of_joining,omitempty"`
	NoticePeriodWaived bool       `json:"notice_period_waived"`
	ExitDate           *time.Time `json:"exit_date,omitempty"`
	ExitReason         *string    `json:"exit_reason,omitempty"`
	LastWorkingDate    *time.Time `json:"last_working_date,omitempty"`
	IsActive           bool       `json:"is_active"`
	ArchivedAt         *time.Time `json:"archived_at,omitempty"`
	Permissions        []string   `json:"permissions,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ExitFields are the exit facts stored on the employee while a settlement is
// open.
type ExitFields struct {
	ExitDate           time.Time
	ExitReason         string
	LastWorkingDate    time.Time
	NoticePeriodWaived bool
}

func (e *Employee) HasPermission(permission string) bool {
	for _, p := range e.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (e *Employee) HasAnyPermission(permissions []string) bool {
	for _, userPerm := range e.Permissions {
		for _, requiredPerm := range permissions {
			if userPerm == requiredPerm {
				return true
			}
		}
	}
	return false
}

func (e *Employee) IsAdmin() bool {
	return e.HasPermission("admin")
}

func (e *Employee) IsArchived() bool {
	return e.ArchivedAt != nil
}

// HasOpenExit reports whether exit fields are currently recorded.
func (e *Employee) HasOpenExit() bool {
	return e.ExitDate != nil || e.LastWorkingDate != nil
}

var ErrNotFound = errors.New("employee not found")

func ToDataModel(e *Employee) *employeeDatamodel.Employee {
	return &employeeDatamodel.Employee{
		ID:                 e.ID,
		Email:              e.Email,
		Name:               e.Name,
		PasswordHash:       e.PasswordHash,
		Department:         e.Department,
		Designation:        e.Designation,
		DateOfJoining:      e.DateOfJoining,
		NoticePeriodWaived: e.NoticePeriodWaived,
		ExitDate:           e.ExitDate,
		ExitReason:         e.ExitReason,
		LastWorkingDate:    e.LastWorkingDate,
		IsActive:           e.IsActive,
		ArchivedAt:         e.ArchivedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func FromDataModel(e *employeeDatamodel.Employee) *Employee {
	return &Employee{
		ID:                 e.ID,
		Email:              e.Email,
		Name:               e.Name,
		PasswordHash:       e.PasswordHash,
		Department:         e.Department,
		Designation:        e.Designation,
		DateOfJoining:      e.DateOfJoining,
		NoticePeriodWaived: e.NoticePeriodWaived,
		ExitDate:           e.ExitDate,
		ExitReason:         e.ExitReason,
		LastWorkingDate:    e.LastWorkingDate,
		IsActive:           e.IsActive,
		ArchivedAt:         e.ArchivedAt,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
		Permissions:        []string{},
	}
}

func FromDataModelWithPermissions(e *employeeDatamodel.Employee, permissions []string) *Employee {
	domainEmployee := FromDataModel(e)
	domainEmployee.Permissions = permissions
	return domainEmployee
}
