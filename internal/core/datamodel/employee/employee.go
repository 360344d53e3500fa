package employee

import "time"

type Employee struct {
	ID                 int64      `gorm:"primaryKey"`
	Email              string     `gorm:"column:email;uniqueIndex;not null"`
	Name               string     `gorm:"column:name;not null"`
	PasswordHash       string     `gorm:"column:password_hash;not null"`
	Department         string     `gorm:"column:department"`
	Designation        string     `gorm:"column:designation"`
	DateOfJoining      *time.Time `gorm:"column:date_of_joining;type:date"`
	NoticePeriodWaived bool       `gorm:"column:notice_period_waived;default:false"`
	ExitDate           *time.Time `gorm:"column:exit_date;type:date"`
	ExitReason         *string    `gorm:"column:exit_reason"`
	LastWorkingDate    *time.Time `gorm:"column:last_working_date;type:date"`
	IsActive           bool       `gorm:"column:is_active;default:true"`
	ArchivedAt         *time.Time `gorm:"column:archived_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Employee) TableName() string {
	return "users"
}

type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type UserPermission struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       int64     `gorm:"column:user_id;not null"`
	PermissionID int64     `gorm:"column:permission_id;not null"`
	GrantedBy    *int64    `gorm:"column:granted_by"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
