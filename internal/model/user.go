package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enum constants
const (
	RoleEmployee = "employee"
	RoleAdmin    = "admin"
)

// User represents an employee or administrator account. Admins are regular
// users carrying the admin role rather than a separate collection.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password     string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	EmployeeCode string         `gorm:"type:varchar(50)" json:"employee_code"`
	Department   string         `gorm:"type:varchar(100);not null" json:"department"`
	Role         string         `gorm:"type:varchar(20);not null;default:'employee'" json:"role"` // employee, admin
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}
