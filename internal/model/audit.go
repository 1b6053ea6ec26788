package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateRequest    = "CREATE_REQUEST"
	ActionUpdateRequest    = "UPDATE_REQUEST"
	ActionDeleteRequest    = "DELETE_REQUEST"
	ActionApproveRequest   = "APPROVE_REQUEST"
	ActionRejectRequest    = "REJECT_REQUEST"
	ActionUploadAttachment = "UPLOAD_ATTACHMENT"
)

// AuditLog tracks Who, What, and When for request lifecycle changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Request uuid as string
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable title
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
