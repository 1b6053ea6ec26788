package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestType enum constants
const (
	RequestTypePurchase = "purchase"
	RequestTypeExpense  = "expense"
)

// Priority enum constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Status enum constants. Pending is the only mutable state.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request represents an expense or purchase request with its approval lifecycle.
// Employee name/email/department are a snapshot taken at creation time and are
// never resynced when the user record changes later.
type Request struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index" json:"employee_id"`

	// Owner snapshot (denormalized at creation)
	EmployeeName  string `gorm:"type:varchar(255);not null" json:"employee_name"`
	EmployeeEmail string `gorm:"type:varchar(255);not null" json:"employee_email"`
	Department    string `gorm:"type:varchar(100);not null;index" json:"department"`

	RequestType string `gorm:"type:varchar(20);not null;index" json:"request_type"` // purchase, expense
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Category    string `gorm:"type:varchar(100);not null" json:"category"`
	Priority    string `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`

	// Amount is derived from items (sum of quantity * unit_price) when items
	// are present, otherwise taken from the submitted draft.
	Amount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	Currency string          `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`

	Status string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Admin decision fields, null until an admin acts
	AdminNotes  string     `gorm:"type:text" json:"admin_notes"`
	AdminID     *uuid.UUID `gorm:"type:uuid" json:"admin_id"`
	AdminName   string     `gorm:"type:varchar(255)" json:"admin_name"`
	ProcessedAt *time.Time `json:"processed_at"`

	// Uploaded file references
	InvoiceImage string       `gorm:"type:text" json:"invoice_image"`
	BillImage    string       `gorm:"type:text" json:"bill_image"`
	Attachments  []Attachment `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"attachments"`

	Items []RequestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items"`

	RequestDate time.Time  `gorm:"not null;index" json:"request_date"`
	DueDate     *time.Time `json:"due_date"`

	// Reimbursement fields for the expense payout flow
	PaymentMethod string     `gorm:"type:varchar(30)" json:"payment_method"`
	PaymentDate   *time.Time `json:"payment_date"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RequestItem is a line item on a purchase request. Items without a
// description are dropped during ingestion instead of being rejected.
type RequestItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"request_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
}

// Attachment records an uploaded file reference on a request
type Attachment struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID    uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	Filename     string    `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalName string    `gorm:"type:varchar(255)" json:"original_name"`
	Path         string    `gorm:"type:text;not null" json:"path"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// Subtotal returns quantity * unit_price for a line item
func (i RequestItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
