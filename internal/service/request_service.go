package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/model"
	"expensetracker/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RequestItemDTO struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type CreateRequestDTO struct {
	RequestType string           `json:"request_type" binding:"required,oneof=purchase expense"`
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	Amount      float64          `json:"amount"`
	Currency    string           `json:"currency"`
	Category    string           `json:"category" binding:"required"`
	Priority    string           `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *time.Time       `json:"due_date"`
	Items       []RequestItemDTO `json:"items"`
}

// UpdateRequestDTO applies partial update semantics: nil fields are left
// untouched, non-nil fields are applied even when they hold a zero value.
type UpdateRequestDTO struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Amount      *float64          `json:"amount"`
	Currency    *string           `json:"currency"`
	Category    *string           `json:"category"`
	Priority    *string           `json:"priority"`
	DueDate     *time.Time        `json:"due_date"`
	Items       *[]RequestItemDTO `json:"items"`
}

// AttachmentUpload describes a file already written to storage by the handler
type AttachmentUpload struct {
	Filename     string
	OriginalName string
	Path         string
}

// Attachment kind constants
const (
	AttachmentKindInvoice = "invoice"
	AttachmentKindBill    = "bill"
	AttachmentKindGeneric = "attachment"
)

type RequestItemResponse struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type RequestResponse struct {
	ID            string                `json:"id"`
	EmployeeID    string                `json:"employee_id"`
	EmployeeName  string                `json:"employee_name"`
	EmployeeEmail string                `json:"employee_email"`
	Department    string                `json:"department"`
	RequestType   string                `json:"request_type"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Amount        string                `json:"amount"`
	Currency      string                `json:"currency"`
	Category      string                `json:"category"`
	Priority      string                `json:"priority"`
	Status        string                `json:"status"`
	AdminNotes    string                `json:"admin_notes"`
	AdminID       *string               `json:"admin_id"`
	AdminName     string                `json:"admin_name"`
	ProcessedAt   *string               `json:"processed_at"`
	InvoiceImage  string                `json:"invoice_image"`
	BillImage     string                `json:"bill_image"`
	Attachments   []model.Attachment    `json:"attachments"`
	Items         []RequestItemResponse `json:"items"`
	RequestDate   string                `json:"request_date"`
	DueDate       *string               `json:"due_date"`
	PaymentMethod string                `json:"payment_method"`
	PaymentDate   *string               `json:"payment_date"`
	UpdatedAt     string                `json:"updated_at"`
}

// --- Interface ---

// RequestService enforces the request lifecycle: creation rules, ownership
// checks and the pending-only mutation guard.
type RequestService interface {
	Create(ctx context.Context, identity model.Identity, req CreateRequestDTO) (RequestResponse, error)
	Get(ctx context.Context, identity model.Identity, id string) (RequestResponse, error)
	ListForOwner(ctx context.Context, identity model.Identity, requestType string) ([]RequestResponse, error)
	Update(ctx context.Context, identity model.Identity, id string, patch UpdateRequestDTO) (RequestResponse, error)
	Delete(ctx context.Context, identity model.Identity, id string) error
	AttachFile(ctx context.Context, identity model.Identity, id, kind string, upload AttachmentUpload) (RequestResponse, error)
}

type requestService struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

// filterItems drops items with an empty description and applies the quantity
// and unit price defaults. Order of the surviving items is preserved.
func filterItems(items []RequestItemDTO) []model.RequestItem {
	result := make([]model.RequestItem, 0, len(items))
	for _, it := range items {
		if it.Description == "" {
			continue
		}
		quantity := it.Quantity
		if quantity == 0 {
			quantity = 1
		}
		result = append(result, model.RequestItem{
			Position:    len(result),
			Description: it.Description,
			Quantity:    quantity,
			UnitPrice:   decimal.NewFromFloat(it.UnitPrice),
		})
	}
	return result
}

func sumItems(items []model.RequestItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (s *requestService) Create(ctx context.Context, identity model.Identity, req CreateRequestDTO) (RequestResponse, error) {
	ownerID, err := uuid.Parse(identity.UserID)
	if err != nil {
		return RequestResponse{}, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	// Owner snapshot is pulled fresh from the user store at creation time
	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, ErrOwnerNotFound
		}
		return RequestResponse{}, fmt.Errorf("failed to load user: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	items := filterItems(req.Items)
	amount := decimal.NewFromFloat(req.Amount)
	if len(items) > 0 {
		amount = sumItems(items)
	}
	if amount.IsNegative() {
		return RequestResponse{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}

	request := model.Request{
		EmployeeID:    owner.ID,
		EmployeeName:  owner.Name,
		EmployeeEmail: owner.Email,
		Department:    owner.Department,
		RequestType:   req.RequestType,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      priority,
		Amount:        amount,
		Currency:      currency,
		Status:        model.StatusPending,
		Items:         items,
		RequestDate:   time.Now(),
		DueDate:       req.DueDate,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.requestRepo.Create(txCtx, &request); createErr != nil {
			return fmt.Errorf("failed to create request: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"request_type": request.RequestType,
			"category":     request.Category,
			"amount":       request.Amount.StringFixed(2),
			"currency":     request.Currency,
			"item_count":   len(request.Items),
		})
		audit := &model.AuditLog{
			UserID:     &owner.ID,
			Action:     model.ActionCreateRequest,
			EntityID:   request.ID.String(),
			EntityName: request.Title,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	return toRequestResponse(request), nil
}

func (s *requestService) load(ctx context.Context, id string) (*model.Request, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return request, nil
}

func (s *requestService) Get(ctx context.Context, identity model.Identity, id string) (RequestResponse, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return RequestResponse{}, err
	}

	if request.EmployeeID.String() != identity.UserID && !identity.IsAdmin() {
		return RequestResponse{}, ErrForbidden
	}

	return toRequestResponse(*request), nil
}

func (s *requestService) ListForOwner(ctx context.Context, identity model.Identity, requestType string) ([]RequestResponse, error) {
	ownerID, err := uuid.Parse(identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	filter := repository.RequestFilter{EmployeeID: &ownerID, RequestType: requestType}
	requests, err := s.requestRepo.FindByFilter(ctx, filter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, nil
}

func (s *requestService) Update(ctx context.Context, identity model.Identity, id string, patch UpdateRequestDTO) (RequestResponse, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return RequestResponse{}, err
	}

	if request.EmployeeID.String() != identity.UserID {
		return RequestResponse{}, ErrForbidden
	}
	if request.Status != model.StatusPending {
		return RequestResponse{}, ErrInvalidState
	}

	if patch.Title != nil {
		request.Title = *patch.Title
	}
	if patch.Description != nil {
		request.Description = *patch.Description
	}
	if patch.Currency != nil {
		request.Currency = *patch.Currency
	}
	if patch.Category != nil {
		request.Category = *patch.Category
	}
	if patch.Priority != nil {
		if *patch.Priority != model.PriorityLow && *patch.Priority != model.PriorityMedium && *patch.Priority != model.PriorityHigh {
			return RequestResponse{}, fmt.Errorf("%w: invalid priority", ErrValidation)
		}
		request.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		request.DueDate = patch.DueDate
	}
	if patch.Amount != nil {
		amount := decimal.NewFromFloat(*patch.Amount)
		if amount.IsNegative() {
			return RequestResponse{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
		}
		request.Amount = amount
	}

	// An items patch re-filters and recomputes the amount exactly as Create
	// does. When no item survives filtering the amount falls back to the
	// declared amount from the patch, or zero when none was given.
	var newItems []model.RequestItem
	itemsPatched := patch.Items != nil
	if itemsPatched {
		newItems = filterItems(*patch.Items)
		if len(newItems) > 0 {
			request.Amount = sumItems(newItems)
		} else if patch.Amount == nil {
			request.Amount = decimal.Zero
		}
		if request.Amount.IsNegative() {
			return RequestResponse{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var saveErr error
		if itemsPatched {
			saveErr = s.requestRepo.ReplaceItems(txCtx, request, newItems)
		} else {
			saveErr = s.requestRepo.Update(txCtx, request)
		}
		if saveErr != nil {
			return fmt.Errorf("failed to update request: %w", saveErr)
		}

		ownerID := request.EmployeeID
		details, _ := json.Marshal(map[string]interface{}{
			"amount":   request.Amount.StringFixed(2),
			"currency": request.Currency,
		})
		audit := &model.AuditLog{
			UserID:     &ownerID,
			Action:     model.ActionUpdateRequest,
			EntityID:   request.ID.String(),
			EntityName: request.Title,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	return toRequestResponse(*request), nil
}

func (s *requestService) Delete(ctx context.Context, identity model.Identity, id string) error {
	request, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if request.EmployeeID.String() != identity.UserID {
		return ErrForbidden
	}
	if request.Status != model.StatusPending {
		return ErrInvalidState
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if deleteErr := s.requestRepo.Delete(txCtx, request.ID); deleteErr != nil {
			return fmt.Errorf("failed to delete request: %w", deleteErr)
		}

		ownerID := request.EmployeeID
		audit := &model.AuditLog{
			UserID:     &ownerID,
			Action:     model.ActionDeleteRequest,
			EntityID:   request.ID.String(),
			EntityName: request.Title,
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
}

func (s *requestService) AttachFile(ctx context.Context, identity model.Identity, id, kind string, upload AttachmentUpload) (RequestResponse, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return RequestResponse{}, err
	}

	if request.EmployeeID.String() != identity.UserID {
		return RequestResponse{}, ErrForbidden
	}
	if request.Status != model.StatusPending {
		return RequestResponse{}, ErrInvalidState
	}

	switch kind {
	case AttachmentKindInvoice:
		request.InvoiceImage = upload.Path
	case AttachmentKindBill:
		request.BillImage = upload.Path
	case AttachmentKindGeneric:
		request.Attachments = append(request.Attachments, model.Attachment{
			RequestID:    request.ID,
			Filename:     upload.Filename,
			OriginalName: upload.OriginalName,
			Path:         upload.Path,
			UploadedAt:   time.Now(),
		})
	default:
		return RequestResponse{}, fmt.Errorf("%w: unknown attachment kind %q", ErrValidation, kind)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.requestRepo.Update(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to save attachment: %w", saveErr)
		}

		ownerID := request.EmployeeID
		details, _ := json.Marshal(map[string]interface{}{
			"kind":     kind,
			"filename": upload.Filename,
		})
		audit := &model.AuditLog{
			UserID:     &ownerID,
			Action:     model.ActionUploadAttachment,
			EntityID:   request.ID.String(),
			EntityName: request.Title,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	return toRequestResponse(*request), nil
}

// --- Helpers ---

func toRequestResponse(r model.Request) RequestResponse {
	resp := RequestResponse{
		ID:            r.ID.String(),
		EmployeeID:    r.EmployeeID.String(),
		EmployeeName:  r.EmployeeName,
		EmployeeEmail: r.EmployeeEmail,
		Department:    r.Department,
		RequestType:   r.RequestType,
		Title:         r.Title,
		Description:   r.Description,
		Amount:        r.Amount.StringFixed(2),
		Currency:      r.Currency,
		Category:      r.Category,
		Priority:      r.Priority,
		Status:        r.Status,
		AdminNotes:    r.AdminNotes,
		AdminName:     r.AdminName,
		InvoiceImage:  r.InvoiceImage,
		BillImage:     r.BillImage,
		Attachments:   r.Attachments,
		PaymentMethod: r.PaymentMethod,
		RequestDate:   r.RequestDate.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}

	if resp.Attachments == nil {
		resp.Attachments = []model.Attachment{}
	}

	resp.Items = make([]RequestItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		resp.Items = append(resp.Items, RequestItemResponse{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.StringFixed(2),
		})
	}

	if r.AdminID != nil {
		s := r.AdminID.String()
		resp.AdminID = &s
	}
	if r.ProcessedAt != nil {
		s := r.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	if r.DueDate != nil {
		s := r.DueDate.Format(time.RFC3339)
		resp.DueDate = &s
	}
	if r.PaymentDate != nil {
		s := r.PaymentDate.Format(time.RFC3339)
		resp.PaymentDate = &s
	}

	return resp
}
