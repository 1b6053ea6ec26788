package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"expensetracker/internal/model"
	"expensetracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type AdminListFilter struct {
	Status      string
	Department  string
	RequestType string
	Page        int
	Limit       int
}

type SetStatusDTO struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type BulkSetStatusDTO struct {
	RequestIDs []string `json:"request_ids" binding:"required"`
	Status     string   `json:"status" binding:"required"`
	AdminNotes string   `json:"admin_notes"`
}

// BulkFailure reports one request id that could not be updated in a batch
type BulkFailure struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// BulkStatusResult accounts for every id in a best-effort batch
type BulkStatusResult struct {
	Updated  int           `json:"updated"`
	Failures []BulkFailure `json:"failures"`
}

type ExportFilter struct {
	From       *time.Time
	To         *time.Time
	Status     string
	Department string
}

// ExportRow is one flattened request for the admin export
type ExportRow struct {
	RequestID     string `json:"request_id"`
	EmployeeName  string `json:"employee_name"`
	EmployeeEmail string `json:"employee_email"`
	Department    string `json:"department"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Category      string `json:"category"`
	Priority      string `json:"priority"`
	Status        string `json:"status"`
	RequestDate   string `json:"request_date"`
	ProcessedAt   string `json:"processed_at"`
	AdminNotes    string `json:"admin_notes"`
}

type UserDetailResponse struct {
	User     model.User        `json:"user"`
	Requests []RequestResponse `json:"requests"`
}

// Notifier pushes decision events to connected dashboard clients
type Notifier interface {
	Publish(msg []byte)
}

// --- Interface ---

// AdminService is the admin review surface: browse, decide, export.
type AdminService interface {
	List(ctx context.Context, filter AdminListFilter) ([]RequestResponse, int64, error)
	Get(ctx context.Context, id string) (RequestResponse, error)
	SetStatus(ctx context.Context, admin model.Identity, id string, req SetStatusDTO) (RequestResponse, error)
	BulkSetStatus(ctx context.Context, admin model.Identity, req BulkSetStatusDTO) (BulkStatusResult, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id string) (UserDetailResponse, error)
	Export(ctx context.Context, filter ExportFilter) ([]ExportRow, error)
}

type adminService struct {
	requestRepo repository.RequestRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
}

func NewAdminService(
	requestRepo repository.RequestRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
) AdminService {
	return &adminService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
	}
}

// --- Implementation ---

func (s *adminService) List(ctx context.Context, filter AdminListFilter) ([]RequestResponse, int64, error) {
	repoFilter := repository.RequestFilter{
		Status:      filter.Status,
		Department:  filter.Department,
		RequestType: filter.RequestType,
	}

	total, err := s.requestRepo.CountByFilter(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	requests, err := s.requestRepo.FindByFilter(ctx, repoFilter, offset, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, total, nil
}

func (s *adminService) Get(ctx context.Context, id string) (RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, ErrNotFound
	}
	request, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, ErrNotFound
		}
		return RequestResponse{}, fmt.Errorf("failed to load request: %w", err)
	}
	return toRequestResponse(*request), nil
}

// SetStatus applies the pending -> approved/rejected transition. Terminal
// records are never re-processed.
func (s *adminService) SetStatus(ctx context.Context, admin model.Identity, id string, req SetStatusDTO) (RequestResponse, error) {
	if req.Status != model.StatusApproved && req.Status != model.StatusRejected {
		return RequestResponse{}, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidTransition)
	}

	adminID, err := uuid.Parse(admin.UserID)
	if err != nil {
		return RequestResponse{}, fmt.Errorf("%w: invalid admin id", ErrValidation)
	}
	adminUser, err := s.userRepo.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RequestResponse{}, ErrOwnerNotFound
		}
		return RequestResponse{}, fmt.Errorf("failed to load admin: %w", err)
	}

	requestID, err := uuid.Parse(id)
	if err != nil {
		return RequestResponse{}, ErrNotFound
	}

	var request *model.Request
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		request, findErr = s.requestRepo.FindByID(txCtx, requestID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load request: %w", findErr)
		}

		if request.Status != model.StatusPending {
			return fmt.Errorf("%w: request is already %s", ErrInvalidTransition, request.Status)
		}

		now := time.Now()
		request.Status = req.Status
		request.AdminNotes = req.AdminNotes
		request.AdminID = &adminUser.ID
		request.AdminName = adminUser.Name
		request.ProcessedAt = &now

		if saveErr := s.requestRepo.Update(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update request: %w", saveErr)
		}

		action := model.ActionApproveRequest
		if req.Status == model.StatusRejected {
			action = model.ActionRejectRequest
		}
		details, _ := json.Marshal(map[string]interface{}{
			"status":      req.Status,
			"admin_notes": req.AdminNotes,
		})
		audit := &model.AuditLog{
			UserID:     &adminUser.ID,
			Action:     action,
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

	s.notifyDecision(request)

	return toRequestResponse(*request), nil
}

// BulkSetStatus applies the SetStatus transition to each id independently.
// The batch is best-effort: a failing id never aborts the others, and each
// failure is reported back with its id.
func (s *adminService) BulkSetStatus(ctx context.Context, admin model.Identity, req BulkSetStatusDTO) (BulkStatusResult, error) {
	if req.Status != model.StatusApproved && req.Status != model.StatusRejected {
		return BulkStatusResult{}, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidTransition)
	}
	if len(req.RequestIDs) == 0 {
		return BulkStatusResult{}, fmt.Errorf("%w: no request ids provided", ErrValidation)
	}

	perID := SetStatusDTO{Status: req.Status, AdminNotes: req.AdminNotes}

	var mu sync.Mutex
	var wg sync.WaitGroup
	result := BulkStatusResult{Failures: []BulkFailure{}}

	for _, id := range req.RequestIDs {
		wg.Add(1)
		go func(requestID string) {
			defer wg.Done()
			_, err := s.SetStatus(ctx, admin, requestID, perID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, BulkFailure{RequestID: requestID, Error: err.Error()})
				return
			}
			result.Updated++
		}(id)
	}
	wg.Wait()

	return result, nil
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (UserDetailResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return UserDetailResponse{}, ErrOwnerNotFound
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserDetailResponse{}, ErrOwnerNotFound
		}
		return UserDetailResponse{}, fmt.Errorf("failed to load user: %w", err)
	}

	requests, err := s.requestRepo.FindByFilter(ctx, repository.RequestFilter{EmployeeID: &user.ID}, 0, 0)
	if err != nil {
		return UserDetailResponse{}, fmt.Errorf("failed to fetch user requests: %w", err)
	}

	detail := UserDetailResponse{User: *user, Requests: make([]RequestResponse, 0, len(requests))}
	for _, r := range requests {
		detail.Requests = append(detail.Requests, toRequestResponse(r))
	}
	return detail, nil
}

func (s *adminService) Export(ctx context.Context, filter ExportFilter) ([]ExportRow, error) {
	repoFilter := repository.RequestFilter{
		Status:     filter.Status,
		Department: filter.Department,
		From:       filter.From,
		To:         filter.To,
	}

	requests, err := s.requestRepo.FindByFilter(ctx, repoFilter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requests for export: %w", err)
	}

	rows := make([]ExportRow, 0, len(requests))
	for _, r := range requests {
		row := ExportRow{
			RequestID:     r.ID.String(),
			EmployeeName:  r.EmployeeName,
			EmployeeEmail: r.EmployeeEmail,
			Department:    r.Department,
			Title:         r.Title,
			Description:   r.Description,
			Amount:        r.Amount.StringFixed(2),
			Currency:      r.Currency,
			Category:      r.Category,
			Priority:      r.Priority,
			Status:        r.Status,
			RequestDate:   r.RequestDate.Format(time.RFC3339),
			AdminNotes:    r.AdminNotes,
		}
		if r.ProcessedAt != nil {
			row.ProcessedAt = r.ProcessedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *adminService) notifyDecision(request *model.Request) {
	if s.notifier == nil || request == nil {
		return
	}
	event, _ := json.Marshal(map[string]interface{}{
		"type":        "request_decision",
		"request_id":  request.ID.String(),
		"employee_id": request.EmployeeID.String(),
		"status":      request.Status,
		"admin_name":  request.AdminName,
	})
	s.notifier.Publish(event)
}
