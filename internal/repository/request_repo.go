package repository

import (
	"context"
	"time"

	"expensetracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestFilter narrows request queries. Nil/empty fields are ignored.
type RequestFilter struct {
	EmployeeID  *uuid.UUID
	RequestType string
	Status      string
	Department  string
	From        *time.Time
	To          *time.Time
}

// RequestRepository defines data access for Request entities. Results are
// always ordered by request_date descending so listings are deterministic.
type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error)
	FindByFilter(ctx context.Context, filter RequestFilter, offset, limit int) ([]model.Request, error)
	CountByFilter(ctx context.Context, filter RequestFilter) (int64, error)
	Update(ctx context.Context, req *model.Request) error
	ReplaceItems(ctx context.Context, req *model.Request, items []model.RequestItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	var req model.Request
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Attachments").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func applyFilter(query *gorm.DB, filter RequestFilter) *gorm.DB {
	if filter.EmployeeID != nil {
		query = query.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.RequestType != "" {
		query = query.Where("request_type = ?", filter.RequestType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.From != nil {
		query = query.Where("request_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("request_date <= ?", *filter.To)
	}
	return query
}

func (r *requestRepository) FindByFilter(ctx context.Context, filter RequestFilter, offset, limit int) ([]model.Request, error) {
	var requests []model.Request
	query := applyFilter(GetDB(ctx, r.db), filter).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Attachments").
		Order("request_date DESC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) CountByFilter(ctx context.Context, filter RequestFilter) (int64, error) {
	var total int64
	err := applyFilter(GetDB(ctx, r.db).Model(&model.Request{}), filter).Count(&total).Error
	return total, err
}

func (r *requestRepository) Update(ctx context.Context, req *model.Request) error {
	return GetDB(ctx, r.db).Save(req).Error
}

// ReplaceItems swaps a request's line items for a new set and saves the
// request itself, keeping the derived amount and its items consistent.
func (r *requestRepository) ReplaceItems(ctx context.Context, req *model.Request, items []model.RequestItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("request_id = ?", req.ID).Delete(&model.RequestItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].RequestID = req.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	req.Items = items
	return db.Omit("Items", "Attachments").Save(req).Error
}

func (r *requestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Request{}).Error
}
