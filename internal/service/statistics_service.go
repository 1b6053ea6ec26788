package service

import (
	"context"
	"fmt"

	"expensetracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatisticsService computes read-only aggregate views over the request store
type StatisticsService interface {
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
	OwnerStats(ctx context.Context, identity model.Identity) (model.OwnerStats, error)
}

type statisticsService struct {
	db *gorm.DB
}

func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// DashboardStats aggregates totals, per-status counts, and the department and
// monthly breakdowns for the admin dashboard. Department rows tie-break on
// department name so the ordering stays deterministic.
func (s *statisticsService) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Request{}).Count(&stats.TotalRequests).Error; err != nil {
		return stats, fmt.Errorf("failed to count requests: %w", err)
	}
	if err := db.Model(&model.Request{}).Where("status = ?", model.StatusPending).Count(&stats.PendingRequests).Error; err != nil {
		return stats, fmt.Errorf("failed to count pending requests: %w", err)
	}
	if err := db.Model(&model.Request{}).Where("status = ?", model.StatusApproved).Count(&stats.ApprovedRequests).Error; err != nil {
		return stats, fmt.Errorf("failed to count approved requests: %w", err)
	}
	if err := db.Model(&model.Request{}).Where("status = ?", model.StatusRejected).Count(&stats.RejectedRequests).Error; err != nil {
		return stats, fmt.Errorf("failed to count rejected requests: %w", err)
	}

	var totalAmount struct{ Value float64 }
	if err := db.Model(&model.Request{}).
		Select("COALESCE(SUM(amount), 0) as value").
		Scan(&totalAmount).Error; err != nil {
		return stats, fmt.Errorf("failed to sum amounts: %w", err)
	}
	stats.TotalAmount = totalAmount.Value

	var approvedAmount struct{ Value float64 }
	if err := db.Model(&model.Request{}).
		Select("COALESCE(SUM(amount), 0) as value").
		Where("status = ?", model.StatusApproved).
		Scan(&approvedAmount).Error; err != nil {
		return stats, fmt.Errorf("failed to sum approved amounts: %w", err)
	}
	stats.ApprovedAmount = approvedAmount.Value

	var departmentStats []model.DepartmentBucket
	if err := db.Model(&model.Request{}).
		Select("department, COUNT(*) as count, COALESCE(SUM(amount), 0) as total_amount").
		Group("department").
		Order("count DESC, department ASC").
		Scan(&departmentStats).Error; err != nil {
		return stats, fmt.Errorf("failed to aggregate department stats: %w", err)
	}
	stats.DepartmentStats = departmentStats

	var monthlyStats []model.MonthBucket
	if err := db.Model(&model.Request{}).
		Select("EXTRACT(YEAR FROM request_date)::int as year, EXTRACT(MONTH FROM request_date)::int as month, COUNT(*) as count, COALESCE(SUM(amount), 0) as total_amount").
		Group("year, month").
		Order("year DESC, month DESC").
		Limit(12).
		Scan(&monthlyStats).Error; err != nil {
		return stats, fmt.Errorf("failed to aggregate monthly stats: %w", err)
	}
	stats.MonthlyStats = monthlyStats

	return stats, nil
}

// OwnerStats aggregates the caller's own requests grouped by status
func (s *statisticsService) OwnerStats(ctx context.Context, identity model.Identity) (model.OwnerStats, error) {
	var stats model.OwnerStats

	ownerID, err := uuid.Parse(identity.UserID)
	if err != nil {
		return stats, fmt.Errorf("%w: invalid user id", ErrValidation)
	}

	db := s.db.WithContext(ctx)

	var buckets []model.StatusBucket
	if err := db.Model(&model.Request{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(amount), 0) as total_amount").
		Where("employee_id = ?", ownerID).
		Group("status").
		Order("status ASC").
		Scan(&buckets).Error; err != nil {
		return stats, fmt.Errorf("failed to aggregate owner stats: %w", err)
	}
	stats.Stats = buckets

	if err := db.Model(&model.Request{}).
		Where("employee_id = ?", ownerID).
		Count(&stats.TotalRequests).Error; err != nil {
		return stats, fmt.Errorf("failed to count owner requests: %w", err)
	}

	var totalAmount struct{ Value float64 }
	if err := db.Model(&model.Request{}).
		Select("COALESCE(SUM(amount), 0) as value").
		Where("employee_id = ?", ownerID).
		Scan(&totalAmount).Error; err != nil {
		return stats, fmt.Errorf("failed to sum owner amounts: %w", err)
	}
	stats.TotalAmount = totalAmount.Value

	return stats, nil
}
