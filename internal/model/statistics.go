package model

// StatusBucket holds count and amount sum for one status value
type StatusBucket struct {
	Status      string  `json:"status"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// DepartmentBucket holds count and amount sum for one department
type DepartmentBucket struct {
	Department  string  `json:"department"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// MonthBucket holds count and amount sum for one (year, month) of request_date
type MonthBucket struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// DashboardStats aggregates request totals for the admin dashboard
type DashboardStats struct {
	TotalRequests    int64              `json:"total_requests"`
	PendingRequests  int64              `json:"pending_requests"`
	ApprovedRequests int64              `json:"approved_requests"`
	RejectedRequests int64              `json:"rejected_requests"`
	TotalAmount      float64            `json:"total_amount"`
	ApprovedAmount   float64            `json:"approved_amount"`
	DepartmentStats  []DepartmentBucket `json:"department_stats"`
	MonthlyStats     []MonthBucket      `json:"monthly_stats"`
}

// OwnerStats aggregates a single employee's own requests
type OwnerStats struct {
	Stats         []StatusBucket `json:"stats"`
	TotalRequests int64          `json:"total_requests"`
	TotalAmount   float64        `json:"total_amount"`
}
