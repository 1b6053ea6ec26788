package handler

import (
	"encoding/csv"
	"net/http"
	"time"

	"expensetracker/internal/middleware"
	"expensetracker/internal/model"
	"expensetracker/internal/service"
	"expensetracker/pkg/pagination"
	"expensetracker/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService      service.AdminService
	statisticsService service.StatisticsService
	auth              *middleware.Authenticator
}

func NewAdminHandler(adminService service.AdminService, statisticsService service.StatisticsService, auth *middleware.Authenticator) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		statisticsService: statisticsService,
		auth:              auth,
	}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/api/admin", h.auth.RequireRole(model.RoleAdmin))
	{
		admin.GET("/expenses", h.ListRequests)
		// bulk-status before :id so the literal segment wins
		admin.PUT("/expenses/bulk-status", h.BulkSetStatus)
		admin.GET("/expenses/:id", h.GetRequest)
		admin.PUT("/expenses/:id/status", h.SetStatus)
		admin.GET("/dashboard/stats", h.DashboardStats)
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.GET("/export", h.Export)
	}
}

// ListRequests returns all requests matching the filter, paginated
// @Summary      List requests (admin)
// @Description  Paginated request listing filtered by status, department and type
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status      query  string  false  "Status filter (pending/approved/rejected)"
// @Param        department  query  string  false  "Department filter"
// @Param        type        query  string  false  "Request type filter (purchase/expense)"
// @Param        page        query  int     false  "Page number (default 1)"
// @Param        limit       query  int     false  "Items per page (default 10, max 100)"
// @Success      200  {object}  response.Response
// @Router       /api/admin/expenses [get]
func (h *AdminHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.AdminListFilter{
		Status:      normalizeAll(c.Query("status")),
		Department:  normalizeAll(c.Query("department")),
		RequestType: c.Query("type"),
		Page:        params.Page,
		Limit:       params.Limit,
	}

	requests, total, err := h.adminService.List(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests":     requests,
		"total":        total,
		"total_pages":  pagination.TotalPages(total, params.Limit),
		"current_page": params.Page,
		"limit":        params.Limit,
	}))
}

func (h *AdminHandler) GetRequest(c *gin.Context) {
	request, err := h.adminService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// SetStatus approves or rejects a pending request
// @Summary      Decide a request
// @Description  Transitions a pending request to approved or rejected with admin notes
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string                true  "Request ID"
// @Param        payload  body  service.SetStatusDTO  true  "Decision Payload"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/admin/expenses/{id}/status [put]
func (h *AdminHandler) SetStatus(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	var req service.SetStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithDetail(http.StatusBadRequest, "Invalid request payload", err.Error()))
		return
	}

	updated, err := h.adminService.SetStatus(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "Status updated successfully", updated))
}

// BulkSetStatus applies one decision to many requests, best-effort per id
func (h *AdminHandler) BulkSetStatus(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	var req service.BulkSetStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithDetail(http.StatusBadRequest, "Invalid request payload", err.Error()))
		return
	}

	result, err := h.adminService.BulkSetStatus(c.Request.Context(), identity, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "Bulk status update completed", result))
}

// DashboardStats returns the aggregate dashboard view
func (h *AdminHandler) DashboardStats(c *gin.Context) {
	stats, err := h.statisticsService.DashboardStats(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, users))
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	detail, err := h.adminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// Export returns filtered requests as JSON rows, or CSV with ?format=csv
// @Summary      Export requests
// @Description  Exports requests filtered by date range, status and department
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query  string  false  "Start date (RFC3339)"
// @Param        end_date    query  string  false  "End date (RFC3339)"
// @Param        status      query  string  false  "Status filter"
// @Param        department  query  string  false  "Department filter"
// @Param        format      query  string  false  "csv for CSV output"
// @Success      200  {object}  response.Response
// @Router       /api/admin/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	filter := service.ExportFilter{
		Status:     normalizeAll(c.Query("status")),
		Department: normalizeAll(c.Query("department")),
	}

	if raw := c.Query("start_date"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("end_date"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
		filter.To = &to
	}

	rows, err := h.adminService.Export(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		h.writeCSV(c, rows)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "Export successful", map[string]interface{}{
		"data":          rows,
		"total_records": len(rows),
	}))
}

func (h *AdminHandler) writeCSV(c *gin.Context, rows []service.ExportRow) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="requests-export.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"Request ID", "Employee Name", "Employee Email", "Department", "Title",
		"Description", "Amount", "Currency", "Category", "Priority", "Status",
		"Request Date", "Processed Date", "Admin Notes",
	})
	for _, row := range rows {
		_ = w.Write([]string{
			row.RequestID, row.EmployeeName, row.EmployeeEmail, row.Department,
			row.Title, row.Description, row.Amount, row.Currency, row.Category,
			row.Priority, row.Status, row.RequestDate, row.ProcessedAt, row.AdminNotes,
		})
	}
	w.Flush()
}

// normalizeAll treats the literal "all" filter value as no filter
func normalizeAll(value string) string {
	if value == "all" {
		return ""
	}
	return value
}
