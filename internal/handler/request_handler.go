package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"expensetracker/internal/middleware"
	"expensetracker/internal/model"
	"expensetracker/internal/service"
	"expensetracker/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadSize = 5 << 20 // 5 MB

var allowedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
}

type RequestHandler struct {
	requestService    service.RequestService
	statisticsService service.StatisticsService
	auth              *middleware.Authenticator
	uploadDir         string
}

func NewRequestHandler(requestService service.RequestService, statisticsService service.StatisticsService, auth *middleware.Authenticator, uploadDir string) *RequestHandler {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	return &RequestHandler{
		requestService:    requestService,
		statisticsService: statisticsService,
		auth:              auth,
		uploadDir:         uploadDir,
	}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests", h.auth.RequireRole(model.RoleEmployee, model.RoleAdmin))
	{
		requests.POST("", h.Create)
		requests.GET("/user", h.ListOwn)
		requests.GET("/user/stats", h.OwnerStats)
		requests.GET("/:id", h.Get)
		requests.PUT("/:id", h.Update)
		requests.DELETE("/:id", h.Delete)
		requests.POST("/:id/invoice", h.UploadInvoice)
		requests.POST("/:id/bill", h.UploadBill)
		requests.POST("/:id/attachments", h.UploadAttachment)
	}
}

// Create submits a new expense or purchase request
func (h *RequestHandler) Create(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithDetail(http.StatusBadRequest, "Invalid request payload", err.Error()))
		return
	}

	created, err := h.requestService.Create(c.Request.Context(), identity, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Created(http.StatusCreated, "Request created successfully", created))
}

// ListOwn returns the caller's requests, newest first. Optional ?type=
// narrows to purchase or expense requests.
func (h *RequestHandler) ListOwn(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	requestType := c.Query("type")
	if requestType != "" && requestType != model.RequestTypePurchase && requestType != model.RequestTypeExpense {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request type filter"))
		return
	}

	requests, err := h.requestService.ListForOwner(c.Request.Context(), identity, requestType)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, requests))
}

// OwnerStats returns per-status counts and sums for the caller's requests
func (h *RequestHandler) OwnerStats(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	stats, err := h.statisticsService.OwnerStats(c.Request.Context(), identity)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

func (h *RequestHandler) Get(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	request, err := h.requestService.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

func (h *RequestHandler) Update(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	var patch service.UpdateRequestDTO
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithDetail(http.StatusBadRequest, "Invalid request payload", err.Error()))
		return
	}

	updated, err := h.requestService.Update(c.Request.Context(), identity, c.Param("id"), patch)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "Request updated successfully", updated))
}

func (h *RequestHandler) Delete(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	if err := h.requestService.Delete(c.Request.Context(), identity, c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "Request deleted successfully", nil))
}

func (h *RequestHandler) UploadInvoice(c *gin.Context) {
	h.upload(c, "invoice", service.AttachmentKindInvoice)
}

func (h *RequestHandler) UploadBill(c *gin.Context) {
	h.upload(c, "bill", service.AttachmentKindBill)
}

func (h *RequestHandler) UploadAttachment(c *gin.Context) {
	h.upload(c, "file", service.AttachmentKindGeneric)
}

// upload saves a validated multipart file under the upload directory with a
// unique name and records the reference on the request.
func (h *RequestHandler) upload(c *gin.Context, field, kind string) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Identity not found in context"))
		return
	}

	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "No file uploaded"))
		return
	}

	if err := validateUpload(file); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	if _, err := os.Stat(h.uploadDir); os.IsNotExist(err) {
		_ = os.MkdirAll(h.uploadDir, 0o755)
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(file.Filename))
	savePath := filepath.Join(h.uploadDir, filename)
	if err := c.SaveUploadedFile(file, savePath); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to save file"))
		return
	}

	updated, err := h.requestService.AttachFile(c.Request.Context(), identity, c.Param("id"), kind, service.AttachmentUpload{
		Filename:     filename,
		OriginalName: file.Filename,
		Path:         savePath,
	})
	if err != nil {
		// Stored file is orphaned when the request mutation fails
		_ = os.Remove(savePath)
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Created(http.StatusOK, "File uploaded successfully", updated))
}

func validateUpload(file *multipart.FileHeader) error {
	if file.Size > maxUploadSize {
		return fmt.Errorf("file exceeds the 5MB size limit")
	}
	contentType := strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0])
	if !allowedUploadTypes[contentType] {
		return fmt.Errorf("only JPEG, PNG, GIF and PDF files are allowed")
	}
	return nil
}
