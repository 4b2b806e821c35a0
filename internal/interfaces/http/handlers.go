package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faktugo/faktugo-server/internal/application/port"
	"github.com/faktugo/faktugo-server/internal/application/service"
	"github.com/faktugo/faktugo-server/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	ingestService  service.IngestService
	invoiceService service.InvoiceService
	exportService  service.ExportService
	blobs          BlobServer
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	ingestService service.IngestService,
	invoiceService service.InvoiceService,
	exportService service.ExportService,
	blobs BlobServer,
	logger Logger,
) *Handlers {
	return &Handlers{
		ingestService:  ingestService,
		invoiceService: invoiceService,
		exportService:  exportService,
		blobs:          blobs,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                   string  `json:"id"`
	Date                 string  `json:"date"`
	Supplier             string  `json:"supplier"`
	Category             string  `json:"category"`
	Concept              string  `json:"concept,omitempty"`
	Amount               string  `json:"amount"`
	InvoiceNumber        string  `json:"invoice_number"`
	Status               string  `json:"status"`
	ArchivalOnly         bool    `json:"archival_only"`
	PeriodType           string  `json:"period_type"`
	PeriodKey            string  `json:"period_key"`
	FolderPath           string  `json:"folder_path"`
	FileNameOriginal     string  `json:"file_name_original"`
	UploadSource         string  `json:"upload_source"`
	SentToGestoriaAt     *string `json:"sent_to_gestoria_at,omitempty"`
	SentToGestoriaStatus string  `json:"sent_to_gestoria_status,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// UpdateInvoiceRequest carries the PATCH body. Absent fields stay unchanged.
type UpdateInvoiceRequest struct {
	Date          *string `json:"date"`
	Supplier      *string `json:"supplier"`
	Category      *string `json:"category"`
	Amount        *string `json:"amount"`
	InvoiceNumber *string `json:"invoice_number"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	PeriodKey string `form:"period_key"`
	Status    string `form:"status"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Upload handles POST /api/invoices/upload
func (h *Handlers) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Error("Invalid multipart request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid multipart request",
		})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "no files in request",
		})
		return
	}
	if len(fileHeaders) > service.MaxBatchFiles {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("too many files: máximo %d por envío", service.MaxBatchFiles),
		})
		return
	}

	files := make([]service.IncomingFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			h.logger.Error("Failed to open uploaded file", "name", header.Filename, "error", err)
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "failed to read uploaded files",
			})
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, service.MaxFileSize+1))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "failed to read uploaded files",
			})
			return
		}
		files = append(files, service.IncomingFile{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	opts := service.BatchOptions{
		ArchivalOnly:   truthy(c.PostForm("archivalOnly")),
		SendToGestoria: truthy(c.PostForm("sendToGestoria")),
		Source:         uploadSource(c.PostForm("uploadSource")),
	}

	results, err := h.ingestService.ProcessBatch(c.Request.Context(), ownerID(c), files, opts)
	if err != nil {
		var quotaErr *service.QuotaError
		if errors.As(err, &quotaErr) {
			c.JSON(http.StatusTooManyRequests, Response{
				Success: false,
				Error:   quotaErr.Error(),
			})
			return
		}
		h.logger.Error("Batch upload rejected", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	// The upload response is the per-file result array itself, not the
	// envelope: clients walk it index-aligned with the files they sent.
	c.JSON(http.StatusOK, results)
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	invoices, err := h.invoiceService.List(c.Request.Context(), ownerID(c), port.InvoiceFilter{
		PeriodKey: req.PeriodKey,
		Status:    req.Status,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		h.logger.Error("Failed to list invoices", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve invoices",
		})
		return
	}

	responses := make([]InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		responses = append(responses, toInvoiceResponse(invoice))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.respondInvoiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// UpdateInvoice handles PATCH /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	invoice, err := h.invoiceService.Update(c.Request.Context(), ownerID(c), c.Param("id"), service.InvoiceUpdate{
		Date:          req.Date,
		Supplier:      req.Supplier,
		Category:      req.Category,
		Amount:        req.Amount,
		InvoiceNumber: req.InvoiceNumber,
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.respondInvoiceError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// DeleteInvoice handles DELETE /api/invoices/:id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.respondInvoiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// SendInvoice handles POST /api/invoices/:id/send
func (h *Handlers) SendInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.Resend(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArchivalOnly):
			c.JSON(http.StatusConflict, Response{
				Success: false,
				Error:   err.Error(),
			})
		case errors.Is(err, service.ErrNoGestoriaEmail):
			c.JSON(http.StatusUnprocessableEntity, Response{
				Success: false,
				Error:   err.Error(),
			})
		default:
			h.respondInvoiceError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(invoice),
	})
}

// ExportPeriod handles GET /api/invoices/export
func (h *Handlers) ExportPeriod(c *gin.Context) {
	periodKey := c.Query("period_key")
	if periodKey == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "period_key is required",
		})
		return
	}

	content, err := h.exportService.ExportPeriod(c.Request.Context(), ownerID(c), periodKey)
	if err != nil {
		h.logger.Error("Failed to export period", "period_key", periodKey, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to export period",
		})
		return
	}

	filename := fmt.Sprintf("facturas-%s.xlsx", periodKey)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		content)
}

// ServeFile handles GET /files/*key with a signed URL's query parameters
func (h *Handlers) ServeFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "invalid or missing signature",
		})
		return
	}

	if err := h.blobs.VerifySignature(key, expires, c.Query("sig")); err != nil {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "invalid or missing signature",
		})
		return
	}

	content, err := h.blobs.Read(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "file not found",
		})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(content), content)
}

func (h *Handlers) respondInvoiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "invoice not found",
		})
		return
	}
	h.logger.Error("Invoice operation failed", "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal error",
	})
}

// toInvoiceResponse converts domain entity to API response
func toInvoiceResponse(invoice *entity.Invoice) InvoiceResponse {
	category, concept := invoice.ConceptFromCategory()
	resp := InvoiceResponse{
		ID:                   invoice.ID,
		Date:                 invoice.Date,
		Supplier:             invoice.Supplier,
		Category:             category,
		Concept:              concept,
		Amount:               invoice.Amount,
		InvoiceNumber:        invoice.InvoiceNumber,
		Status:               invoice.Status,
		ArchivalOnly:         invoice.ArchivalOnly,
		PeriodType:           invoice.PeriodType,
		PeriodKey:            invoice.PeriodKey,
		FolderPath:           invoice.FolderPath,
		FileNameOriginal:     invoice.FileNameOriginal,
		UploadSource:         invoice.UploadSource,
		SentToGestoriaStatus: invoice.SentToGestoriaStatus,
		CreatedAt:            invoice.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            invoice.UpdatedAt.Format(time.RFC3339),
	}

	if invoice.SentToGestoriaAt != nil {
		at := invoice.SentToGestoriaAt.Format(time.RFC3339)
		resp.SentToGestoriaAt = &at
	}

	return resp
}

// truthy interprets the form-flag spellings the clients send
func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on":
		return true
	}
	return false
}

func uploadSource(value string) string {
	if value == entity.SourceMobileUpload {
		return entity.SourceMobileUpload
	}
	return entity.SourceWebUpload
}
