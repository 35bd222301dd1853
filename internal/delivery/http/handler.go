package http

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kaitori-compare/backend/internal/domain"
	"github.com/kaitori-compare/backend/internal/export"
	"github.com/kaitori-compare/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	extractor *usecase.Extractor
	batch     *usecase.BatchService
}

// NewHandler creates a new HTTP handler
func NewHandler(extractor *usecase.Extractor, batch *usecase.BatchService) *Handler {
	return &Handler{
		extractor: extractor,
		batch:     batch,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "kaitori-compare-backend",
		"version": "1.0.0",
	})
}

// analyzeRequest is the single-image analysis payload
type analyzeRequest struct {
	ImageData string `json:"imageData"`
}

// AnalyzeImage runs one base64 image through the extraction pipeline
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		return
	}

	imageData, err := decodeImageData(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
		return
	}

	record, err := h.extractor.Extract(c.Request.Context(), imageData)
	if err != nil {
		writeExtractionError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// decodeImageData accepts plain base64 as well as a data-URL payload
func decodeImageData(s string) ([]byte, error) {
	if idx := strings.Index(s, ","); idx != -1 && strings.HasPrefix(s, "data:") {
		s = s[idx+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// writeExtractionError maps pipeline failures to the response shapes the
// frontend expects. Upstream non-success statuses are proxied through;
// everything else is a 500 with a diagnostic fragment.
func writeExtractionError(c *gin.Context, err error) {
	var upstream *domain.UpstreamError

	switch {
	case errors.As(err, &upstream):
		c.JSON(upstream.StatusCode, gin.H{
			"error":   upstream.Error(),
			"details": upstream.Body,
		})
	case errors.Is(err, domain.ErrEmptyResponse):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Empty response from API"})
	case errors.Is(err, domain.ErrNoJSONFound):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Could not extract JSON",
			"response": errDetail(err, domain.ErrNoJSONFound),
		})
	case errors.Is(err, domain.ErrMalformedJSON):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Invalid JSON in response",
			"details": errDetail(err, domain.ErrMalformedJSON),
		})
	case errors.Is(err, domain.ErrMissingField), errors.Is(err, domain.ErrInvalidShape):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid data format"})
	default:
		// Transport-level failures (network unreachable, timeout)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": err.Error(),
		})
	}
}

// errDetail strips the sentinel prefix from a wrapped error, leaving the
// diagnostic fragment attached at wrap time.
func errDetail(err error, sentinel error) string {
	return strings.TrimPrefix(strings.TrimPrefix(err.Error(), sentinel.Error()), ": ")
}

// AnalyzeBatch runs every uploaded file through the pipeline sequentially
func (h *Handler) AnalyzeBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルが選択されていません"})
		return
	}

	files := make([]domain.UploadFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file", "message": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file", "message": err.Error()})
			return
		}
		files = append(files, domain.UploadFile{Name: fh.Filename, Data: data})
	}

	result, err := h.batch.ProcessBatch(c.Request.Context(), files)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルが選択されていません"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// exportRequest carries the analyzed records back for export
type exportRequest struct {
	Records []domain.ProductRecord `json:"records"`
}

// ExportCSV renders the comparison table as a CSV attachment
func (h *Handler) ExportCSV(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No records provided"})
		return
	}

	data, err := export.BuildCSV(req.Records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
		return
	}

	writeAttachment(c, export.Filename("csv"), "text/csv; charset=utf-8", data)
}

// ExportXLSX renders the comparison table as an XLSX attachment
func (h *Handler) ExportXLSX(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Records) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No records provided"})
		return
	}

	data, err := export.BuildXLSX(req.Records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
		return
	}

	writeAttachment(c, export.Filename("xlsx"),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// writeAttachment sends bytes as a download, RFC 5987-escaping the
// Japanese file name.
func writeAttachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, contentType, data)
}
