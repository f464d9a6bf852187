package extractions

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docutext-backend/internal/llm"
	"docutext-backend/internal/shared/server/middleware"
	"docutext-backend/internal/shared/server/respond"
)

// maxRequestSize bounds the whole multipart body. Individual files are
// checked against MaxFileBytes in the service.
const maxRequestSize = 50 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches extraction routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extractions", h.create)
	rg.GET("/extractions", h.list)
	rg.GET("/extractions/:id", h.get)
	rg.PATCH("/extractions/:id", h.updateText)
	rg.DELETE("/extractions/:id", h.remove)
	rg.POST("/extractions/:id/enhance", h.enhance)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "request body exceeds the upload limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid multipart body", nil)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	files := make([]FileInput, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		files = append(files, FileInput{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	opts := BatchOptions{
		Enhance: parseBool(c.PostForm("enhance")),
		APIKey:  strings.TrimSpace(c.PostForm("api_key")),
	}

	outcomes, err := h.Svc.ProcessBatch(c.Request.Context(), userID, files, opts)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, llm.ErrConfiguration):
			respond.Error(c, http.StatusBadRequest, "configuration_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process upload", nil)
		}
		return
	}

	results := make([]gin.H, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, toOutcomeResponse(o))
	}
	respond.JSON(c, http.StatusCreated, gin.H{"results": results})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	q := ListQuery{
		Limit:    limit,
		Offset:   offset,
		Search:   strings.TrimSpace(c.Query("search")),
		FileType: strings.TrimSpace(c.Query("fileType")),
	}

	items, total, err := h.Svc.List(c.Request.Context(), userID, q)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list extractions", nil)
		}
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, ex := range items {
		resp = append(resp, toResponse(ex))
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"extractions": resp,
		"total":       total,
		"page":        offset/limit + 1,
		"limit":       limit,
	})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	ex, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondRecordError(c, err, "failed to fetch extraction")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(ex))
}

type updateTextRequest struct {
	ExtractedText string `json:"extractedText"`
}

func (h *Handler) updateText(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req updateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ex, err := h.Svc.UpdateText(c.Request.Context(), userID, c.Param("id"), req.ExtractedText)
	if err != nil {
		respondRecordError(c, err, "failed to update extraction")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(ex))
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	if err := h.Svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to delete extraction")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) enhance(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	ex, err := h.Svc.Enhance(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "extraction not found", nil)
		case errors.Is(err, llm.ErrEmptyText):
			respond.Error(c, http.StatusBadRequest, "validation_error", "extraction has no text to enhance", nil)
		case errors.Is(err, llm.ErrExternalService):
			respond.Error(c, http.StatusBadGateway, "external_service_error", "enhancement service unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enhance extraction", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(ex))
}

func respondRecordError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "extraction not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func toResponse(ex Extraction) gin.H {
	return gin.H{
		"extractionId":     ex.ID,
		"fileName":         ex.FileName,
		"fileType":         ex.FileType,
		"fileSizeBytes":    ex.FileSizeBytes,
		"extractedText":    ex.ExtractedText,
		"confidenceScore":  ex.ConfidenceScore,
		"processingTimeMs": ex.ProcessingTimeMs,
		"createdAt":        ex.CreatedAt,
		"updatedAt":        ex.UpdatedAt,
	}
}

func toOutcomeResponse(o Outcome) gin.H {
	if o.Err != nil {
		return gin.H{
			"fileName": o.FileName,
			"success":  false,
			"error":    o.Err.Error(),
		}
	}
	resp := gin.H{
		"fileName":         o.FileName,
		"success":          true,
		"extractedText":    o.Extraction.ExtractedText,
		"confidenceScore":  o.Extraction.ConfidenceScore,
		"processingTimeMs": o.Extraction.ProcessingTimeMs,
	}
	if o.Persisted {
		resp["extractionId"] = o.Extraction.ID
	}
	return resp
}

func parseBool(v string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && parsed
}
