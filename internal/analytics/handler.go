package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docutext-backend/internal/shared/server/middleware"
	"docutext-backend/internal/shared/server/respond"
)

// Handler wires the analytics endpoint to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analytics routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analytics", h.report)
}

func (h *Handler) report(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	r, err := parseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	report, err := h.Svc.Report(c.Request.Context(), userID, r)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to build analytics report", nil)
		return
	}
	respond.JSON(c, http.StatusOK, report)
}

// parseRange reads the optional start/end query pair (YYYY-MM-DD, both or
// neither).
func parseRange(start, end string) (Range, error) {
	if start == "" && end == "" {
		return Range{}, nil
	}
	if start == "" || end == "" {
		return Range{}, errors.New("start and end must be provided together")
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return Range{}, errors.New("start must be YYYY-MM-DD")
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return Range{}, errors.New("end must be YYYY-MM-DD")
	}
	if e.Before(s) {
		return Range{}, errors.New("end must not precede start")
	}
	return Range{Start: s, End: e}, nil
}
