package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-schedule-ingest/internal/middleware"
	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/parser"
)

type parseRequest struct {
	Text                string `json:"text"`
	ReferenceDate       string `json:"referenceDate"` // YYYY-MM-DD
	DefaultProvider     string `json:"defaultProvider"`
	SaveToSecureStorage bool   `json:"saveToSecureStorage"`
	StorageKey          string `json:"storageKey"`
}

type parseResponse struct {
	Records      []model.AppointmentRecord `json:"records"`
	SourceFormat string                    `json:"sourceFormat"`
	Saved        bool                      `json:"saved,omitempty"`
}

// Parse ingests pasted schedule text and returns ordered records. With
// saveToSecureStorage set, the result is also persisted under storageKey.
func (h *Handler) Parse(c echo.Context) error {
	var req parseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SaveToSecureStorage && req.StorageKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "storageKey required to save")
	}

	opts := parser.Options{
		DefaultProvider: req.DefaultProvider,
		Logger:          &h.log,
	}
	if req.ReferenceDate != "" {
		ref, err := time.Parse("2006-01-02", req.ReferenceDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "referenceDate must be YYYY-MM-DD")
		}
		opts.ReferenceDate = ref
	}

	format := parser.Detect(req.Text)
	records := h.remote.Parse(c.Request().Context(), req.Text, opts)

	resp := parseResponse{Records: records, SourceFormat: format.String()}
	if req.SaveToSecureStorage {
		snapshot := model.ScheduleSnapshot{
			Records: records,
			Metadata: model.ParseMetadata{
				SourceFormat: format.String(),
				ImportedAt:   time.Now().UTC(),
				RecordCount:  len(records),
			},
		}
		if !h.engine.Store(req.StorageKey, snapshot, middleware.UserID(c)) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "storage rejected the record set")
		}
		resp.Saved = true
	}
	return c.JSON(http.StatusOK, resp)
}

// Audit returns the storage instance's access log.
func (h *Handler) Audit(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.AuditLog())
}

// Stats reports storage counters and health in one payload.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"stats":  h.engine.Stats(),
		"health": h.engine.HealthCheck(),
	})
}

// Health is the unauthenticated liveness probe.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.HealthCheck())
}
