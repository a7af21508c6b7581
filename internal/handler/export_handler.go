package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-schedule-ingest/internal/export"
	"clinic-schedule-ingest/internal/middleware"
)

type exportRequest struct {
	Password        string   `json:"password"`
	Keys            []string `json:"keys"`
	SensitiveFields []string `json:"sensitiveFields"`
	IncludeMetadata bool     `json:"includeMetadata"`
}

// Export produces a password-protected document from stored record sets.
func (h *Handler) Export(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password required")
	}

	doc, err := h.codec.ExportToJSON(req.Password, export.ExportOptions{
		Keys:            req.Keys,
		SensitiveFields: req.SensitiveFields,
		IncludeMetadata: req.IncludeMetadata,
		UserID:          middleware.UserID(c),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("export failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="schedule-export.json"`)
	return c.Blob(http.StatusOK, export.ContentType, doc)
}

type importRequest struct {
	Document         json.RawMessage `json:"document"`
	Password         string          `json:"password"`
	Overwrite        bool            `json:"overwrite"`
	ValidateChecksum *bool           `json:"validateChecksum"` // default true
}

// Import loads a previously exported document into storage.
func (h *Handler) Import(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Document) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "document required")
	}

	result := h.codec.ImportFromJSON(req.Document, req.Password, export.ImportOptions{
		Overwrite:    req.Overwrite,
		SkipChecksum: req.ValidateChecksum != nil && !*req.ValidateChecksum,
		UserID:       middleware.UserID(c),
	})
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, result)
}
