package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-schedule-ingest/internal/auth"
)

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Token exchanges the configured service credential for a short-lived bearer
// token. Full identity flows live outside this service.
func (h *Handler) Token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ClientID != h.clientID || !auth.CheckPassword(h.clientHash, req.ClientSecret) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	tok, err := auth.MakeToken(req.ClientID, h.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token signing failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: tok})
}
