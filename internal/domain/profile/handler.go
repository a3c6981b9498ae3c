package profile

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes profile extraction over HTTP.
type Handler struct {
	extractor *Extractor
}

func NewHandler(extractor *Extractor) *Handler {
	return &Handler{extractor: extractor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/profile", h.Build)
}

// Build handles POST /api/v1/profile
func (h *Handler) Build(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.extractor.BuildProfile(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
