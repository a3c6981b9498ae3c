package guideline

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pedcds/pedcds/internal/domain/profile"
)

// Handler exposes guideline evaluation and rule-set management.
type Handler struct {
	svc       *Service
	extractor *profile.Extractor
}

func NewHandler(svc *Service, extractor *profile.Extractor) *Handler {
	return &Handler{svc: svc, extractor: extractor}
}

// RegisterRoutes registers evaluation and rule-set CRUD routes. The
// admin group guards mutations.
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.POST("/evaluate", h.Evaluate)
	api.GET("/rulesets", h.List)
	api.GET("/rulesets/:id", h.Get)
	admin.POST("/rulesets", h.Create)
	admin.POST("/rulesets/:id/activate", h.Activate)
	admin.DELETE("/rulesets/:id", h.Delete)
}

type evaluateRequest struct {
	Observations profile.Input   `json:"observations"`
	RuleSet      json.RawMessage `json:"ruleset,omitempty"`
	RuleSetName  string          `json:"ruleset_name,omitempty"`
}

type evaluateResponse struct {
	Matches []Match          `json:"matches"`
	Profile *profile.Profile `json:"profile,omitempty"`
}

// Evaluate handles POST /api/v1/evaluate: observations plus either an
// inline rule-set document or the name of a stored one.
func (h *Handler) Evaluate(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.RuleSet) == 0 && req.RuleSetName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "either ruleset or ruleset_name is required")
	}

	ctx := c.Request().Context()
	p, err := h.extractor.BuildProfile(ctx, req.Observations)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var matches []Match
	if len(req.RuleSet) > 0 {
		matches = h.svc.EvaluateInline(p, req.RuleSet)
	} else {
		matches, err = h.svc.EvaluateStored(ctx, req.RuleSetName, p)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
	}

	return c.JSON(http.StatusOK, evaluateResponse{Matches: matches, Profile: p})
}

type createRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

// Create handles POST /api/v1/rulesets
func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rs, err := h.svc.Create(c.Request().Context(), req.Name, req.Document)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rs)
}

// List handles GET /api/v1/rulesets
func (h *Handler) List(c echo.Context) error {
	out, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if out == nil {
		out = []*RuleSet{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /api/v1/rulesets/:id
func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule set id")
	}
	rs, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "rule set not found")
	}
	return c.JSON(http.StatusOK, rs)
}

// Activate handles POST /api/v1/rulesets/:id/activate
func (h *Handler) Activate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule set id")
	}
	if err := h.svc.Activate(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/rulesets/:id
func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule set id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
