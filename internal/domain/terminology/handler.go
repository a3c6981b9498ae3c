package terminology

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler provides REST endpoints over the terminology store.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers terminology routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/terminology")
	g.GET("/search", h.Search)
	g.GET("/concept/:key", h.ConceptForKey)
	g.GET("/ancestors/:id", h.Ancestors)
}

// Search handles GET /api/v1/terminology/search?q=...
func (h *Handler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	concept, err := h.store.BestConceptMatch(c.Request().Context(), query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if concept == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no matching concept")
	}
	return c.JSON(http.StatusOK, concept)
}

// ConceptForKey handles GET /api/v1/terminology/concept/:key
func (h *Handler) ConceptForKey(c echo.Context) error {
	key := c.Param("key")
	concept, err := h.store.ConceptForFeatureKey(c.Request().Context(), key)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if concept == nil {
		return echo.NewHTTPError(http.StatusNotFound, "feature key is not mapped")
	}
	return c.JSON(http.StatusOK, concept)
}

// Ancestors handles GET /api/v1/terminology/ancestors/:id?depth=N
func (h *Handler) Ancestors(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "concept id must be numeric")
	}
	depth, _ := strconv.Atoi(c.QueryParam("depth"))
	ancestors, err := h.store.Ancestors(c.Request().Context(), id, depth)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ancestors == nil {
		ancestors = []int64{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"concept_id": id,
		"ancestors":  ancestors,
	})
}
