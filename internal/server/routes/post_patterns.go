package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// FindPatternsHandler matches a structural pattern against the graph.
func FindPatternsHandler(c echo.Context) error {
	type findPatternsBody struct {
		Pattern    common.Pattern    `json:"pattern" validate:"required"`
		Parameters map[string]string `json:"parameters"`
	}

	type findPatternsResponse struct {
		Message string                `json:"message"`
		Matches []common.PatternMatch `json:"matches,omitempty"`
	}

	data := new(findPatternsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, findPatternsResponse{
			Message: "Invalid request body",
		})
	}
	if len(data.Pattern.Nodes) == 0 {
		return c.JSON(http.StatusBadRequest, findPatternsResponse{
			Message: "Pattern must declare at least one node variable",
		})
	}

	matches, err := app(c).Service.FindPatterns(c.Request().Context(), data.Pattern, data.Parameters)
	if err != nil {
		logger.Error("[Server] Pattern search failed", "pattern", data.Pattern.Name, "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, findPatternsResponse{
		Message: "OK",
		Matches: matches,
	})
}
