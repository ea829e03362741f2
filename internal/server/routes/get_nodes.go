package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// SearchNodesHandler finds nodes by label substring, optionally filtered
// by type.
func SearchNodesHandler(c echo.Context) error {
	type searchNodesQuery struct {
		Query string `query:"q"`
		Type  string `query:"type"`
	}

	type searchNodesResponse struct {
		Message string        `json:"message"`
		Nodes   []common.Node `json:"nodes,omitempty"`
	}

	data := new(searchNodesQuery)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchNodesResponse{
			Message: "Invalid request",
		})
	}

	nodes, err := app(c).Service.SearchNodes(c.Request().Context(), data.Query, data.Type)
	if err != nil {
		logger.Error("[Server] Node search failed", "query", data.Query, "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, searchNodesResponse{
		Message: "OK",
		Nodes:   nodes,
	})
}

// GetGraphHandler exports the whole stored graph.
func GetGraphHandler(c echo.Context) error {
	type getGraphResponse struct {
		Message string          `json:"message"`
		Graph   common.Subgraph `json:"graph"`
	}

	sub, err := app(c).Service.GetKnowledgeGraph(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Graph export failed", "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, getGraphResponse{
		Message: "OK",
		Graph:   sub,
	})
}
