package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// FindConnectionsHandler returns the simple paths between two labeled
// entities.
func FindConnectionsHandler(c echo.Context) error {
	type findConnectionsQuery struct {
		Source   string `query:"source" validate:"required"`
		Target   string `query:"target" validate:"required"`
		MaxDepth int    `query:"max_depth"`
	}

	type findConnectionsResponse struct {
		Message string        `json:"message"`
		Paths   []common.Path `json:"paths,omitempty"`
	}

	data := new(findConnectionsQuery)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, findConnectionsResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, findConnectionsResponse{
			Message: "Both source and target are required",
		})
	}

	paths, err := app(c).Service.FindConnections(c.Request().Context(), data.Source, data.Target, data.MaxDepth)
	if err != nil {
		logger.Error("[Server] Connection search failed",
			"source", data.Source,
			"target", data.Target,
			"err", err,
		)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, findConnectionsResponse{
		Message: "OK",
		Paths:   paths,
	})
}

// GetNodeContextHandler returns the neighborhood of a labeled entity.
func GetNodeContextHandler(c echo.Context) error {
	type nodeContextQuery struct {
		Depth int `query:"depth"`
	}

	type nodeContextResponse struct {
		Message  string           `json:"message"`
		Subgraph *common.Subgraph `json:"subgraph,omitempty"`
	}

	label := c.Param("label")
	if label == "" {
		return c.JSON(http.StatusBadRequest, nodeContextResponse{
			Message: "Missing node label",
		})
	}

	data := new(nodeContextQuery)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, nodeContextResponse{
			Message: "Invalid request",
		})
	}

	sub, err := app(c).Service.GetNodeContext(c.Request().Context(), label, data.Depth)
	if err != nil {
		logger.Error("[Server] Node context failed", "label", label, "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, nodeContextResponse{
		Message:  "OK",
		Subgraph: &sub,
	})
}
