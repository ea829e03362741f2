package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// MergeNodesHandler merges two nodes by id and returns the survivor.
func MergeNodesHandler(c echo.Context) error {
	type mergeNodesBody struct {
		NodeA string `json:"node_a" validate:"required"`
		NodeB string `json:"node_b" validate:"required"`
	}

	type mergeNodesResponse struct {
		Message string       `json:"message"`
		Node    *common.Node `json:"node,omitempty"`
	}

	data := new(mergeNodesBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeNodesResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeNodesResponse{
			Message: "Both node_a and node_b are required",
		})
	}

	node, err := app(c).Service.MergeNodes(c.Request().Context(), data.NodeA, data.NodeB)
	if err != nil {
		logger.Error("[Server] Node merge failed", "a", data.NodeA, "b", data.NodeB, "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, mergeNodesResponse{
		Message: "OK",
		Node:    &node,
	})
}

// GetDuplicatesHandler reports groups of likely-duplicate nodes without
// merging them.
func GetDuplicatesHandler(c echo.Context) error {
	type duplicatesResponse struct {
		Message string          `json:"message"`
		Groups  [][]common.Node `json:"groups,omitempty"`
	}

	groups, err := app(c).Service.FindDuplicates(c.Request().Context())
	if err != nil {
		logger.Error("[Server] Duplicate scan failed", "err", err)
		return errorJSON(c, err, "Internal server error")
	}

	return c.JSON(http.StatusOK, duplicatesResponse{
		Message: "OK",
		Groups:  groups,
	})
}
