package server

import (
	"github.com/notegraph/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Node query routes
	apiRoutes.GET("/nodes/search", routes.SearchNodesHandler)
	apiRoutes.GET("/nodes/:label/context", routes.GetNodeContextHandler)
	apiRoutes.GET("/connections", routes.FindConnectionsHandler)
	apiRoutes.POST("/patterns", routes.FindPatternsHandler)
	apiRoutes.GET("/graph", routes.GetGraphHandler)

	// Curation routes
	apiRoutes.POST("/nodes/merge", routes.MergeNodesHandler)
	apiRoutes.GET("/duplicates", routes.GetDuplicatesHandler)

	// Document routes
	apiRoutes.POST("/documents", routes.IngestDocumentsHandler)
	apiRoutes.DELETE("/documents/:id", routes.RemoveDocumentHandler)
}
