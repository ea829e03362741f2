package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/notegraph/backend/internal/queue"
	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/logger"
)

// IngestDocumentsHandler enqueues a document batch for ingestion. The
// actual pipeline runs on the worker; the handler responds with a
// correlation id clients can match against graph update events.
func IngestDocumentsHandler(c echo.Context) error {
	type ingestDocumentsBody struct {
		Documents []common.Document `json:"documents" validate:"required,min=1,dive"`
	}

	type ingestDocumentsResponse struct {
		Message       string   `json:"message"`
		CorrelationID string   `json:"correlation_id,omitempty"`
		DocumentIDs   []string `json:"document_ids,omitempty"`
	}

	data := new(ingestDocumentsBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestDocumentsResponse{
			Message: "Invalid request body",
		})
	}
	if len(data.Documents) == 0 {
		return c.JSON(http.StatusBadRequest, ingestDocumentsResponse{
			Message: "At least one document is required",
		})
	}

	ids := make([]string, 0, len(data.Documents))
	for i := range data.Documents {
		if data.Documents[i].ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				logger.Error("[Server] Failed to generate document id", "err", err)
				return c.JSON(http.StatusInternalServerError, ingestDocumentsResponse{
					Message: "Internal server error",
				})
			}
			data.Documents[i].ID = id
		}
		ids = append(ids, data.Documents[i].ID)
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		logger.Error("[Server] Failed to generate correlation id", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestDocumentsResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.QueueIngestMsg{
		Message:       "Ingest documents",
		CorrelationID: correlationID,
		Documents:     data.Documents,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error("[Server] Failed to marshal ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestDocumentsResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.PublishFIFO(app(c).Queue, queue.IngestQueue, body); err != nil {
		logger.Error("[Server] Failed to enqueue documents", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestDocumentsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, ingestDocumentsResponse{
		Message:       "Documents queued for ingestion",
		CorrelationID: correlationID,
		DocumentIDs:   ids,
	})
}

// RemoveDocumentHandler enqueues removal of a document's contribution.
func RemoveDocumentHandler(c echo.Context) error {
	type removeDocumentResponse struct {
		Message       string `json:"message"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	docID := c.Param("id")
	if docID == "" {
		return c.JSON(http.StatusBadRequest, removeDocumentResponse{
			Message: "Missing document id",
		})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		logger.Error("[Server] Failed to generate correlation id", "err", err)
		return c.JSON(http.StatusInternalServerError, removeDocumentResponse{
			Message: "Internal server error",
		})
	}

	msg := queue.QueueRemoveMsg{
		Message:       "Remove document",
		CorrelationID: correlationID,
		DocumentID:    docID,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error("[Server] Failed to marshal remove message", "err", err)
		return c.JSON(http.StatusInternalServerError, removeDocumentResponse{
			Message: "Internal server error",
		})
	}

	if err := queue.PublishFIFO(app(c).Queue, queue.RemoveQueue, body); err != nil {
		logger.Error("[Server] Failed to enqueue document removal", "err", err)
		return c.JSON(http.StatusInternalServerError, removeDocumentResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, removeDocumentResponse{
		Message:       "Document queued for removal",
		CorrelationID: correlationID,
	})
}
