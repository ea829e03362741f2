package queue

import (
	"github.com/notegraph/backend/pkg/common"
)

// QueueIngestMsg asks the worker to ingest a batch of documents.
type QueueIngestMsg struct {
	Message       string            `json:"message,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Documents     []common.Document `json:"documents"`
}

// QueueRemoveMsg asks the worker to withdraw a document from the graph.
type QueueRemoveMsg struct {
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	DocumentID    string `json:"document_id"`
}

// GraphUpdateEvent is broadcast on the pubsub exchange after a successful
// graph-mutating run.
type GraphUpdateEvent struct {
	Operation     string   `json:"operation"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	NodeCount     int      `json:"node_count"`
	EdgeCount     int      `json:"edge_count"`
	FailedDocs    []string `json:"failed_docs,omitempty"`
}
