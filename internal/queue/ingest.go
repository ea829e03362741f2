package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/notegraph/backend/pkg/leaselock"
	"github.com/notegraph/backend/pkg/logger"
	"github.com/notegraph/backend/pkg/service"
)

// graphMutationLockKey serializes graph-mutating runs across worker
// replicas when a lease client is configured.
const graphMutationLockKey = "graph_mutation"

// ProcessIngestMessage handles one ingest_queue message: it runs the
// ingestion pipeline over the batch and broadcasts the result. Individual
// document failures are reported in the update event, not retried at the
// queue level; a returned error means the run itself failed and the
// message should be retried.
func ProcessIngestMessage(
	ctx context.Context,
	svc *service.GraphService,
	lease *leaselock.Client,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(QueueIngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal ingest message: %w", err)
	}
	if len(data.Documents) == 0 {
		logger.Warn("[Queue] Ingest message without documents", "correlation_id", data.CorrelationID)
		return nil
	}

	run := func(ctx context.Context) error {
		sub, failures, err := svc.ProcessDocuments(ctx, data.Documents)
		if err != nil {
			return fmt.Errorf("process documents: %w", err)
		}

		event := GraphUpdateEvent{
			Operation:     "ingest",
			CorrelationID: data.CorrelationID,
			NodeCount:     len(sub.Nodes),
			EdgeCount:     len(sub.Edges),
		}
		for _, f := range failures {
			event.FailedDocs = append(event.FailedDocs, f.DocumentID)
			logger.Warn("[Queue] Document failed during ingestion",
				"correlation_id", data.CorrelationID,
				"document", f.DocumentID,
				"err", f.Err,
			)
		}

		publishUpdate(ch, event)
		logger.Info("[Queue] Ingested document batch",
			"correlation_id", data.CorrelationID,
			"documents", len(data.Documents),
			"failed", len(failures),
			"nodes", event.NodeCount,
			"edges", event.EdgeCount,
		)
		return nil
	}

	if lease == nil {
		return run(ctx)
	}
	return lease.WithLease(ctx, graphMutationLockKey, leaselock.Options{Wait: true}, run)
}

func publishUpdate(ch *amqp091.Channel, event GraphUpdateEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error("[Queue] Failed to marshal update event", "err", err)
		return
	}
	if err := PublishTopic(ch, GraphUpdatesTopic, body); err != nil {
		logger.Error("[Queue] Failed to publish update event", "err", err)
	}
}
