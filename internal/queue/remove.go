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

// ProcessRemoveMessage handles one remove_queue message: it withdraws the
// document's contribution from the graph and broadcasts the result.
func ProcessRemoveMessage(
	ctx context.Context,
	svc *service.GraphService,
	lease *leaselock.Client,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(QueueRemoveMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal remove message: %w", err)
	}
	if data.DocumentID == "" {
		logger.Warn("[Queue] Remove message without document id", "correlation_id", data.CorrelationID)
		return nil
	}

	run := func(ctx context.Context) error {
		if err := svc.RemoveDocument(ctx, data.DocumentID); err != nil {
			return fmt.Errorf("remove document %q: %w", data.DocumentID, err)
		}

		publishUpdate(ch, GraphUpdateEvent{
			Operation:     "remove",
			CorrelationID: data.CorrelationID,
		})
		logger.Info("[Queue] Removed document", "document", data.DocumentID)
		return nil
	}

	if lease == nil {
		return run(ctx)
	}
	return lease.WithLease(ctx, graphMutationLockKey, leaselock.Options{Wait: true}, run)
}
