// Package worker runs the report worker that folds scoring events into the
// cumulative importance aggregator.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/creditx/internal/domain"
	"github.com/opensource-finance/creditx/internal/report"
)

// Worker consumes batch-scored events off the bus and keeps the cumulative
// importance report current. It runs outside the request path; scoring
// responses never wait on it.
type Worker struct {
	bus        domain.EventBus
	aggregator *report.Aggregator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a report worker feeding the given aggregator.
func NewWorker(bus domain.EventBus, aggregator *report.Aggregator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		aggregator: aggregator,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the batch scored topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicBatchScored, w.handleBatchScored)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("report worker started",
		"topic", domain.TopicBatchScored,
	)
	return nil
}

// handleBatchScored folds one batch event into the running totals.
func (w *Worker) handleBatchScored(ctx context.Context, msg *domain.Message) error {
	var event domain.BatchScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse batch scored event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.aggregator.Merge(event.Importance, event.Records)

	slog.Debug("batch folded into importance report",
		"endpoint", event.Endpoint,
		"records", event.Records,
		"weights_version", event.WeightsVersion,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("report worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
