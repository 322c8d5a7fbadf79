package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/estatecart/commerce/internal/aws"
	"github.com/estatecart/commerce/internal/config"
	"github.com/estatecart/commerce/internal/inventory"
	"github.com/estatecart/commerce/internal/orders"
	"github.com/estatecart/commerce/internal/payments"
	"github.com/estatecart/commerce/internal/webhook"
)

// Processor re-runs failed webhook reconciliations delivered via SQS. The
// reconciliation itself is idempotent (conditional transition), so replaying
// an event that meanwhile succeeded through another path is a no-op.
type Processor struct {
	dispatcher *webhook.Dispatcher
	metrics    *aws.MetricsEmitter
	logger     *zap.Logger
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, cfg config.Config, logger *zap.Logger) *Processor {
	paymentsStore := payments.NewStore(clients.DynamoDB, cfg.PaymentsTable)
	ordersStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
	inventoryStore := inventory.NewStore(clients.DynamoDB, cfg.InventoryTable)
	reconciler := webhook.NewReconciler(clients.DynamoDB, paymentsStore, ordersStore, inventoryStore, logger)

	var metrics *aws.MetricsEmitter
	if clients.CloudWatch != nil {
		metrics = aws.NewMetricsEmitter(clients.CloudWatch, "Commerce/Webhooks")
	}

	return &Processor{
		dispatcher: webhook.NewDispatcher(reconciler, logger),
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			p.logger.Error("replay worker error", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg webhook.ReplayMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	p.logger.Info("replaying webhook event",
		zap.String("event", msg.Event),
		zap.String("reference", msg.Reference),
		zap.String("reason", msg.Reason))

	env := webhook.Envelope{Event: msg.Event, Data: msg.Data}
	if err := p.dispatcher.Dispatch(ctx, env); err != nil {
		return fmt.Errorf("replay %s for %s: %w", msg.Event, msg.Reference, err)
	}

	if p.metrics != nil {
		_ = p.metrics.Count(ctx, "WebhookReplayed", 1, map[string]string{"Event": msg.Event})
	}
	return nil
}
