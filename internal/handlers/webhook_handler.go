package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/estatecart/commerce/internal/aws"
	"github.com/estatecart/commerce/internal/inventory"
	"github.com/estatecart/commerce/internal/orders"
	"github.com/estatecart/commerce/internal/payments"
	"github.com/estatecart/commerce/internal/webhook"
	"go.uber.org/zap"
)

// maxWebhookBody caps how much of a webhook body we read.
const maxWebhookBody = 1 << 20

// RegisterWebhookRoutes registers the payment provider webhook endpoint.
//
// Response policy: 400 only for signature or parse failures. Once the event
// is verified, the endpoint always acknowledges with 200 {"status":"success"}
// - unknown events, unknown references, and even persistence failures inside
// the handlers are logged (and queued for replay) rather than surfaced, so
// the provider never treats a processed delivery as failed.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	paymentsStore := payments.NewStore(cfg.DynamoDBClient, cfg.Config.PaymentsTable)
	ordersStore := orders.NewStore(cfg.DynamoDBClient, cfg.Config.OrdersTable)
	inventoryStore := inventory.NewStore(cfg.DynamoDBClient, cfg.Config.InventoryTable)

	reconciler := webhook.NewReconciler(cfg.DynamoDBClient, paymentsStore, ordersStore, inventoryStore, cfg.Logger)
	dispatcher := webhook.NewDispatcher(reconciler, cfg.Logger)

	var replay *aws.Publisher
	if cfg.SQSClient != nil && cfg.Config.ReplayQueueURL != "" {
		replay = aws.NewPublisher(cfg.SQSClient, cfg.Config.ReplayQueueURL)
	}
	var metrics *aws.MetricsEmitter
	if cfg.CloudWatchClient != nil {
		metrics = aws.NewMetricsEmitter(cfg.CloudWatchClient, "Commerce/Webhooks")
	}

	r.POST("/api/webhooks/paystack", func(c *gin.Context) {
		ctx := c.Request.Context()

		// raw bytes before any parsing; the signature covers exactly what
		// was sent on the wire
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		sig := c.GetHeader(webhook.SignatureHeader)
		if err := webhook.VerifySignature(cfg.Config.PaystackSecretKey, body, sig); err != nil {
			if metrics != nil {
				_ = metrics.Count(ctx, "WebhookRejected", 1, map[string]string{"Reason": "signature"})
			}
			if errors.Is(err, webhook.ErrNoSignature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "no signature"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		var env webhook.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		if err := dispatcher.Dispatch(ctx, env); err != nil {
			// acknowledge anyway; queue the verified event for replay
			cfg.Logger.Error("webhook reconciliation failed",
				zap.String("event", env.Event), zap.Error(err))
			if replay != nil {
				publishReplay(c, replay, metrics, env, err, cfg.Logger)
			}
			c.JSON(http.StatusOK, gin.H{"status": "success"})
			return
		}

		if metrics != nil {
			_ = metrics.Count(ctx, "WebhookProcessed", 1, map[string]string{"Event": env.Event})
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})
}

func publishReplay(c *gin.Context, replay *aws.Publisher, metrics *aws.MetricsEmitter, env webhook.Envelope, cause error, logger *zap.Logger) {
	var charge webhook.ChargeData
	_ = json.Unmarshal(env.Data, &charge)

	msg := webhook.ReplayMessage{
		Event:     env.Event,
		Data:      env.Data,
		Reference: charge.Reference,
		FailedAt:  time.Now().UTC(),
		Reason:    cause.Error(),
	}
	payload, _ := json.Marshal(msg)

	attrs := map[string]string{
		"event":          env.Event,
		"reference":      charge.Reference,
		"correlation_id": c.GetHeader("X-Request-Id"),
	}
	if err := replay.SendMessage(c.Request.Context(), string(payload), attrs); err != nil {
		// nothing left to do but log; the provider's own retry may still land
		logger.Error("replay publish failed", zap.String("event", env.Event), zap.Error(err))
		return
	}
	if metrics != nil {
		_ = metrics.Count(c.Request.Context(), "WebhookReplayQueued", 1, map[string]string{"Event": env.Event})
	}
}
