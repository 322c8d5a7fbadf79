package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/estatecart/commerce/internal/aws"
	"github.com/estatecart/commerce/internal/inventory"
	"github.com/estatecart/commerce/internal/orders"
	"github.com/estatecart/commerce/internal/payments"
	"go.uber.org/zap"
)

// Reconciler applies a charge outcome to the payment, its linked order, and
// the stock counters of the order's line items.
//
// The whole status-transition-plus-decrement sequence is issued as a single
// TransactWriteItems call. The payment update carries a "status = PENDING"
// condition, so a duplicate delivery (provider retry racing the original)
// cancels the entire transaction and cannot double-decrement inventory, and a
// crash cannot leave a partial set of decrements behind.
type Reconciler struct {
	dynamo    aws.DynamoDBAPI
	payments  *payments.Store
	orders    *orders.Store
	inventory *inventory.Store
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewReconciler wires the reconciler to the three aggregate stores.
func NewReconciler(dynamo aws.DynamoDBAPI, paymentsStore *payments.Store, ordersStore *orders.Store, inventoryStore *inventory.Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		dynamo:    dynamo,
		payments:  paymentsStore,
		orders:    ordersStore,
		inventory: inventoryStore,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// HandleSuccess processes a charge.success event: payment PENDING -> SUCCESS,
// order PENDING -> PAID, and one stock decrement per distinct product.
//
// An unknown reference is logged and acknowledged; the provider will retry and
// there is nothing useful to retry toward. Returned errors are persistence
// failures the caller may replay.
func (r *Reconciler) HandleSuccess(ctx context.Context, data json.RawMessage) error {
	p, raw, err := r.lookup(ctx, data)
	if err != nil || p == nil {
		return err
	}

	items := []types.TransactWriteItem{}
	paymentItem, err := r.payments.TransitionItem(p.Reference, payments.StatusSuccess, r.mergeRaw(p.Raw, raw, true))
	if err != nil {
		return err
	}
	items = append(items, paymentItem)

	if p.OrderID != "" {
		order, err := r.orders.Get(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("fetch order %s: %w", p.OrderID, err)
		}
		if order == nil {
			r.logger.Warn("payment links to missing order, recording payment only",
				zap.String("reference", p.Reference), zap.String("order_id", p.OrderID))
		} else {
			items = append(items, r.orders.TransitionItem(order.OrderID, orders.StatusPending, orders.StatusPaid))
			// one decrement per product: a transaction may not touch the
			// same item twice, and an order can repeat a productId across
			// line items
			totals := map[string]int{}
			productIDs := []string{}
			for _, li := range order.Items {
				if _, seen := totals[li.ProductID]; !seen {
					productIDs = append(productIDs, li.ProductID)
				}
				totals[li.ProductID] += li.Quantity
			}
			for _, id := range productIDs {
				items = append(items, r.inventory.DecrementItem(id, totals[id]))
			}
		}
	}

	return r.commit(ctx, p.Reference, "charge.success", items)
}

// HandleFailure processes a charge.failed event: payment PENDING -> FAILED and
// order PENDING -> CANCELLED. Inventory is never touched on failure.
func (r *Reconciler) HandleFailure(ctx context.Context, data json.RawMessage) error {
	p, raw, err := r.lookup(ctx, data)
	if err != nil || p == nil {
		return err
	}

	items := []types.TransactWriteItem{}
	paymentItem, err := r.payments.TransitionItem(p.Reference, payments.StatusFailed, r.mergeRaw(p.Raw, raw, false))
	if err != nil {
		return err
	}
	items = append(items, paymentItem)

	if p.OrderID != "" {
		order, err := r.orders.Get(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("fetch order %s: %w", p.OrderID, err)
		}
		switch {
		case order == nil:
			r.logger.Warn("payment links to missing order, recording payment only",
				zap.String("reference", p.Reference), zap.String("order_id", p.OrderID))
		case order.Status == orders.StatusCancelled:
			// already cancelled; still record the failed payment
		default:
			items = append(items, r.orders.TransitionItem(order.OrderID, order.Status, orders.StatusCancelled))
		}
	}

	return r.commit(ctx, p.Reference, "charge.failed", items)
}

// lookup parses the event data and fetches the payment it references.
// A nil payment with nil error means "acknowledge and move on".
func (r *Reconciler) lookup(ctx context.Context, data json.RawMessage) (*payments.Payment, map[string]interface{}, error) {
	var charge ChargeData
	if err := json.Unmarshal(data, &charge); err != nil {
		r.logger.Warn("webhook data is not a charge payload", zap.Error(err))
		return nil, nil, nil
	}
	if charge.Reference == "" {
		r.logger.Warn("webhook data has no reference")
		return nil, nil, nil
	}

	p, err := r.payments.GetByReference(ctx, charge.Reference)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch payment %s: %w", charge.Reference, err)
	}
	if p == nil {
		r.logger.Info("no payment for webhook reference", zap.String("reference", charge.Reference))
		return nil, nil, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = map[string]interface{}{}
	}
	return p, raw, nil
}

// mergeRaw folds the incoming payload into the accumulated raw record.
// Existing keys absent from the new payload survive; overlapping keys take
// the newest value.
func (r *Reconciler) mergeRaw(prior, incoming map[string]interface{}, verified bool) map[string]interface{} {
	merged := make(map[string]interface{}, len(prior)+len(incoming)+1)
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	if verified {
		merged["verified_at"] = r.nowFunc().UTC().Format(time.RFC3339)
	}
	return merged
}

// commit executes the assembled transaction. A transaction canceled purely on
// condition checks means the payment already left PENDING (or the order state
// conflicts); that is the duplicate-delivery path and is deliberately not an
// error. Every other cancellation reason (throttling, validation, item
// conflicts) is a persistence failure and surfaces to the caller for replay.
func (r *Reconciler) commit(ctx context.Context, reference, event string, items []types.TransactWriteItem) error {
	_, err := r.dynamo.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && isConditionalCancel(tce) {
			r.logger.Info("reconciliation skipped, payment already processed",
				zap.String("reference", reference), zap.String("event", event))
			return nil
		}
		return fmt.Errorf("transact write for %s: %w", reference, err)
	}

	r.logger.Info("payment reconciled",
		zap.String("reference", reference), zap.String("event", event),
		zap.Int("writes", len(items)))
	return nil
}

// isConditionalCancel reports whether a canceled transaction failed only on
// condition checks. At least one ConditionalCheckFailed reason is required;
// any other non-None code (ThrottlingError, ValidationError,
// TransactionConflict) disqualifies the cancellation.
func isConditionalCancel(tce *types.TransactionCanceledException) bool {
	sawCheck := false
	for _, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code == "None" {
			continue
		}
		if *reason.Code != "ConditionalCheckFailed" {
			return false
		}
		sawCheck = true
	}
	return sawCheck
}
