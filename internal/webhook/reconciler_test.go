package webhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/estatecart/commerce/internal/awstest"
	"github.com/estatecart/commerce/internal/inventory"
	"github.com/estatecart/commerce/internal/orders"
	"github.com/estatecart/commerce/internal/payments"
)

func newTestReconciler(t *testing.T) (*Reconciler, *awstest.DynamoFake) {
	t.Helper()
	fake := awstest.NewDynamoFake().
		AddTable("payments", "reference").
		AddTable("orders", "order_id").
		AddTable("inventory", "product_id")

	r := NewReconciler(fake,
		payments.NewStore(fake, "payments"),
		orders.NewStore(fake, "orders"),
		inventory.NewStore(fake, "inventory"),
		zap.NewNop())
	return r, fake
}

func seedPaidScenario(t *testing.T, fake *awstest.DynamoFake) {
	t.Helper()
	ctx := context.Background()

	ordersStore := orders.NewStore(fake, "orders")
	if err := ordersStore.Create(ctx, orders.Order{
		OrderID: "order-1",
		Status:  orders.StatusPending,
		Items: []orders.LineItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 1},
		},
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	paymentsStore := payments.NewStore(fake, "payments")
	if err := paymentsStore.Create(ctx, payments.Payment{
		Reference: "ref-1",
		OrderID:   "order-1",
		Raw:       map[string]interface{}{"initiated_from": "checkout"},
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	invStore := inventory.NewStore(fake, "inventory")
	if err := invStore.Put(ctx, inventory.Record{ProductID: "prod-a", Quantity: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	if err := invStore.Put(ctx, inventory.Record{ProductID: "prod-b", Quantity: 5}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func TestHandleSuccess_TransitionsAndDecrements(t *testing.T) {
	r, fake := newTestReconciler(t)
	seedPaidScenario(t, fake)

	data := json.RawMessage(`{"reference":"ref-1","amount":150000,"channel":"card"}`)
	if err := r.HandleSuccess(context.Background(), data); err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}

	payment := fake.Item("payments", "ref-1")
	if got := awstest.StringAttr(payment, "status"); got != payments.StatusSuccess {
		t.Fatalf("payment status = %q, want SUCCESS", got)
	}

	order := fake.Item("orders", "order-1")
	if got := awstest.StringAttr(order, "status"); got != orders.StatusPaid {
		t.Fatalf("order status = %q, want PAID", got)
	}

	if got := awstest.NumberAttr(fake.Item("inventory", "prod-a"), "quantity"); got != 8 {
		t.Fatalf("prod-a quantity = %v, want 8", got)
	}
	if got := awstest.NumberAttr(fake.Item("inventory", "prod-b"), "quantity"); got != 4 {
		t.Fatalf("prod-b quantity = %v, want 4", got)
	}
}

func TestHandleSuccess_RawMergeIsAdditive(t *testing.T) {
	r, fake := newTestReconciler(t)
	seedPaidScenario(t, fake)

	data := json.RawMessage(`{"reference":"ref-1","channel":"card"}`)
	if err := r.HandleSuccess(context.Background(), data); err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}

	p, err := payments.NewStore(fake, "payments").GetByReference(context.Background(), "ref-1")
	if err != nil || p == nil {
		t.Fatalf("fetch payment after success: %v", err)
	}
	if p.Raw["initiated_from"] != "checkout" {
		t.Fatalf("prior raw key lost: %+v", p.Raw)
	}
	if p.Raw["channel"] != "card" {
		t.Fatalf("new raw key missing: %+v", p.Raw)
	}
	if _, ok := p.Raw["verified_at"]; !ok {
		t.Fatalf("verified_at not recorded: %+v", p.Raw)
	}
}

func TestHandleSuccess_DuplicateDeliveryDoesNotDoubleDecrement(t *testing.T) {
	r, fake := newTestReconciler(t)
	seedPaidScenario(t, fake)

	data := json.RawMessage(`{"reference":"ref-1"}`)
	ctx := context.Background()
	if err := r.HandleSuccess(ctx, data); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	// provider retry races/redelivers the same event
	if err := r.HandleSuccess(ctx, data); err != nil {
		t.Fatalf("second delivery should be swallowed: %v", err)
	}

	if got := awstest.NumberAttr(fake.Item("inventory", "prod-a"), "quantity"); got != 8 {
		t.Fatalf("prod-a quantity = %v after duplicate, want 8", got)
	}
	if got := awstest.NumberAttr(fake.Item("inventory", "prod-b"), "quantity"); got != 4 {
		t.Fatalf("prod-b quantity = %v after duplicate, want 4", got)
	}
}

func TestHandleSuccess_ThrottledCancellationIsAnError(t *testing.T) {
	r, fake := newTestReconciler(t)
	seedPaidScenario(t, fake)

	// DynamoDB cancels throttled transactions with the same exception type as
	// a failed condition; only the reason codes tell them apart
	code := "ThrottlingError"
	fake.FailTransact = &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}

	err := r.HandleSuccess(context.Background(), json.RawMessage(`{"reference":"ref-1"}`))
	if err == nil {
		t.Fatalf("throttled cancellation must surface so the event gets replayed")
	}
	if got := awstest.StringAttr(fake.Item("payments", "ref-1"), "status"); got != payments.StatusPending {
		t.Fatalf("payment status = %q, want PENDING until the replay lands", got)
	}
}

func TestHandleSuccess_RepeatedProductAggregatedIntoOneDecrement(t *testing.T) {
	r, fake := newTestReconciler(t)
	ctx := context.Background()

	if err := orders.NewStore(fake, "orders").Create(ctx, orders.Order{
		OrderID: "order-dup",
		Status:  orders.StatusPending,
		Items: []orders.LineItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-a", Quantity: 3},
		},
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := payments.NewStore(fake, "payments").Create(ctx, payments.Payment{
		Reference: "ref-dup",
		OrderID:   "order-dup",
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := inventory.NewStore(fake, "inventory").Put(ctx, inventory.Record{ProductID: "prod-a", Quantity: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	// the fake, like the real API, rejects a transaction with two operations
	// on one item; an unaggregated decrement per line item would fail here
	if err := r.HandleSuccess(ctx, json.RawMessage(`{"reference":"ref-dup"}`)); err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}
	if got := awstest.NumberAttr(fake.Item("inventory", "prod-a"), "quantity"); got != 5 {
		t.Fatalf("prod-a quantity = %v, want 5", got)
	}
	if got := awstest.StringAttr(fake.Item("orders", "order-dup"), "status"); got != orders.StatusPaid {
		t.Fatalf("order status = %q, want PAID", got)
	}
}

func TestHandleFailure_CancelsOrderAndKeepsInventory(t *testing.T) {
	r, fake := newTestReconciler(t)
	seedPaidScenario(t, fake)

	data := json.RawMessage(`{"reference":"ref-1","gateway_response":"Declined"}`)
	if err := r.HandleFailure(context.Background(), data); err != nil {
		t.Fatalf("HandleFailure error: %v", err)
	}

	if got := awstest.StringAttr(fake.Item("payments", "ref-1"), "status"); got != payments.StatusFailed {
		t.Fatalf("payment status = %q, want FAILED", got)
	}
	if got := awstest.StringAttr(fake.Item("orders", "order-1"), "status"); got != orders.StatusCancelled {
		t.Fatalf("order status = %q, want CANCELLED", got)
	}
	if got := awstest.NumberAttr(fake.Item("inventory", "prod-a"), "quantity"); got != 10 {
		t.Fatalf("inventory touched on failure: prod-a = %v", got)
	}
}

func TestHandleFailure_OrderAlreadyCancelled(t *testing.T) {
	r, fake := newTestReconciler(t)
	ctx := context.Background()

	if err := orders.NewStore(fake, "orders").Create(ctx, orders.Order{
		OrderID: "order-x",
		Status:  orders.StatusCancelled,
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := payments.NewStore(fake, "payments").Create(ctx, payments.Payment{
		Reference: "ref-x",
		OrderID:   "order-x",
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	// the cancelled order must not block recording the failed payment
	if err := r.HandleFailure(ctx, json.RawMessage(`{"reference":"ref-x"}`)); err != nil {
		t.Fatalf("HandleFailure error: %v", err)
	}
	if got := awstest.StringAttr(fake.Item("payments", "ref-x"), "status"); got != payments.StatusFailed {
		t.Fatalf("payment status = %q, want FAILED", got)
	}
	if got := awstest.StringAttr(fake.Item("orders", "order-x"), "status"); got != orders.StatusCancelled {
		t.Fatalf("order status = %q, want CANCELLED untouched", got)
	}
}

func TestHandle_UnknownReferenceIsAcknowledged(t *testing.T) {
	r, fake := newTestReconciler(t)

	data := json.RawMessage(`{"reference":"no-such-ref"}`)
	if err := r.HandleSuccess(context.Background(), data); err != nil {
		t.Fatalf("unknown reference must not error: %v", err)
	}
	if fake.TransactCalls != 0 {
		t.Fatalf("no writes expected, got %d transactions", fake.TransactCalls)
	}
}

func TestHandleSuccess_PaymentWithoutOrder(t *testing.T) {
	r, fake := newTestReconciler(t)
	ctx := context.Background()

	if err := payments.NewStore(fake, "payments").Create(ctx, payments.Payment{Reference: "ref-solo"}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	if err := r.HandleSuccess(ctx, json.RawMessage(`{"reference":"ref-solo"}`)); err != nil {
		t.Fatalf("HandleSuccess error: %v", err)
	}
	if got := awstest.StringAttr(fake.Item("payments", "ref-solo"), "status"); got != payments.StatusSuccess {
		t.Fatalf("payment status = %q, want SUCCESS", got)
	}
}
