package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/estatecart/commerce/internal/awstest"
	"github.com/estatecart/commerce/internal/config"
	"github.com/estatecart/commerce/internal/inventory"
	"github.com/estatecart/commerce/internal/orders"
	"github.com/estatecart/commerce/internal/payments"
	"github.com/estatecart/commerce/internal/webhook"
)

const testWebhookSecret = "sk_test_webhook"

// fakeSQS records sent message bodies; sendErr makes every send fail.
type fakeSQS struct {
	mu      sync.Mutex
	bodies  []string
	sendErr error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.bodies = append(f.bodies, *params.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

// fakeCloudWatch records emitted metric names.
type fakeCloudWatch struct {
	mu      sync.Mutex
	metrics []string
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range params.MetricData {
		f.metrics = append(f.metrics, *d.MetricName)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.metrics {
		if m == name {
			n++
		}
	}
	return n
}

func testConfig() config.Config {
	return config.Config{
		PaystackSecretKey: testWebhookSecret,
		SessionSecret:     "session-secret",
		PaymentsTable:     "payments",
		OrdersTable:       "orders",
		InventoryTable:    "inventory",
		ProductsTable:     "products",
		FlashSalesTable:   "flash-sales",
		ReplayQueueURL:    "https://sqs.test/replay",
	}
}

func newWebhookTestServer(t *testing.T) (*gin.Engine, *awstest.DynamoFake, *fakeSQS) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := awstest.NewDynamoFake().
		AddTable("payments", "reference").
		AddTable("orders", "order_id").
		AddTable("inventory", "product_id")
	queue := &fakeSQS{}

	r := gin.New()
	RegisterWebhookRoutes(r, HandlerConfig{
		DynamoDBClient: fake,
		SQSClient:      queue,
		Logger:         zap.NewNop(),
		Config:         testConfig(),
	})
	return r, fake, queue
}

func seedWebhookScenario(t *testing.T, fake *awstest.DynamoFake) {
	t.Helper()
	ctx := context.Background()

	if err := orders.NewStore(fake, "orders").Create(ctx, orders.Order{
		OrderID: "order-1",
		Status:  orders.StatusPending,
		Items:   []orders.LineItem{{ProductID: "prod-a", Quantity: 3}},
	}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := payments.NewStore(fake, "payments").Create(ctx, payments.Payment{
		Reference: "ref-1",
		OrderID:   "order-1",
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := inventory.NewStore(fake, "inventory").Put(ctx, inventory.Record{
		ProductID: "prod-a",
		Quantity:  10,
	}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paystack", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_ValidSuccessEvent(t *testing.T) {
	r, fake, _ := newWebhookTestServer(t)
	seedWebhookScenario(t, fake)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1","amount":5000}}`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["status"] != "success" {
		t.Fatalf("response = %v, want status success", resp)
	}

	if got := awstest.StringAttr(fake.Item("payments", "ref-1"), "status"); got != payments.StatusSuccess {
		t.Fatalf("payment status = %q", got)
	}
	if got := awstest.NumberAttr(fake.Item("inventory", "prod-a"), "quantity"); got != 7 {
		t.Fatalf("inventory quantity = %v, want 7", got)
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	r, fake, _ := newWebhookTestServer(t)
	seedWebhookScenario(t, fake)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	w := postWebhook(r, body, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if fake.TransactCalls != 0 {
		t.Fatalf("state mutated on rejected request")
	}
	if got := awstest.StringAttr(fake.Item("payments", "ref-1"), "status"); got != payments.StatusPending {
		t.Fatalf("payment status = %q, want untouched PENDING", got)
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	r, fake, _ := newWebhookTestServer(t)
	seedWebhookScenario(t, fake)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	w := postWebhook(r, body, "0000")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if fake.TransactCalls != 0 {
		t.Fatalf("state mutated on rejected request")
	}
}

func TestWebhook_UnknownEventAcknowledged(t *testing.T) {
	r, fake, _ := newWebhookTestServer(t)

	body := []byte(`{"event":"transfer.success","data":{"reference":"whatever"}}`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unrecognized event", w.Code)
	}
	if fake.TransactCalls != 0 {
		t.Fatalf("unknown event must not write")
	}
}

func TestWebhook_UnknownReferenceAcknowledged(t *testing.T) {
	r, _, _ := newWebhookTestServer(t)

	body := []byte(`{"event":"charge.success","data":{"reference":"ghost"}}`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown reference", w.Code)
	}
}

func TestWebhook_MalformedBodyRejected(t *testing.T) {
	r, _, _ := newWebhookTestServer(t)

	body := []byte(`{not json`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", w.Code)
	}
}

func TestWebhook_PersistenceFailureStillAcknowledgedAndReplayed(t *testing.T) {
	r, fake, queue := newWebhookTestServer(t)
	seedWebhookScenario(t, fake)
	fake.FailTransact = errors.New("provisioned throughput exceeded")

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, provider must still get 200", w.Code)
	}
	if len(queue.bodies) != 1 {
		t.Fatalf("expected 1 replay message, got %d", len(queue.bodies))
	}
	var msg webhook.ReplayMessage
	if err := json.Unmarshal([]byte(queue.bodies[0]), &msg); err != nil {
		t.Fatalf("replay message not JSON: %v", err)
	}
	if msg.Event != "charge.success" || msg.Reference != "ref-1" {
		t.Fatalf("replay message = %+v", msg)
	}
}

func TestWebhook_ReplayQueuedMetricCountsOnlySuccessfulSends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := awstest.NewDynamoFake().
		AddTable("payments", "reference").
		AddTable("orders", "order_id").
		AddTable("inventory", "product_id")
	queue := &fakeSQS{}
	cw := &fakeCloudWatch{}

	r := gin.New()
	RegisterWebhookRoutes(r, HandlerConfig{
		DynamoDBClient:   fake,
		SQSClient:        queue,
		CloudWatchClient: cw,
		Logger:           zap.NewNop(),
		Config:           testConfig(),
	})
	seedWebhookScenario(t, fake)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	sig := webhook.ComputeSignature(testWebhookSecret, body)

	fake.FailTransact = errors.New("storage down")
	if w := postWebhook(r, body, sig); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := cw.count("WebhookReplayQueued"); got != 1 {
		t.Fatalf("WebhookReplayQueued = %d after successful send, want 1", got)
	}

	// payment is still PENDING, so a redelivery reconciles again; with the
	// queue down the metric must not move
	queue.sendErr = errors.New("queue unavailable")
	fake.FailTransact = errors.New("storage down")
	if w := postWebhook(r, body, sig); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := cw.count("WebhookReplayQueued"); got != 1 {
		t.Fatalf("WebhookReplayQueued = %d after failed send, want still 1", got)
	}
}

func TestWebhook_ThrottledTransactionQueuesReplay(t *testing.T) {
	r, fake, queue := newWebhookTestServer(t)
	seedWebhookScenario(t, fake)

	code := "ThrottlingError"
	fake.FailTransact = &dynamodbtypes.TransactionCanceledException{
		CancellationReasons: []dynamodbtypes.CancellationReason{{Code: &code}},
	}

	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	w := postWebhook(r, body, webhook.ComputeSignature(testWebhookSecret, body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, provider must still get 200", w.Code)
	}
	if len(queue.bodies) != 1 {
		t.Fatalf("throttled cancellation must queue a replay, got %d messages", len(queue.bodies))
	}
	if got := awstest.StringAttr(fake.Item("payments", "ref-1"), "status"); got != payments.StatusPending {
		t.Fatalf("payment status = %q, want PENDING until the replay lands", got)
	}
}
