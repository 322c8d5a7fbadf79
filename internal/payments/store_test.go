package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/estatecart/commerce/internal/awstest"
)

func TestCreateAndGetByReference(t *testing.T) {
	fake := awstest.NewDynamoFake().AddTable("payments", "reference")
	s := NewStore(fake, "payments")
	ctx := context.Background()

	err := s.Create(ctx, Payment{
		Reference: "ref-1",
		OrderID:   "order-1",
		Amount:    2500,
		Raw:       map[string]interface{}{"source": "checkout"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	p, err := s.GetByReference(ctx, "ref-1")
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if p == nil {
		t.Fatalf("payment not found after create")
	}
	if p.Status != StatusPending {
		t.Fatalf("status = %q, want default PENDING", p.Status)
	}
	if p.OrderID != "order-1" || p.Amount != 2500 {
		t.Fatalf("round trip mismatch: %+v", p)
	}
	if p.Raw["source"] != "checkout" {
		t.Fatalf("raw lost in round trip: %+v", p.Raw)
	}
}

func TestCreateDuplicateReference(t *testing.T) {
	fake := awstest.NewDynamoFake().AddTable("payments", "reference")
	s := NewStore(fake, "payments")
	ctx := context.Background()

	if err := s.Create(ctx, Payment{Reference: "ref-1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := s.Create(ctx, Payment{Reference: "ref-1"})
	if !errors.Is(err, ErrReferenceExists) {
		t.Fatalf("duplicate create: got %v, want ErrReferenceExists", err)
	}
}

func TestGetByReferenceMissing(t *testing.T) {
	fake := awstest.NewDynamoFake().AddTable("payments", "reference")
	s := NewStore(fake, "payments")

	p, err := s.GetByReference(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil for missing reference, got %+v", p)
	}
}
