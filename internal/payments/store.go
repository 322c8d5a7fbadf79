package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/estatecart/commerce/internal/aws"
)

// ErrReferenceExists indicates a payment with the same reference already exists.
var ErrReferenceExists = errors.New("payment reference already exists")

// Store encapsulates operations on the payments table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new payments Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a new payment. Checkout initiation calls this once per
// provider reference; the conditional put rejects duplicates.
func (s *Store) Create(ctx context.Context, p Payment) error {
	now := s.nowFunc()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = StatusPending
	}

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(reference)"),
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrReferenceExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// GetByReference fetches a payment by provider reference. Returns (nil, nil) if not found.
func (s *Store) GetByReference(ctx context.Context, reference string) (*Payment, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"reference": &types.AttributeValueMemberS{Value: reference},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

// TransitionItem builds a transact write that moves the payment from PENDING
// to newStatus and replaces raw with the already-merged provider payload map.
// The condition on the current status is what makes duplicate webhook
// deliveries harmless: a second delivery fails the condition and cancels the
// whole transaction, side effects included.
func (s *Store) TransitionItem(reference, newStatus string, raw map[string]interface{}) (types.TransactWriteItem, error) {
	rawAV, err := attributevalue.Marshal(raw)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal raw payload: %w", err)
	}
	now := s.nowFunc()

	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"reference": &types.AttributeValueMemberS{Value: reference},
			},
			UpdateExpression:         awsString("SET #s = :new, #r = :raw, updated_at = :ua"),
			ExpressionAttributeNames: map[string]string{"#s": "status", "#r": "raw"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":      &types.AttributeValueMemberS{Value: newStatus},
				":raw":      rawAV,
				":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
				":expected": &types.AttributeValueMemberS{Value: StatusPending},
			},
			ConditionExpression: awsString("#s = :expected"),
		},
	}, nil
}

func awsString(s string) *string { return &s }
