package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/estatecart/commerce/internal/aws"
)

// Record holds the stock counter for one product.
type Record struct {
	ProductID string    `dynamodbav:"product_id"` // PK
	Quantity  int64     `dynamodbav:"quantity"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Store encapsulates operations on the inventory table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new inventory Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes a stock record (seeding / restock).
func (s *Store) Put(ctx context.Context, rec Record) error {
	rec.UpdatedAt = s.nowFunc()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches the stock record for a product. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// DecrementItem builds a transact write that reduces the product's quantity
// by qty. There is no floor condition; the counter may go negative.
func (s *Store) DecrementItem(productID string, qty int) types.TransactWriteItem {
	now := s.nowFunc()
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName: &s.tableName,
			Key: map[string]types.AttributeValue{
				"product_id": &types.AttributeValueMemberS{Value: productID},
			},
			UpdateExpression: awsString("SET quantity = quantity - :q, updated_at = :ua"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":q":  &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
				":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			},
		},
	}
}

func awsString(s string) *string { return &s }
