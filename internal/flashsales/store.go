package flashsales

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/estatecart/commerce/internal/aws"
)

// Store encapsulates operations on the flash-sales table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new flash-sales Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put writes a flash sale (create or full replace after a patch).
func (s *Store) Put(ctx context.Context, sale FlashSale) error {
	now := s.nowFunc()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	item, err := attributevalue.MarshalMap(sale)
	if err != nil {
		return fmt.Errorf("marshal flash sale: %w", err)
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

// Get fetches a flash sale by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*FlashSale, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var sale FlashSale
	if err := attributevalue.UnmarshalMap(out.Item, &sale); err != nil {
		return nil, fmt.Errorf("unmarshal flash sale: %w", err)
	}
	return &sale, nil
}

// Delete removes a flash sale by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// List returns all flash sales; when activeOnly is set, only sales whose
// window contains the current time and which are flagged active.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]FlashSale, error) {
	out, err := s.client.Scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	now := s.nowFunc()
	result := make([]FlashSale, 0, len(out.Items))
	for _, item := range out.Items {
		var sale FlashSale
		if err := attributevalue.UnmarshalMap(item, &sale); err != nil {
			return nil, fmt.Errorf("unmarshal flash sale: %w", err)
		}
		if activeOnly && !sale.ActiveAt(now) {
			continue
		}
		result = append(result, sale)
	}
	return result, nil
}
