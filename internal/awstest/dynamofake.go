// Package awstest provides a small in-memory DynamoDB fake for unit tests.
// It understands only the expression shapes the stores actually issue.
// NOTE: intentionally minimal and not production-grade.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoFake stores items per table in a nested map: table -> pkValue -> item.
type DynamoFake struct {
	mu     sync.Mutex
	pks    map[string]string // table -> pk attribute name
	tables map[string]map[string]map[string]types.AttributeValue

	PutCalls      int
	GetCalls      int
	UpdateCalls   int
	DeleteCalls   int
	ScanCalls     int
	TransactCalls int

	// FailTransact forces the next TransactWriteItems call to fail with the
	// given error (and resets). Used to exercise the replay path.
	FailTransact error
}

// NewDynamoFake returns an empty fake. Register each table with its primary
// key attribute before use.
func NewDynamoFake() *DynamoFake {
	return &DynamoFake{
		pks:    map[string]string{},
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

// AddTable registers a table and its primary key attribute.
func (m *DynamoFake) AddTable(name, pkAttr string) *DynamoFake {
	m.pks[name] = pkAttr
	m.tables[name] = map[string]map[string]types.AttributeValue{}
	return m
}

// Item returns the raw stored item for assertions, or nil.
func (m *DynamoFake) Item(table, pk string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[table][pk]
}

// StringAttr extracts a string attribute from a stored item ("" if absent).
func StringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// NumberAttr extracts a numeric attribute from a stored item (0 if absent).
func NumberAttr(item map[string]types.AttributeValue, name string) float64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	}
	return 0
}

func (m *DynamoFake) pkOf(table string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := m.pks[table]
	if !ok {
		return "", fmt.Errorf("unknown table %q", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing pk %q for table %q", attr, table)
	}
	return v.Value, nil
}

func (m *DynamoFake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++

	table := *params.TableName
	pk, err := m.pkOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil {
		if strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists(") {
			if _, exists := m.tables[table][pk]; exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *DynamoFake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++

	table := *params.TableName
	pk, err := m.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *DynamoFake) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++

	table := *params.TableName
	pk, err := m.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	delete(m.tables[table], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *DynamoFake) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScanCalls++

	table := *params.TableName
	items := make([]map[string]types.AttributeValue, 0, len(m.tables[table]))
	for _, item := range m.tables[table] {
		items = append(items, item)
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (m *DynamoFake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++

	table := *params.TableName
	pk, err := m.pkOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][pk]
	if !exists {
		return nil, errors.New("item not found")
	}
	if err := checkCondition(item, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	if err := applyUpdate(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

// TransactWriteItems verifies every condition first, then applies all writes,
// mirroring DynamoDB's all-or-nothing contract. Any failed condition cancels
// the whole batch.
func (m *DynamoFake) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactCalls++

	if m.FailTransact != nil {
		err := m.FailTransact
		m.FailTransact = nil
		return nil, err
	}

	// one operation per item, as the real API enforces
	seen := map[string]bool{}
	for _, it := range params.TransactItems {
		var table, pk string
		var err error
		switch {
		case it.Update != nil:
			table = *it.Update.TableName
			pk, err = m.pkOf(table, it.Update.Key)
		case it.Put != nil:
			table = *it.Put.TableName
			pk, err = m.pkOf(table, it.Put.Item)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		key := table + "/" + pk
		if seen[key] {
			return nil, fmt.Errorf("transaction contains multiple operations on item %s", key)
		}
		seen[key] = true
	}

	// first pass: conditions only
	for i, it := range params.TransactItems {
		if u := it.Update; u != nil {
			table := *u.TableName
			pk, err := m.pkOf(table, u.Key)
			if err != nil {
				return nil, err
			}
			item, exists := m.tables[table][pk]
			if u.ConditionExpression != nil {
				if !exists {
					return nil, canceledAt(i, len(params.TransactItems))
				}
				if err := checkCondition(item, u.ConditionExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
					return nil, canceledAt(i, len(params.TransactItems))
				}
			} else if !exists {
				return nil, fmt.Errorf("transact update on missing item %s/%s", table, pk)
			}
		}
		if p := it.Put; p != nil {
			table := *p.TableName
			pk, err := m.pkOf(table, p.Item)
			if err != nil {
				return nil, err
			}
			if p.ConditionExpression != nil && strings.HasPrefix(*p.ConditionExpression, "attribute_not_exists(") {
				if _, exists := m.tables[table][pk]; exists {
					return nil, canceledAt(i, len(params.TransactItems))
				}
			}
		}
	}

	// second pass: apply
	for _, it := range params.TransactItems {
		if u := it.Update; u != nil {
			table := *u.TableName
			pk, _ := m.pkOf(table, u.Key)
			item := m.tables[table][pk]
			if err := applyUpdate(item, *u.UpdateExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
			m.tables[table][pk] = item
		}
		if p := it.Put; p != nil {
			table := *p.TableName
			pk, _ := m.pkOf(table, p.Item)
			m.tables[table][pk] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// canceledAt builds the cancellation the real API returns for a failed
// condition: one reason per transact item, ConditionalCheckFailed at the
// failing index and None everywhere else.
func canceledAt(idx, total int) *types.TransactionCanceledException {
	reasons := make([]types.CancellationReason, total)
	for i := range reasons {
		code := "None"
		if i == idx {
			code = "ConditionalCheckFailed"
		}
		reasons[i] = types.CancellationReason{Code: &code}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

// checkCondition supports the two forms the stores use:
// "attribute_not_exists(x)" and "#a = :v".
func checkCondition(item map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	expr := strings.TrimSpace(*cond)
	if strings.HasPrefix(expr, "attribute_not_exists(") {
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_not_exists("), ")"), names)
		if _, ok := item[attr]; ok {
			return &types.ConditionalCheckFailedException{}
		}
		return nil
	}
	lhs, rhs, ok := strings.Cut(expr, "=")
	if !ok {
		return fmt.Errorf("unsupported condition %q", expr)
	}
	attr := resolveName(strings.TrimSpace(lhs), names)
	want, ok := values[strings.TrimSpace(rhs)].(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("unsupported condition value in %q", expr)
	}
	have, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok || have.Value != want.Value {
		return &types.ConditionalCheckFailedException{}
	}
	return nil
}

// applyUpdate supports "SET a = :v, b = b - :n, ..." clauses.
func applyUpdate(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("unsupported update expression %q", expr)
	}
	for _, clause := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		lhs, rhs, ok := strings.Cut(clause, "=")
		if !ok {
			return fmt.Errorf("unsupported clause %q", clause)
		}
		attr := resolveName(strings.TrimSpace(lhs), names)
		rhs = strings.TrimSpace(rhs)

		if strings.Contains(rhs, "-") {
			// "target - :v" numeric subtraction
			base, sub, _ := strings.Cut(rhs, "-")
			baseAttr := resolveName(strings.TrimSpace(base), names)
			current, ok := item[baseAttr].(*types.AttributeValueMemberN)
			if !ok {
				return fmt.Errorf("attribute %q is not numeric", baseAttr)
			}
			delta, ok := values[strings.TrimSpace(sub)].(*types.AttributeValueMemberN)
			if !ok {
				return fmt.Errorf("missing numeric value %q", strings.TrimSpace(sub))
			}
			cur, err := strconv.ParseInt(current.Value, 10, 64)
			if err != nil {
				return err
			}
			d, err := strconv.ParseInt(delta.Value, 10, 64)
			if err != nil {
				return err
			}
			item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur-d, 10)}
			continue
		}

		v, ok := values[rhs]
		if !ok {
			return fmt.Errorf("missing value %q", rhs)
		}
		item[attr] = v
	}
	return nil
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}
