package payments

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/prize-arena-payments/internal/aws"
)

// Store encapsulates operations on the payments table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a payments Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a payment by transaction id with a strongly consistent read.
// Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, transactionID string) (*Payment, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"transaction_id": &types.AttributeValueMemberS{Value: transactionID},
		},
		ConsistentRead: awsBool(true),
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

// GetByTrackingID looks a payment up through the tracking id index.
func (s *Store) GetByTrackingID(ctx context.Context, trackingID string) (*Payment, error) {
	items, err := s.query(ctx, TrackingIDIndex, "tracking_id", trackingID, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ListByPayer returns the payments made by email, at most limit of them.
func (s *Store) ListByPayer(ctx context.Context, email string, limit int32) ([]Payment, error) {
	return s.query(ctx, PayerEmailIndex, "payer_email", email, limit)
}

// PutItem returns the transaction step that inserts p. The step fails its
// condition when a payment with the same transaction id exists.
func (s *Store) PutItem(p Payment) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal payment: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(transaction_id)"),
		},
	}, nil
}

func (s *Store) query(ctx context.Context, index, attr, value string, limit int32) ([]Payment, error) {
	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 &index,
		KeyConditionExpression:    awsString("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
	}
	if limit > 0 {
		input.Limit = &limit
	}
	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	var ps []Payment
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &ps); err != nil {
		return nil, fmt.Errorf("unmarshal payments: %w", err)
	}
	return ps, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
