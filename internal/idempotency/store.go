// Package idempotency records processor webhook deliveries so a redelivered
// event is enqueued for reconciliation only once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/prize-arena-payments/internal/aws"
)

// Store encapsulates delivery log operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // how long a delivery is remembered
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow should exceed the processor's redelivery horizon (e.g. 72*time.Hour).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Begin records a delivery with status RECEIVED if the event id is new.
// Returns (true, nil) if created, (false, nil) if the event was seen before
// (caller should Get to inspect) and (false, err) on other errors.
func (s *Store) Begin(ctx context.Context, eventID, eventType, sessionID string) (bool, error) {
	now := s.nowFunc().UTC()
	d := Delivery{
		EventID:   eventID,
		SessionID: sessionID,
		EventType: eventType,
		Status:    StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return false, fmt.Errorf("marshal delivery: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(event_id)"),
	})
	if err != nil {
		var sc smithy.APIError
		if errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a delivery by event id. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, eventID string) (*Delivery, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(eventID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var d Delivery
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &d, nil
}

// MarkEnqueued sets status to ENQUEUED once the session is on the queue.
func (s *Store) MarkEnqueued(ctx context.Context, eventID string) error {
	if err := s.setStatus(ctx, eventID, StatusEnqueued, ""); err != nil {
		return fmt.Errorf("update item (mark enqueued): %w", err)
	}
	return nil
}

// MarkFailed marks the delivery FAILED with a note so a redelivery retries it.
func (s *Store) MarkFailed(ctx context.Context, eventID, note string) error {
	if err := s.setStatus(ctx, eventID, StatusFailed, note); err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

func (s *Store) setStatus(ctx context.Context, eventID string, status Status, note string) error {
	now := s.nowFunc().UTC()
	expr := "SET #s = :s, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":s":  &types.AttributeValueMemberS{Value: string(status)},
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if note != "" {
		expr += ", note = :n"
		values[":n"] = &types.AttributeValueMemberS{Value: note}
	}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(eventID),
		UpdateExpression:          awsString(expr),
		ConditionExpression:       awsString("attribute_exists(event_id)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	return err
}

func key(eventID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"event_id": &types.AttributeValueMemberS{Value: eventID},
	}
}

// Helpers
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
