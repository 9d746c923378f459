package contests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/prize-arena-payments/internal/aws"
)

var (
	// ErrStatusMismatch is returned when the stored status is not the expected one.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrInvalidTransition is returned for transitions outside the contest lifecycle.
	ErrInvalidTransition = errors.New("invalid contest status transition")
)

// Store encapsulates operations on the contests table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new contests Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a contest by contest_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, contestID string) (*Contest, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key(contestID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Contest
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal contest: %w", err)
	}
	return &c, nil
}

// UpdateStatus moves a contest from -> to. The transition must be allowed by the
// lifecycle, and the write only lands if the stored status still equals from.
func (s *Store) UpdateStatus(ctx context.Context, contestID string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := s.nowFunc().UTC()
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      key(contestID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(to)},
			":expected": &types.AttributeValueMemberS{Value: string(from)},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("#s = :expected"),
	}

	_, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// IncrementParticipantsItem returns the transaction step that adds one participant.
// The step fails its condition when the contest does not exist, so a transaction
// carrying it never creates a counter for a missing contest.
func (s *Store) IncrementParticipantsItem(contestID string) types.TransactWriteItem {
	now := s.nowFunc().UTC()
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:        &s.tableName,
			Key:              key(contestID),
			UpdateExpression: awsString("ADD participant_count :one SET updated_at = :ua"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
				":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			},
			ConditionExpression:                 awsString("attribute_exists(contest_id)"),
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureNone,
		},
	}
}

func key(contestID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"contest_id": &types.AttributeValueMemberS{Value: contestID},
	}
}

func awsString(s string) *string { return &s }
