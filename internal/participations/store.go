package participations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/prize-arena-payments/internal/aws"
)

// Store encapsulates operations on the participations table
// (PK contest_id, SK payer_uid).
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a participations Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches the participation of uid in contestID. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, contestID, uid string) (*Participation, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"contest_id": &types.AttributeValueMemberS{Value: contestID},
			"payer_uid":  &types.AttributeValueMemberS{Value: uid},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Participation
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal participation: %w", err)
	}
	return &p, nil
}

// ListByContest returns every participation recorded for a contest, following
// LastEvaluatedKey across result pages.
func (s *Store) ListByContest(ctx context.Context, contestID string) ([]Participation, error) {
	pager := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("contest_id = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: contestID},
		},
	})

	var ps []Participation
	for pager.HasMorePages() {
		out, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		var page []Participation
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal participations: %w", err)
		}
		ps = append(ps, page...)
	}
	return ps, nil
}

// PutItem returns the transaction step that inserts p. An existing
// (contest, user) participation makes the step fail instead of being overwritten.
func (s *Store) PutItem(p Participation) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal participation: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(contest_id)"),
		},
	}, nil
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
