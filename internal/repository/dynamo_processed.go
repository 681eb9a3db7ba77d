package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/retrocast/api/internal/model"
)

// Key layout: one partition per user, items sorted by completion time.
const (
	pkUserPrefix      = "USER#"
	skProcessedPrefix = "PROCESSED#"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoProcessedStore implements ProcessedStore on a single DynamoDB table
// keyed by PK/SK.
type DynamoProcessedStore struct {
	client    DynamoAPI
	tableName string
}

var _ ProcessedStore = (*DynamoProcessedStore)(nil)

func NewDynamoProcessedStore(client DynamoAPI, tableName string) *DynamoProcessedStore {
	return &DynamoProcessedStore{client: client, tableName: tableName}
}

func processedSK(v *model.ProcessedVideo) string {
	return skProcessedPrefix + v.ProcessedAt.UTC().Format(time.RFC3339Nano) + "#" + v.ID
}

func (s *DynamoProcessedStore) Save(ctx context.Context, v *model.ProcessedVideo) error {
	copied := *v
	copied.Schedule = nonNilSchedule(v.Schedule)
	item, err := attributevalue.MarshalMap(copied)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pk := pkUserPrefix + v.UserID
	sk := processedSK(v)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoProcessedStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.ProcessedVideo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkUserPrefix + userID},
			":sk": &types.AttributeValueMemberS{Value: skProcessedPrefix},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("Query processed videos for %s: %w", userID, err)
	}

	videos := make([]model.ProcessedVideo, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &videos); err != nil {
		return nil, fmt.Errorf("unmarshal processed videos: %w", err)
	}
	return videos, nil
}
