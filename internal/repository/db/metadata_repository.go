package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zzenonn/zbucket/internal/domain"
	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

// ItemAPI is the part of the DynamoDB client the metadata repository uses.
type ItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// MetadataRepository manages DynamoDB interactions for ObjectMetadata.
type MetadataRepository struct {
	client    ItemAPI
	tableName string
}

// NewMetadataRepository initializes a new MetadataRepository.
func NewMetadataRepository(client ItemAPI, tableName string) MetadataRepository {
	return MetadataRepository{
		client:    client,
		tableName: tableName,
	}
}

func gfidKey(gfid domain.GFID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"gfid": &types.AttributeValueMemberS{Value: gfid.String()},
	}
}

// CreateMetadata stores object metadata in DynamoDB.
func (repo *MetadataRepository) CreateMetadata(ctx context.Context, metadata domain.ObjectMetadata) (domain.ObjectMetadata, error) {
	if metadata.GFID == "" {
		return domain.ObjectMetadata{}, zerrors.ErrMissingRequiredFields
	}

	metadataMap, err := attributevalue.MarshalMap(metadata)
	if err != nil {
		return domain.ObjectMetadata{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(repo.tableName),
		Item:      metadataMap,
	}

	if _, err := repo.client.PutItem(ctx, input); err != nil {
		return domain.ObjectMetadata{}, fmt.Errorf("failed to create metadata: %w", err)
	}

	return metadata, nil
}

// GetMetadata retrieves object metadata by GFID.
func (repo *MetadataRepository) GetMetadata(ctx context.Context, gfid domain.GFID) (domain.ObjectMetadata, error) {
	result, err := repo.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(repo.tableName),
		Key:       gfidKey(gfid),
	})
	if err != nil {
		return domain.ObjectMetadata{}, fmt.Errorf("failed to get metadata: %w", err)
	}

	if result.Item == nil {
		return domain.ObjectMetadata{}, fmt.Errorf("%w: metadata for %s", zerrors.ErrObjectNotFound, gfid)
	}

	var metadata domain.ObjectMetadata
	if err := attributevalue.UnmarshalMap(result.Item, &metadata); err != nil {
		return domain.ObjectMetadata{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// ListMetadata scans every stored object, following pagination.
func (repo *MetadataRepository) ListMetadata(ctx context.Context) ([]domain.ObjectMetadata, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(repo.tableName),
	}

	var metadataList []domain.ObjectMetadata
	for {
		result, err := repo.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		var page []domain.ObjectMetadata
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		metadataList = append(metadataList, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return metadataList, nil
}

// DeleteMetadata removes object metadata by GFID.
func (repo *MetadataRepository) DeleteMetadata(ctx context.Context, gfid domain.GFID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(repo.tableName),
		Key:       gfidKey(gfid),
	}

	if _, err := repo.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}
