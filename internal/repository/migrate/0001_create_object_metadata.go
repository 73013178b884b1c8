package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	ObjectMetadataTableName = "object_metadata"
	ObjectMetadataVersion   = "20250731000000_object_metadata_table"
)

// TableAPI is the part of the DynamoDB client the migration uses.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type CreateObjectMetadataTable struct {
	tableName string
	// WaitTimeout bounds how long Up waits for the table to become active.
	WaitTimeout time.Duration
}

// NewCreateObjectMetadataTable returns the migration for tableName, or for
// ObjectMetadataTableName when empty.
func NewCreateObjectMetadataTable(tableName string) *CreateObjectMetadataTable {
	if tableName == "" {
		tableName = ObjectMetadataTableName
	}
	return &CreateObjectMetadataTable{tableName: tableName, WaitTimeout: 5 * time.Minute}
}

func (m *CreateObjectMetadataTable) Version() string {
	return ObjectMetadataVersion
}

func (m *CreateObjectMetadataTable) TableName() string {
	return m.tableName
}

// Input builds the table definition: one item per object, keyed by GFID.
func (m *CreateObjectMetadataTable) Input() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("gfid"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("gfid"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
		},
		TableName:   aws.String(m.tableName),
		BillingMode: types.BillingModePayPerRequest, // On-demand billing for variable workloads
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("ObjectPlacementMetadata"),
			},
		},
	}
}

func (m *CreateObjectMetadataTable) Up(ctx context.Context, client TableAPI) error {
	if _, err := client.CreateTable(ctx, m.Input()); err != nil {
		return err
	}

	// Wait for table to become active
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.tableName),
	}, m.WaitTimeout)
}

func (m *CreateObjectMetadataTable) Down(ctx context.Context, client TableAPI) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(m.tableName),
	})
	return err
}
