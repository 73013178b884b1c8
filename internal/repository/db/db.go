package db

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zbucket/internal/repository/migrate"
)

type DynamoDb struct {
	Client *dynamodb.Client
	table  string
}

func NewDatabase(awsConfig aws.Config, table string) (*DynamoDb, error) {
	client := dynamodb.NewFromConfig(awsConfig)
	if client == nil {
		return nil, fmt.Errorf("failed to create DynamoDB client")
	}

	return &DynamoDb{
		Client: client,
		table:  table,
	}, nil
}

// MigrateDb creates the metadata table.
func (d *DynamoDb) MigrateDb(ctx context.Context) error {
	m := migrate.NewCreateObjectMetadataTable(d.table)
	log.WithField("version", m.Version()).Info("Applying migration")
	return m.Up(ctx, d.Client)
}

// MigrateDown drops the metadata table.
func (d *DynamoDb) MigrateDown(ctx context.Context) error {
	m := migrate.NewCreateObjectMetadataTable(d.table)
	log.WithField("version", m.Version()).Info("Rolling back migration")
	return m.Down(ctx, d.Client)
}
