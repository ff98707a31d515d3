// Package dynamo implements voting persistence over DynamoDB.
//
// Two tables back a deployment: an events table holding the journal under a
// single partition, and a data table holding the command model in a
// single-table layout:
//
//	USER#<name>      / METADATA
//	ELECTION#<name>  / METADATA
//	ELECTION#<name>  / CANDIDATE#<candidate>
//	ELECTION#<name>  / ELIGIBLE#<voter>
//	ELECTION#<name>  / BALLOT#<voter>
//	SYNC             / CURSOR
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

const (
	skMetadata = "METADATA"
	skCursor   = "CURSOR"
	pkSync     = "SYNC"
	pkLog      = "LOG"

	userPrefix      = "USER#"
	electionPrefix  = "ELECTION#"
	candidatePrefix = "CANDIDATE#"
	eligiblePrefix  = "ELIGIBLE#"
	ballotPrefix    = "BALLOT#"
)

func userPK(name string) string        { return userPrefix + name }
func electionPK(name string) string    { return electionPrefix + name }
func candidateSK(name string) string   { return candidatePrefix + name }
func eligibleSK(name string) string    { return eligiblePrefix + name }
func ballotSK(voterName string) string { return ballotPrefix + voterName }

// Config carries the connection settings for a DynamoDB deployment. Endpoint
// and static credentials support local DynamoDB instances.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	DataTable       string
	EventsTable     string
}

// Store implements storage.Store over DynamoDB.
type Store struct {
	client      *dynamodb.Client
	dataTable   string
	eventsTable string
}

var _ storage.Store = (*Store)(nil)

// Open connects to DynamoDB and ensures both tables exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DataTable) == "" {
		return nil, fmt.Errorf("data table name is required")
	}
	if strings.TrimSpace(cfg.EventsTable) == "" {
		return nil, fmt.Errorf("events table name is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	store := &Store{
		client:      client,
		dataTable:   cfg.DataTable,
		eventsTable: cfg.EventsTable,
	}
	if err := store.ensureTables(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// Close is a no-op; the HTTP client needs no teardown.
func (s *Store) Close() error { return nil }

// transactMaxItems is the DynamoDB TransactWriteItems limit.
const transactMaxItems = 100

func (s *Store) putWrite(item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(s.dataTable),
		Item:      item,
	}}
}

func (s *Store) deleteWrite(pk, sk string) types.TransactWriteItem {
	return types.TransactWriteItem{Delete: &types.Delete{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(pk, sk),
	}}
}

// transactWrite applies the writes in transaction-sized chunks. A cascade
// wider than one transaction can be interrupted between chunks; callers
// rebuild their write set from current state, so replaying the event
// completes the remainder instead of failing.
func (s *Store) transactWrite(ctx context.Context, writes []types.TransactWriteItem) error {
	for _, bounds := range chunkBounds(len(writes)) {
		if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: writes[bounds[0]:bounds[1]],
		}); err != nil {
			return fmt.Errorf("transact write: %w", err)
		}
	}
	return nil
}

// chunkBounds returns the [start, end) chunk offsets transactWrite uses for
// n writes.
func chunkBounds(n int) [][2]int {
	var bounds [][2]int
	for start := 0; start < n; start += transactMaxItems {
		bounds = append(bounds, [2]int{start, min(start+transactMaxItems, n)})
	}
	return bounds
}

// ensureTables creates both tables when absent. Existing tables are left
// untouched.
func (s *Store) ensureTables(ctx context.Context) error {
	if err := s.createTable(ctx, s.dataTable, "pk", "sk", types.ScalarAttributeTypeS); err != nil {
		return err
	}
	return s.createTable(ctx, s.eventsTable, "pk", "id", types.ScalarAttributeTypeN)
}

func (s *Store) createTable(ctx context.Context, name, hashKey, rangeKey string, rangeType types.ScalarAttributeType) error {
	_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(rangeKey), AttributeType: rangeType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		var exists *types.ResourceInUseException
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}
