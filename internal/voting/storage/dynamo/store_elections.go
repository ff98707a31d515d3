package dynamo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

type electionItem struct {
	PK             string `dynamodbav:"pk"`
	SK             string `dynamodbav:"sk"`
	Name           string `dynamodbav:"name"`
	OwnerName      string `dynamodbav:"owner_name"`
	SecretBallot   bool   `dynamodbav:"secret_ballot"`
	AllowVote      bool   `dynamodbav:"allow_vote"`
	AllowEdit      bool   `dynamodbav:"allow_edit"`
	Launched       bool   `dynamodbav:"launched"`
	NoVotingBefore *int64 `dynamodbav:"no_voting_before,omitempty"`
	NoVotingAfter  *int64 `dynamodbav:"no_voting_after,omitempty"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	UpdatedAt      int64  `dynamodbav:"updated_at"`
}

func optionalMillis(value *time.Time) *int64 {
	if value == nil {
		return nil
	}
	millis := value.UTC().UnixMilli()
	return &millis
}

func optionalTime(millis *int64) *time.Time {
	if millis == nil {
		return nil
	}
	t := time.UnixMilli(*millis).UTC()
	return &t
}

func electionToItem(rec storage.ElectionRecord) electionItem {
	return electionItem{
		PK:             electionPK(rec.Name),
		SK:             skMetadata,
		Name:           rec.Name,
		OwnerName:      rec.OwnerName,
		SecretBallot:   rec.SecretBallot,
		AllowVote:      rec.AllowVote,
		AllowEdit:      rec.AllowEdit,
		Launched:       rec.Launched,
		NoVotingBefore: optionalMillis(rec.NoVotingBefore),
		NoVotingAfter:  optionalMillis(rec.NoVotingAfter),
		CreatedAt:      rec.CreatedAt.UTC().UnixMilli(),
		UpdatedAt:      rec.UpdatedAt.UTC().UnixMilli(),
	}
}

func electionFromItem(item electionItem) storage.ElectionRecord {
	return storage.ElectionRecord{
		Name:           item.Name,
		OwnerName:      item.OwnerName,
		SecretBallot:   item.SecretBallot,
		AllowVote:      item.AllowVote,
		AllowEdit:      item.AllowEdit,
		Launched:       item.Launched,
		NoVotingBefore: optionalTime(item.NoVotingBefore),
		NoVotingAfter:  optionalTime(item.NoVotingAfter),
		CreatedAt:      time.UnixMilli(item.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMilli(item.UpdatedAt).UTC(),
	}
}

// PutElection upserts an election record by name.
func (s *Store) PutElection(ctx context.Context, rec storage.ElectionRecord) error {
	item, err := attributevalue.MarshalMap(electionToItem(rec))
	if err != nil {
		return fmt.Errorf("marshal election: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.dataTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put election: %w", err)
	}
	return nil
}

// DeleteElection removes the election partition: metadata, candidates,
// eligibility entries, and ballots. An absent partition is a no-op, so
// replaying a partially applied delete removes whatever remains.
func (s *Store) DeleteElection(ctx context.Context, name string) error {
	keys, err := s.partitionKeys(ctx, electionPK(name))
	if err != nil {
		return err
	}
	writes := make([]types.TransactWriteItem, 0, len(keys))
	for _, key := range keys {
		writes = append(writes, s.deleteWrite(key.PK, key.SK))
	}
	return s.transactWrite(ctx, writes)
}

// partitionKeys returns every pk/sk pair under a partition.
func (s *Store) partitionKeys(ctx context.Context, pk string) ([]memberItem, error) {
	items, err := s.queryPartition(ctx, pk, "")
	if err != nil {
		return nil, err
	}
	keys := make([]memberItem, 0, len(items))
	for _, raw := range items {
		var key memberItem
		if err := attributevalue.UnmarshalMap(raw, &key); err != nil {
			return nil, fmt.Errorf("unmarshal key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

type memberItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

// AddCandidates unions names into the election's candidate set.
func (s *Store) AddCandidates(ctx context.Context, electionName string, names []string) error {
	return s.putMembers(ctx, electionName, candidateSK, names)
}

// RemoveCandidates subtracts names from the election's candidate set.
func (s *Store) RemoveCandidates(ctx context.Context, electionName string, names []string) error {
	return s.removeMembers(ctx, electionName, candidateSK, names)
}

// AddVoters unions names into the election's eligibility set.
func (s *Store) AddVoters(ctx context.Context, electionName string, names []string) error {
	return s.putMembers(ctx, electionName, eligibleSK, names)
}

// RemoveVoters subtracts names from the election's eligibility set.
func (s *Store) RemoveVoters(ctx context.Context, electionName string, names []string) error {
	return s.removeMembers(ctx, electionName, eligibleSK, names)
}

func (s *Store) putMembers(ctx context.Context, electionName string, skFor func(string) string, names []string) error {
	for _, name := range names {
		item, err := attributevalue.MarshalMap(memberItem{
			PK: electionPK(electionName),
			SK: skFor(name),
		})
		if err != nil {
			return fmt.Errorf("marshal member: %w", err)
		}
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.dataTable),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("put member: %w", err)
		}
	}
	return nil
}

func (s *Store) removeMembers(ctx context.Context, electionName string, skFor func(string) string, names []string) error {
	for _, name := range names {
		if err := s.deleteItem(ctx, electionPK(electionName), skFor(name)); err != nil {
			return err
		}
	}
	return nil
}

// SearchElectionByName returns one election, if present.
func (s *Store) SearchElectionByName(ctx context.Context, name string) (storage.ElectionRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(electionPK(name), skMetadata),
	})
	if err != nil {
		return storage.ElectionRecord{}, false, fmt.Errorf("get election: %w", err)
	}
	if out.Item == nil {
		return storage.ElectionRecord{}, false, nil
	}
	var item electionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return storage.ElectionRecord{}, false, fmt.Errorf("unmarshal election: %w", err)
	}
	return electionFromItem(item), true, nil
}

// ListElections returns all elections ordered by name.
func (s *Store) ListElections(ctx context.Context) ([]storage.ElectionRecord, error) {
	items, err := s.scanByPrefix(ctx, electionPrefix, skMetadata)
	if err != nil {
		return nil, err
	}
	records := make([]storage.ElectionRecord, 0, len(items))
	for _, raw := range items {
		var item electionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal election: %w", err)
		}
		records = append(records, electionFromItem(item))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// ElectionCount returns the total number of elections.
func (s *Store) ElectionCount(ctx context.Context) (int, error) {
	items, err := s.scanByPrefix(ctx, electionPrefix, skMetadata)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// ListCandidates returns the election's candidates ordered by name.
func (s *Store) ListCandidates(ctx context.Context, electionName string) ([]string, error) {
	return s.listMembers(ctx, electionName, candidatePrefix)
}

// CandidateCount returns the total number of candidate rows.
func (s *Store) CandidateCount(ctx context.Context) (int, error) {
	return s.countMembers(ctx, candidatePrefix)
}

// ListVotersForElection returns the eligibility set ordered by name.
func (s *Store) ListVotersForElection(ctx context.Context, electionName string) ([]string, error) {
	return s.listMembers(ctx, electionName, eligiblePrefix)
}

// VoterCount returns the total number of eligibility rows.
func (s *Store) VoterCount(ctx context.Context) (int, error) {
	return s.countMembers(ctx, eligiblePrefix)
}

func (s *Store) listMembers(ctx context.Context, electionName, skPrefix string) ([]string, error) {
	items, err := s.queryPartition(ctx, electionPK(electionName), skPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, raw := range items {
		var item memberItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal member: %w", err)
		}
		names = append(names, strings.TrimPrefix(item.SK, skPrefix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) countMembers(ctx context.Context, skPrefix string) (int, error) {
	elections, err := s.ListElections(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range elections {
		names, err := s.listMembers(ctx, e.Name, skPrefix)
		if err != nil {
			return 0, err
		}
		total += len(names)
	}
	return total, nil
}

// queryPartition queries one partition, optionally filtered to an sk prefix,
// following pagination.
func (s *Store) queryPartition(ctx context.Context, pk, skPrefix string) ([]map[string]types.AttributeValue, error) {
	keyCondition := "pk = :pk"
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: pk},
	}
	if skPrefix != "" {
		keyCondition += " AND begins_with(sk, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.dataTable),
			KeyConditionExpression:    aws.String(keyCondition),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query partition %s: %w", pk, err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
