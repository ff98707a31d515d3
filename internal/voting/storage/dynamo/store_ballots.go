package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

type rankingItem struct {
	Candidate string `dynamodbav:"candidate"`
	Position  int    `dynamodbav:"position"`
}

type ballotItem struct {
	PK           string        `dynamodbav:"pk"`
	SK           string        `dynamodbav:"sk"`
	ElectionName string        `dynamodbav:"election_name"`
	VoterName    string        `dynamodbav:"voter_name"`
	Confirmation string        `dynamodbav:"confirmation"`
	WhenCast     int64         `dynamodbav:"when_cast"`
	Rankings     []rankingItem `dynamodbav:"rankings"`
}

func ballotToItem(rec storage.BallotRecord) ballotItem {
	rankings := make([]rankingItem, 0, len(rec.Rankings))
	for _, r := range rec.Rankings {
		rankings = append(rankings, rankingItem{Candidate: r.Candidate, Position: r.Rank})
	}
	return ballotItem{
		PK:           electionPK(rec.ElectionName),
		SK:           ballotSK(rec.VoterName),
		ElectionName: rec.ElectionName,
		VoterName:    rec.VoterName,
		Confirmation: rec.Confirmation,
		WhenCast:     rec.WhenCast.UTC().UnixMilli(),
		Rankings:     rankings,
	}
}

func ballotFromItem(item ballotItem) storage.BallotRecord {
	rankings := make([]event.Ranking, 0, len(item.Rankings))
	for _, r := range item.Rankings {
		rankings = append(rankings, event.Ranking{Candidate: r.Candidate, Rank: r.Position})
	}
	return storage.BallotRecord{
		ElectionName: item.ElectionName,
		VoterName:    item.VoterName,
		Confirmation: item.Confirmation,
		WhenCast:     time.UnixMilli(item.WhenCast).UTC(),
		Rankings:     rankings,
	}
}

// PutBallot upserts a ballot by (election, voter). The rankings travel with
// the ballot item, so the replace is atomic.
func (s *Store) PutBallot(ctx context.Context, rec storage.BallotRecord) error {
	item, err := attributevalue.MarshalMap(ballotToItem(rec))
	if err != nil {
		return fmt.Errorf("marshal ballot: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.dataTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put ballot: %w", err)
	}
	return nil
}

// SearchBallot returns the ballot for (election, voter), if any.
func (s *Store) SearchBallot(ctx context.Context, electionName, voterName string) (storage.BallotRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(electionPK(electionName), ballotSK(voterName)),
	})
	if err != nil {
		return storage.BallotRecord{}, false, fmt.Errorf("get ballot: %w", err)
	}
	if out.Item == nil {
		return storage.BallotRecord{}, false, nil
	}
	var item ballotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return storage.BallotRecord{}, false, fmt.Errorf("unmarshal ballot: %w", err)
	}
	return ballotFromItem(item), true, nil
}

// SearchBallotByConfirmation scans ballots for a confirmation holder.
// Confirmations have no index; the table stays small enough for a scan.
func (s *Store) SearchBallotByConfirmation(ctx context.Context, confirmation string) (storage.BallotRecord, bool, error) {
	ballots, err := s.listAllBallots(ctx)
	if err != nil {
		return storage.BallotRecord{}, false, err
	}
	for _, rec := range ballots {
		if rec.Confirmation == confirmation {
			return rec, true, nil
		}
	}
	return storage.BallotRecord{}, false, nil
}

// ListBallots returns the election's ballots ordered by voter name.
func (s *Store) ListBallots(ctx context.Context, electionName string) ([]storage.BallotRecord, error) {
	items, err := s.queryPartition(ctx, electionPK(electionName), ballotPrefix)
	if err != nil {
		return nil, err
	}
	records := make([]storage.BallotRecord, 0, len(items))
	for _, raw := range items {
		var item ballotItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal ballot: %w", err)
		}
		records = append(records, ballotFromItem(item))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].VoterName < records[j].VoterName })
	return records, nil
}

// BallotCount returns the total number of ballots across all elections.
func (s *Store) BallotCount(ctx context.Context) (int, error) {
	ballots, err := s.listAllBallots(ctx)
	if err != nil {
		return 0, err
	}
	return len(ballots), nil
}

func (s *Store) listAllBallots(ctx context.Context) ([]storage.BallotRecord, error) {
	items, err := s.scanBallots(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]storage.BallotRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ballotFromItem(item))
	}
	return records, nil
}

func (s *Store) scanBallots(ctx context.Context) ([]ballotItem, error) {
	var items []ballotItem
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.dataTable),
			FilterExpression: aws.String("begins_with(sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: ballotPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan ballots: %w", err)
		}
		for _, raw := range out.Items {
			var item ballotItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal ballot: %w", err)
			}
			items = append(items, item)
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
