package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "github.com/louisbranch/ballotbox/internal/platform/errors"
	"github.com/louisbranch/ballotbox/internal/voting/domain/event"
)

// appendRetries bounds the optimistic id-claim loop under contention.
const appendRetries = 8

type eventItem struct {
	PK         string `dynamodbav:"pk"`
	ID         int64  `dynamodbav:"id"`
	Authority  string `dynamodbav:"authority"`
	OccurredAt int64  `dynamodbav:"occurred_at"`
	EventType  string `dynamodbav:"event_type"`
	Payload    string `dynamodbav:"payload"`
}

// AppendEvent claims the next id with a conditional put: read the current
// maximum, write max+1 guarded by attribute_not_exists, retry on races.
// Committed ids are gap-free because an id is only consumed by a successful
// write.
func (s *Store) AppendEvent(ctx context.Context, env event.Envelope) (event.Envelope, error) {
	if err := event.ValidateForAppend(env); err != nil {
		return event.Envelope{}, err
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	env.OccurredAt = env.OccurredAt.UTC().Truncate(time.Millisecond)

	for attempt := 0; attempt < appendRetries; attempt++ {
		latest, err := s.latestEventID(ctx)
		if err != nil {
			return event.Envelope{}, err
		}
		next := latest + 1

		item, err := attributevalue.MarshalMap(eventItem{
			PK:         pkLog,
			ID:         int64(next),
			Authority:  env.Authority,
			OccurredAt: env.OccurredAt.UnixMilli(),
			EventType:  string(env.Type),
			Payload:    string(env.Payload),
		})
		if err != nil {
			return event.Envelope{}, fmt.Errorf("marshal event: %w", err)
		}

		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.eventsTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			var conflict *types.ConditionalCheckFailedException
			if errors.As(err, &conflict) {
				// Another writer claimed this id; retry with a fresh read.
				continue
			}
			return event.Envelope{}, fmt.Errorf("append event: %w", err)
		}
		env.ID = next
		return env, nil
	}
	return event.Envelope{}, apperrors.New(apperrors.CodeStorageUnavailable,
		"event append lost the id race repeatedly")
}

func (s *Store) latestEventID(ctx context.Context) (uint64, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.eventsTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkLog},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, fmt.Errorf("query latest event: %w", err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}
	var item eventItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return 0, fmt.Errorf("unmarshal latest event: %w", err)
	}
	return uint64(item.ID), nil
}

// EventsAfter returns all envelopes with id > cursor in ascending order,
// following pagination until the partition is drained.
func (s *Store) EventsAfter(ctx context.Context, cursor uint64) ([]event.Envelope, error) {
	var envelopes []event.Envelope
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.eventsTable),
			KeyConditionExpression: aws.String("pk = :pk AND id > :cursor"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pkLog},
				":cursor": &types.AttributeValueMemberN{Value: strconv.FormatUint(cursor, 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query events: %w", err)
		}
		for _, raw := range out.Items {
			var item eventItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal event: %w", err)
			}
			envelopes = append(envelopes, event.Envelope{
				ID:         uint64(item.ID),
				Authority:  item.Authority,
				OccurredAt: time.UnixMilli(item.OccurredAt).UTC(),
				Type:       event.Type(item.EventType),
				Payload:    []byte(item.Payload),
			})
		}
		if out.LastEvaluatedKey == nil {
			return envelopes, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// CountEvents returns the total number of persisted events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	latest, err := s.latestEventID(ctx)
	if err != nil {
		return 0, err
	}
	// Ids are gap-free, so the latest id is the count.
	return int(latest), nil
}

type cursorItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	LastSynced int64  `dynamodbav:"last_synced"`
}

// SetLastSynced advances the applied-event cursor. Backward moves are an
// invariant violation and rejected.
func (s *Store) SetLastSynced(ctx context.Context, id uint64) error {
	current, err := s.LastSynced(ctx)
	if err != nil {
		return err
	}
	if id < current {
		return apperrors.New(apperrors.CodeInternal, "sync cursor moved backward")
	}
	item, err := attributevalue.MarshalMap(cursorItem{
		PK:         pkSync,
		SK:         skCursor,
		LastSynced: int64(id),
	})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.dataTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("set last synced: %w", err)
	}
	return nil
}

// LastSynced returns the highest applied event id, 0 if none.
func (s *Store) LastSynced(ctx context.Context) (uint64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(pkSync, skCursor),
	})
	if err != nil {
		return 0, fmt.Errorf("get last synced: %w", err)
	}
	if out.Item == nil {
		return 0, nil
	}
	var item cursorItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return 0, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return uint64(item.LastSynced), nil
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}
