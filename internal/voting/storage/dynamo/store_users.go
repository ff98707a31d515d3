package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/louisbranch/ballotbox/internal/voting/domain/user"
	"github.com/louisbranch/ballotbox/internal/voting/storage"
)

type userItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Name      string `dynamodbav:"name"`
	Email     string `dynamodbav:"email"`
	Salt      string `dynamodbav:"salt"`
	Hash      string `dynamodbav:"hash"`
	Role      string `dynamodbav:"role"`
	CreatedAt int64  `dynamodbav:"created_at"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

func userToItem(rec storage.UserRecord) userItem {
	return userItem{
		PK:        userPK(rec.Name),
		SK:        skMetadata,
		Name:      rec.Name,
		Email:     rec.Email,
		Salt:      rec.Salt,
		Hash:      rec.Hash,
		Role:      string(rec.Role),
		CreatedAt: rec.CreatedAt.UTC().UnixMilli(),
		UpdatedAt: rec.UpdatedAt.UTC().UnixMilli(),
	}
}

func userFromItem(item userItem) storage.UserRecord {
	return storage.UserRecord{
		Name:      item.Name,
		Email:     item.Email,
		Salt:      item.Salt,
		Hash:      item.Hash,
		Role:      user.Role(item.Role),
		CreatedAt: time.UnixMilli(item.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(item.UpdatedAt).UTC(),
	}
}

// PutUser upserts a user record by name.
func (s *Store) PutUser(ctx context.Context, rec storage.UserRecord) error {
	item, err := attributevalue.MarshalMap(userToItem(rec))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.dataTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// RenameUser rewrites the user item under its new key and cascades the new
// name across owned elections, eligibility entries, and ballots. The write
// set is rebuilt from current state, so replaying a partially applied rename
// completes the remainder instead of failing.
func (s *Store) RenameUser(ctx context.Context, oldName, newName string) error {
	rec, err := s.FindUserByName(ctx, oldName)
	if errors.Is(err, storage.ErrNotFound) {
		// A replay may find the user item already under the new key.
		rec, err = s.FindUserByName(ctx, newName)
	}
	if err != nil {
		return err
	}
	rec.Name = newName

	newUser, err := attributevalue.MarshalMap(userToItem(rec))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	writes := []types.TransactWriteItem{
		s.putWrite(newUser),
		s.deleteWrite(userPK(oldName), skMetadata),
	}

	elections, err := s.ListElections(ctx)
	if err != nil {
		return err
	}
	for _, e := range elections {
		if e.OwnerName == oldName {
			e.OwnerName = newName
			item, err := attributevalue.MarshalMap(electionToItem(e))
			if err != nil {
				return fmt.Errorf("marshal election: %w", err)
			}
			writes = append(writes, s.putWrite(item))
		}

		voters, err := s.ListVotersForElection(ctx, e.Name)
		if err != nil {
			return err
		}
		for _, v := range voters {
			if v != oldName {
				continue
			}
			member, err := attributevalue.MarshalMap(memberItem{
				PK: electionPK(e.Name),
				SK: eligibleSK(newName),
			})
			if err != nil {
				return fmt.Errorf("marshal member: %w", err)
			}
			writes = append(writes,
				s.putWrite(member),
				s.deleteWrite(electionPK(e.Name), eligibleSK(oldName)))
		}

		b, found, err := s.SearchBallot(ctx, e.Name, oldName)
		if err != nil {
			return err
		}
		if found {
			b.VoterName = newName
			item, err := attributevalue.MarshalMap(ballotToItem(b))
			if err != nil {
				return fmt.Errorf("marshal ballot: %w", err)
			}
			writes = append(writes,
				s.putWrite(item),
				s.deleteWrite(electionPK(e.Name), ballotSK(oldName)))
		}
	}
	return s.transactWrite(ctx, writes)
}

// DeleteUser removes a user and cascades: owned elections with their
// candidates, eligibility, and ballots, plus the user's own ballots and
// eligibility entries. Deletes are absolute, so replaying a partially
// applied removal deletes whatever remains.
func (s *Store) DeleteUser(ctx context.Context, name string) error {
	writes := []types.TransactWriteItem{s.deleteWrite(userPK(name), skMetadata)}

	elections, err := s.ListElections(ctx)
	if err != nil {
		return err
	}
	for _, e := range elections {
		if e.OwnerName == name {
			keys, err := s.partitionKeys(ctx, electionPK(e.Name))
			if err != nil {
				return err
			}
			for _, key := range keys {
				writes = append(writes, s.deleteWrite(key.PK, key.SK))
			}
			continue
		}
		writes = append(writes,
			s.deleteWrite(electionPK(e.Name), eligibleSK(name)),
			s.deleteWrite(electionPK(e.Name), ballotSK(name)))
	}
	return s.transactWrite(ctx, writes)
}

// FindUserByName returns one user or ErrNotFound.
func (s *Store) FindUserByName(ctx context.Context, name string) (storage.UserRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(userPK(name), skMetadata),
	})
	if err != nil {
		return storage.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return storage.UserRecord{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return userFromItem(item), nil
}

// SearchUserByEmail scans the user partition keys for an email holder.
// Emails have no index; the table stays small enough for a filtered scan.
func (s *Store) SearchUserByEmail(ctx context.Context, email string) (storage.UserRecord, bool, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return storage.UserRecord{}, false, err
	}
	for _, rec := range users {
		if rec.Email == email {
			return rec, true, nil
		}
	}
	return storage.UserRecord{}, false, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]storage.UserRecord, error) {
	items, err := s.scanByPrefix(ctx, userPrefix, skMetadata)
	if err != nil {
		return nil, err
	}
	records := make([]storage.UserRecord, 0, len(items))
	for _, raw := range items {
		var item userItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
		records = append(records, userFromItem(item))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	items, err := s.scanByPrefix(ctx, userPrefix, skMetadata)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// scanByPrefix scans the data table for items whose pk starts with the
// prefix and whose sk matches exactly, following pagination.
func (s *Store) scanByPrefix(ctx context.Context, pkPrefix, sk string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.dataTable),
			FilterExpression: aws.String("begins_with(pk, :prefix) AND sk = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: pkPrefix},
				":sk":     &types.AttributeValueMemberS{Value: sk},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s items: %w", strings.TrimSuffix(pkPrefix, "#"), err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *Store) deleteItem(ctx context.Context, pk, sk string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.dataTable),
		Key:       itemKey(pk, sk),
	}); err != nil {
		return fmt.Errorf("delete item %s/%s: %w", pk, sk, err)
	}
	return nil
}
