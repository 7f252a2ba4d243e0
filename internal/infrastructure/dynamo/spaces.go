package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/testiflow-api/internal/domain"
)

// SpaceRepo stores spaces with their embedded reviews. Every write that replaces
// a space is conditioned on the version that was read.
type SpaceRepo struct {
	client    API
	tableName string
}

func NewSpaceRepo(client API, tableName string) *SpaceRepo {
	return &SpaceRepo{client: client, tableName: tableName}
}

// Create inserts a new space. A duplicate space_id yields domain.ErrConflict.
func (r *SpaceRepo) Create(ctx context.Context, s *domain.Space) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal space: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": attrSpaceID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("space already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *SpaceRepo) Get(ctx context.Context, spaceID string) (*domain.Space, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrSpaceID, spaceID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("space not found: %w", domain.ErrNotFound)
	}
	var s domain.Space
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByOwnerEmail returns every space whose owner_email equals email, following
// pagination until the index is exhausted.
func (r *SpaceRepo) ListByOwnerEmail(ctx context.Context, email string) ([]domain.Space, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexOwnerEmail),
		KeyConditionExpression:    aws.String("#o = :o"),
		ExpressionAttributeNames:  map[string]string{"#o": attrOwnerEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": str(email)},
	})
	spaces := []domain.Space{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Space
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		spaces = append(spaces, batch...)
	}
	return spaces, nil
}

// Replace writes s if the stored version still equals s.Version and bumps the
// version on success. A stale version yields domain.ErrConcurrentUpdate; a
// missing space yields domain.ErrNotFound.
func (r *SpaceRepo) Replace(ctx context.Context, s *domain.Space) error {
	expected := s.Version
	next := *s
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(&next)
	if err != nil {
		return fmt.Errorf("marshal space: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_exists(#pk) AND #v = :v"),
		ExpressionAttributeNames: map[string]string{"#pk": attrSpaceID, "#v": attrVersion},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": num(expected),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := conditionFailure(err); ok {
			if len(ccf.Item) == 0 {
				return fmt.Errorf("space not found: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("space %s changed since version %d: %w", s.SpaceID, expected, domain.ErrConcurrentUpdate)
		}
		return err
	}
	s.Version = next.Version
	s.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete removes a space and, with it, all of its reviews.
func (r *SpaceRepo) Delete(ctx context.Context, spaceID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(attrSpaceID, spaceID),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": attrSpaceID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("space not found: %w", domain.ErrNotFound)
	}
	return err
}

// ReassignOwnerEmail re-points owner_email on every space owned by ownerID that
// is still listed under oldEmail. Returns the number of spaces updated.
func (r *SpaceRepo) ReassignOwnerEmail(ctx context.Context, ownerID, oldEmail, newEmail string) (int, error) {
	spaces, err := r.ListByOwnerEmail(ctx, oldEmail)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, s := range spaces {
		if s.OwnerID != ownerID {
			continue
		}
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                aws.String(r.tableName),
			Key:                      strKey(attrSpaceID, s.SpaceID),
			UpdateExpression:         aws.String("SET #o = :new, #v = #v + :one"),
			ConditionExpression:      aws.String("attribute_exists(#pk) AND #oid = :oid"),
			ExpressionAttributeNames: map[string]string{"#o": attrOwnerEmail, "#v": attrVersion, "#pk": attrSpaceID, "#oid": attrOwnerID},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new": str(newEmail),
				":one": num(1),
				":oid": str(ownerID),
			},
		})
		if isConditionFailed(err) {
			// deleted concurrently
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("reassign space %s: %w", s.SpaceID, err)
		}
		updated++
	}
	return updated, nil
}

func conditionFailure(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}
