package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testiflow-api/internal/domain"
)

// --- mock ---

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}
func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func txConditionFailed() error {
	return &types.TransactionCanceledException{
		Message: aws.String("cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}
}

func mustMarshal(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

// --- accounts ---

func TestAccountRepo_Create_ReservesEmail(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")

	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 2 {
			return false
		}
		res := in.TransactItems[0].Put
		return res != nil && aws.ToString(res.TableName) == "account_emails" &&
			aws.ToString(res.ConditionExpression) == "attribute_not_exists(#e)"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := repo.Create(context.Background(), &domain.Account{AccountID: "a1", Email: "x@y.com"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAccountRepo_Create_DuplicateEmail(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, txConditionFailed())

	err := repo.Create(context.Background(), &domain.Account{AccountID: "a1", Email: "x@y.com"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestAccountRepo_GetByEmail_FollowsReservation(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")

	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToString(in.TableName) == "account_emails"
	})).Return(&dynamodb.GetItemOutput{
		Item: mustMarshal(t, domain.AccountEmail{Email: "x@y.com", AccountID: "a1"}),
	}, nil)
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToString(in.TableName) == "accounts"
	})).Return(&dynamodb.GetItemOutput{
		Item: mustMarshal(t, domain.Account{AccountID: "a1", Email: "x@y.com", Name: "X"}),
	}, nil)

	a, err := repo.GetByEmail(context.Background(), "x@y.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.AccountID)
	assert.Equal(t, "X", a.Name)
}

func TestAccountRepo_GetByEmail_Unknown(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.GetByEmail(context.Background(), "nobody@y.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAccountRepo_GetByVerificationCode_UsesSparseIndex(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	now := time.Unix(1_700_000_000, 0)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		n, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN)
		return aws.ToString(in.IndexName) == indexVerificationCode &&
			in.Limit == nil &&
			aws.ToString(in.FilterExpression) == "#exp > :now" &&
			in.ExpressionAttributeNames["#exp"] == attrVerificationExpiresAt &&
			ok && n.Value == "1700000000"
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		mustMarshal(t, domain.Account{AccountID: "a1", VerificationCode: "123456", VerificationExpiresAt: now.Add(time.Hour).Unix()}),
	}}, nil)

	a, err := repo.GetByVerificationCode(context.Background(), "123456", now)
	require.NoError(t, err)
	assert.Equal(t, "a1", a.AccountID)
}

func TestAccountRepo_GetByVerificationCode_SkipsExpiredHolder(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	now := time.Unix(1_700_000_000, 0)
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		mustMarshal(t, domain.Account{AccountID: "stale", VerificationCode: "123456", VerificationExpiresAt: now.Add(-48 * time.Hour).Unix()}),
		mustMarshal(t, domain.Account{AccountID: "fresh", VerificationCode: "123456", VerificationExpiresAt: now.Add(time.Hour).Unix()}),
	}}, nil)

	a, err := repo.GetByVerificationCode(context.Background(), "123456", now)
	require.NoError(t, err)
	assert.Equal(t, "fresh", a.AccountID)
}

func TestAccountRepo_GetByVerificationCode_OnlyExpiredHolders(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	now := time.Unix(1_700_000_000, 0)
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		mustMarshal(t, domain.Account{AccountID: "stale", VerificationCode: "123456", VerificationExpiresAt: now.Unix()}),
	}}, nil)

	_, err := repo.GetByVerificationCode(context.Background(), "123456", now)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAccountRepo_GetByResetToken_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == indexResetToken &&
			in.ExpressionAttributeNames["#exp"] == attrResetExpiresAt
	})).Return(&dynamodb.QueryOutput{}, nil)

	_, err := repo.GetByResetToken(context.Background(), "deadbeef", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAccountRepo_ConsumeResetToken_ClearsTokenConditionally(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	now := time.Unix(1_700_000_000, 0)

	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		if aws.ToString(in.ConditionExpression) != "#tok = :tok AND #exp > :now" {
			return false
		}
		if in.ExpressionAttributeNames["#tok"] != attrResetToken {
			return false
		}
		n, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN)
		return ok && n.Value == "1700000000"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := repo.ConsumeResetToken(context.Background(), "a1", "tok", now, map[string]interface{}{"password_hash": "h"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAccountRepo_ConsumeVerificationCode_LostRace(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	err := repo.ConsumeVerificationCode(context.Background(), "a1", "123456", time.Now(), map[string]interface{}{"verified": true})
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpired))
}

func TestAccountRepo_Update_MissingAccount(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	err := repo.Update(context.Background(), "ghost", map[string]interface{}{"name": "n"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAccountRepo_ChangeEmail_Taken(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 3
	})).Return(nil, txConditionFailed())

	err := repo.ChangeEmail(context.Background(), "a1", "old@y.com", "new@y.com", nil)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	api.AssertNumberOfCalls(t, "UpdateItem", 0)
}

func TestAccountRepo_ChangeEmail_FoldsUpdatesIntoTransaction(t *testing.T) {
	api := new(mockAPI)
	repo := NewAccountRepo(api, "accounts", "account_emails")
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		if len(in.TransactItems) != 3 {
			return false
		}
		u := in.TransactItems[2].Update
		if u == nil || aws.ToString(u.TableName) != "accounts" {
			return false
		}
		set := map[string]bool{}
		for _, name := range u.ExpressionAttributeNames {
			set[name] = true
		}
		return set[attrEmail] && set["password_hash"] && set["verified"] && set[attrUpdatedAt]
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	err := repo.ChangeEmail(context.Background(), "a1", "old@y.com", "new@y.com", map[string]interface{}{
		"password_hash": "h",
		"verified":      false,
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

// --- spaces ---

func TestSpaceRepo_Get_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSpaceRepo_Replace_BumpsVersion(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")

	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		expected, ok := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberN)
		if !ok || expected.Value != "3" {
			return false
		}
		written, ok := in.Item[attrVersion].(*types.AttributeValueMemberN)
		return ok && written.Value == "4"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	s := &domain.Space{SpaceID: "s1", Version: 3}
	require.NoError(t, repo.Replace(context.Background(), s))
	assert.Equal(t, int64(4), s.Version)
	api.AssertExpectations(t)
}

func TestSpaceRepo_Replace_StaleVersion(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	api.On("PutItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{
		Message: aws.String("failed"),
		Item:    mustMarshal(t, domain.Space{SpaceID: "s1", Version: 5}),
	})

	s := &domain.Space{SpaceID: "s1", Version: 3}
	err := repo.Replace(context.Background(), s)
	assert.True(t, errors.Is(err, domain.ErrConcurrentUpdate))
	assert.Equal(t, int64(3), s.Version)
}

func TestSpaceRepo_Replace_Deleted(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	api.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	err := repo.Replace(context.Background(), &domain.Space{SpaceID: "s1", Version: 1})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSpaceRepo_ListByOwnerEmail_Paginates(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	cursor := map[string]types.AttributeValue{attrSpaceID: str("s1")}

	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{mustMarshal(t, domain.Space{SpaceID: "s1"})},
		LastEvaluatedKey: cursor,
	}, nil).Once()
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{mustMarshal(t, domain.Space{SpaceID: "s2"})},
	}, nil).Once()

	spaces, err := repo.ListByOwnerEmail(context.Background(), "o@y.com")
	require.NoError(t, err)
	require.Len(t, spaces, 2)
	assert.Equal(t, "s2", spaces[1].SpaceID)
}

func TestSpaceRepo_ListByOwnerEmail_EmptyIsNotNil(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	spaces, err := repo.ListByOwnerEmail(context.Background(), "o@y.com")
	require.NoError(t, err)
	assert.NotNil(t, spaces)
	assert.Empty(t, spaces)
}

func TestSpaceRepo_ReassignOwnerEmail_SkipsForeignSpaces(t *testing.T) {
	api := new(mockAPI)
	repo := NewSpaceRepo(api, "spaces")
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			mustMarshal(t, domain.Space{SpaceID: "mine", OwnerID: "a1"}),
			mustMarshal(t, domain.Space{SpaceID: "theirs", OwnerID: "a2"}),
		},
	}, nil)
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		k, _ := in.Key[attrSpaceID].(*types.AttributeValueMemberS)
		return k != nil && k.Value == "mine"
	})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	n, err := repo.ReassignOwnerEmail(context.Background(), "a1", "old@y.com", "new@y.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	api.AssertExpectations(t)
}
