package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/testiflow-api/internal/domain"
)

// AccountRepo provides typed DynamoDB operations for the accounts table and the
// account_emails table that reserves each email address for one account.
type AccountRepo struct {
	client      API
	tableName   string
	emailsTable string
}

func NewAccountRepo(client API, tableName, emailsTable string) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

// Create writes the account and its email reservation in one transaction.
// Returns domain.ErrConflict when the email is already reserved.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	reservation, err := attributevalue.MarshalMap(domain.AccountEmail{Email: a.Email, AccountID: a.AccountID})
	if err != nil {
		return fmt.Errorf("marshal account email: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     reservation,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": attrEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#id)"),
				ExpressionAttributeNames: map[string]string{"#id": attrAccountID},
			}},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	return err
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrAccountID, accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByEmail resolves the reservation item, then reads the account. Both reads
// are strongly consistent. email must already be normalised.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(attrEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	var res domain.AccountEmail
	if err := attributevalue.UnmarshalMap(out.Item, &res); err != nil {
		return nil, err
	}
	return r.Get(ctx, res.AccountID)
}

// GetByVerificationCode returns the account holding code with an expiry after now.
// Stale entries for the same code are skipped.
func (r *AccountRepo) GetByVerificationCode(ctx context.Context, code string, now time.Time) (*domain.Account, error) {
	return r.queryLive(ctx, indexVerificationCode, attrVerificationCode, attrVerificationExpiresAt, code, now,
		func(a *domain.Account) int64 { return a.VerificationExpiresAt })
}

// GetByResetToken returns the account holding token with an expiry after now.
func (r *AccountRepo) GetByResetToken(ctx context.Context, token string, now time.Time) (*domain.Account, error) {
	return r.queryLive(ctx, indexResetToken, attrResetToken, attrResetExpiresAt, token, now,
		func(a *domain.Account) int64 { return a.ResetExpiresAt })
}

// Update applies a partial update; nil values remove the attribute.
func (r *AccountRepo) Update(ctx context.Context, accountID string, updates map[string]interface{}) error {
	updates[attrUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.condition(map[string]string{"#pk": attrAccountID}, nil)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: valuesOrNil(ue.Values),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return err
}

// ConsumeVerificationCode applies updates and clears the code only if the stored
// code still equals code and has not expired at now. A lost race or an expired
// code yields domain.ErrInvalidOrExpired.
func (r *AccountRepo) ConsumeVerificationCode(ctx context.Context, accountID, code string, now time.Time, updates map[string]interface{}) error {
	return r.consume(ctx, accountID, attrVerificationCode, attrVerificationExpiresAt, code, now, updates)
}

// ConsumeResetToken is the reset-token counterpart of ConsumeVerificationCode.
func (r *AccountRepo) ConsumeResetToken(ctx context.Context, accountID, token string, now time.Time, updates map[string]interface{}) error {
	return r.consume(ctx, accountID, attrResetToken, attrResetExpiresAt, token, now, updates)
}

func (r *AccountRepo) consume(ctx context.Context, accountID, tokenAttr, expiryAttr, value string, now time.Time, updates map[string]interface{}) error {
	merged := make(map[string]interface{}, len(updates)+3)
	for k, v := range updates {
		merged[k] = v
	}
	merged[tokenAttr] = nil
	merged[expiryAttr] = nil
	merged[attrUpdatedAt] = now.UTC()

	ue, err := buildUpdateExpr(merged)
	if err != nil {
		return err
	}
	ue.condition(
		map[string]string{"#tok": tokenAttr, "#exp": expiryAttr},
		map[string]types.AttributeValue{":tok": str(value), ":now": num(now.Unix())},
	)
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrAccountID, accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#tok = :tok AND #exp > :now"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("token already used or expired: %w", domain.ErrInvalidOrExpired)
	}
	return err
}

// ChangeEmail moves the email reservation and applies updates to the account in
// one transaction, so a taken email leaves the account untouched.
// Returns domain.ErrConflict when newEmail belongs to another account.
func (r *AccountRepo) ChangeEmail(ctx context.Context, accountID, oldEmail, newEmail string, updates map[string]interface{}) error {
	reservation, err := attributevalue.MarshalMap(domain.AccountEmail{Email: newEmail, AccountID: accountID})
	if err != nil {
		return fmt.Errorf("marshal account email: %w", err)
	}
	merged := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		merged[k] = v
	}
	merged[attrEmail] = newEmail
	merged[attrUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(merged)
	if err != nil {
		return err
	}
	ue.condition(map[string]string{"#pk": attrAccountID}, nil)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.emailsTable),
				Key:                       strKey(attrEmail, oldEmail),
				ConditionExpression:       aws.String("#id = :id"),
				ExpressionAttributeNames:  map[string]string{"#id": attrAccountID},
				ExpressionAttributeValues: map[string]types.AttributeValue{":id": str(accountID)},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     reservation,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": attrEmail},
			}},
			{Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(attrAccountID, accountID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: valuesOrNil(ue.Values),
			}},
		},
	})
	if isTxConditionFailed(err) {
		return fmt.Errorf("email is already in use: %w", domain.ErrConflict)
	}
	return err
}

// Delete removes the account and its email reservation.
func (r *AccountRepo) Delete(ctx context.Context, accountID, email string) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey(attrAccountID, accountID),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailsTable),
				Key:       strKey(attrEmail, email),
			}},
		},
	})
	return err
}

// queryLive pages through every index entry for value. The filter drops expired
// entries server-side; expiry re-checks the decoded item.
func (r *AccountRepo) queryLive(ctx context.Context, index, attr, expiryAttr, value string, now time.Time, expiry func(*domain.Account) int64) (*domain.Account, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("#a = :v"),
		FilterExpression:         aws.String("#exp > :now"),
		ExpressionAttributeNames: map[string]string{"#a": attr, "#exp": expiryAttr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":   str(value),
			":now": num(now.Unix()),
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			var a domain.Account
			if err := attributevalue.UnmarshalMap(item, &a); err != nil {
				return nil, err
			}
			if expiry(&a) > now.Unix() {
				return &a, nil
			}
		}
	}
	return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
}
