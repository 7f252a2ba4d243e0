package dynamo

// DynamoDB attribute names used in keys, indexes and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	attrAccountID             = "account_id"
	attrEmail                 = "email"
	attrVerificationCode      = "verification_code"
	attrVerificationExpiresAt = "verification_expires_at"
	attrResetToken            = "reset_token"
	attrResetExpiresAt        = "reset_expires_at"
	attrUpdatedAt             = "updated_at"

	attrSpaceID    = "space_id"
	attrOwnerID    = "owner_id"
	attrOwnerEmail = "owner_email"
	attrVersion    = "version"

	indexVerificationCode = "verification_code-index"
	indexResetToken       = "reset_token-index"
	indexOwnerEmail       = "owner_email-index"
)
