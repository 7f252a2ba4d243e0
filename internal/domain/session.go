package domain

import "time"

// Session is the result of a successful authentication: the signed bearer token
// and the account it is bound to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
}
