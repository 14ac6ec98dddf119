package domain

import "time"

// Token describes an issued operator access token.
type Token struct {
	Value      string
	OperatorID int64
	Role       OperatorRole
	ExpiresAt  time.Time
}
