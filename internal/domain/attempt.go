package domain

import "time"

// AttemptStatus is the lifecycle state of a verification attempt.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFail    AttemptStatus = "fail"
	AttemptExpired AttemptStatus = "expired"
)

// Terminal reports whether the status is final. Terminal transitions are
// one-way: no transition ever leaves a terminal state.
func (s AttemptStatus) Terminal() bool {
	return s != AttemptPending
}

// VerificationAttempt is a single verification session, keyed by the opaque
// OAuth state token. Re-issuing an attempt for the same state overwrites the
// prior record and resets it to pending.
// PK: state. ExpiresAt is a Unix timestamp used as DynamoDB TTL for hygiene
// only; the logical 5-minute window is enforced by the state machine.
type VerificationAttempt struct {
	State         string        `json:"state" dynamodbav:"state"`
	Origin        string        `json:"origin" dynamodbav:"origin"`
	Status        AttemptStatus `json:"status" dynamodbav:"status"`
	ResolvedEmail string        `json:"resolved_email,omitempty" dynamodbav:"resolved_email"`
	CreatedAt     time.Time     `json:"created_at" dynamodbav:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty" dynamodbav:"resolved_at"`
	ExpiresAt     int64         `json:"-" dynamodbav:"expires_at"`
}
