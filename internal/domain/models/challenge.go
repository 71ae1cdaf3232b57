package models

import "time"

// ChallengeState represents the lifecycle state of a verification challenge
type ChallengeState string

const (
	ChallengeStatePending   ChallengeState = "pending"
	ChallengeStateCorrect   ChallengeState = "correct"
	ChallengeStateIncorrect ChallengeState = "incorrect"
)

// Challenge is one human-verification code. A challenge is never mutated
// in place: every validation attempt, successful or not, replaces it
// wholesale with a freshly generated one.
type Challenge struct {
	ID        string         `json:"id"`
	Code      string         `json:"-"`
	State     ChallengeState `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Solved reports whether this challenge has been answered correctly
func (c *Challenge) Solved() bool {
	return c.State == ChallengeStateCorrect
}
