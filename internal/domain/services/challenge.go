package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

// challengeAlphabet excludes visually ambiguous characters (0/O, 1/I/l)
const challengeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

// ChallengeLength is the fixed code length
const ChallengeLength = 6

// VerifyResult is the outcome of one validation attempt
type VerifyResult struct {
	Valid bool

	// RetryAfter tells the front end how long to hold the failure
	// feedback before showing the regenerated challenge.
	RetryAfter time.Duration
}

// ChallengeEngine generates, validates, and regenerates human-verification
// challenges. A challenge is replaced wholesale on every complete attempt;
// a solved challenge is consumed exactly once.
type ChallengeEngine struct {
	store  ChallengeStore
	cfg    config.ChallengeConfig
	logger *logger.Logger
}

// NewChallengeEngine creates a challenge engine backed by the given store
func NewChallengeEngine(store ChallengeStore, cfg config.ChallengeConfig, log *logger.Logger) *ChallengeEngine {
	return &ChallengeEngine{
		store:  store,
		cfg:    cfg,
		logger: log.WithComponent("challenge"),
	}
}

// newCode produces a fresh code from the unambiguous alphabet
func newCode() string {
	b := make([]byte, ChallengeLength)
	for i := range b {
		b[i] = challengeAlphabet[rand.Intn(len(challengeAlphabet))]
	}
	return string(b)
}

// Generate creates and stores a brand-new challenge
func (e *ChallengeEngine) Generate(ctx context.Context) (*models.Challenge, error) {
	now := time.Now()
	ch := &models.Challenge{
		ID:        uuid.NewString(),
		Code:      newCode(),
		State:     models.ChallengeStatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.TTL),
	}
	if err := e.store.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return ch, nil
}

// Get returns the stored challenge for rendering
func (e *ChallengeEngine) Get(ctx context.Context, id string) (*models.Challenge, error) {
	return e.store.Get(ctx, id)
}

// Validate checks a user's input against the stored code. Matching is
// exact and case-sensitive.
//
// An incomplete input never validates and leaves the challenge untouched.
// A complete non-matching input replaces the challenge with a fresh code
// under the same id, so a retry cannot brute-force one code. A correct
// input marks the challenge solved; it then gates exactly one submission.
func (e *ChallengeEngine) Validate(ctx context.Context, id, input string) (*VerifyResult, error) {
	ch, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(input) < ChallengeLength {
		return &VerifyResult{Valid: false}, nil
	}

	if input != ch.Code {
		if _, err := e.replace(ctx, id); err != nil {
			return nil, err
		}
		e.logger.Debug().Str("challenge_id", id).Msg("challenge mismatch, regenerated")
		return &VerifyResult{Valid: false, RetryAfter: e.cfg.RetryDelay}, nil
	}

	solved := &models.Challenge{
		ID:        ch.ID,
		Code:      ch.Code,
		State:     models.ChallengeStateCorrect,
		CreatedAt: ch.CreatedAt,
		ExpiresAt: ch.ExpiresAt,
	}
	if err := e.store.Save(ctx, solved); err != nil {
		return nil, fmt.Errorf("failed to store solved challenge: %w", err)
	}
	return &VerifyResult{Valid: true}, nil
}

// Reset force-regenerates a challenge without implying the user got it
// wrong, e.g. after an unrelated submission failure.
func (e *ChallengeEngine) Reset(ctx context.Context, id string) (*models.Challenge, error) {
	return e.replace(ctx, id)
}

// Consume spends a solved challenge. It fails with ErrChallengeFailed when
// the challenge was never solved, and deletes it either way so it cannot
// gate a second submission.
func (e *ChallengeEngine) Consume(ctx context.Context, id string) error {
	ch, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ch.Solved() {
		return models.ErrChallengeFailed
	}
	return nil
}

// replace installs a brand-new pending challenge under an existing id
func (e *ChallengeEngine) replace(ctx context.Context, id string) (*models.Challenge, error) {
	now := time.Now()
	ch := &models.Challenge{
		ID:        id,
		Code:      newCode(),
		State:     models.ChallengeStatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.TTL),
	}
	if err := e.store.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to store replacement challenge: %w", err)
	}
	return ch, nil
}
