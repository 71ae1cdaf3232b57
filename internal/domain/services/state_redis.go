package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"civigate/internal/domain/models"
	"civigate/internal/infrastructure/cache"
)

// RedisChallengeStore keeps challenges in Redis for their TTL
type RedisChallengeStore struct {
	cache *cache.RedisCache
}

// NewRedisChallengeStore creates a Redis-backed challenge store
func NewRedisChallengeStore(c *cache.RedisCache) *RedisChallengeStore {
	return &RedisChallengeStore{cache: c}
}

func (s *RedisChallengeStore) Save(ctx context.Context, ch *models.Challenge) error {
	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		return models.ErrChallengeExpired
	}
	return s.cache.SetJSON(ctx, cache.KeyChallengePrefix+ch.ID, storedChallenge{
		ID:        ch.ID,
		Code:      ch.Code,
		State:     ch.State,
		CreatedAt: ch.CreatedAt,
		ExpiresAt: ch.ExpiresAt,
	}, ttl)
}

func (s *RedisChallengeStore) Get(ctx context.Context, id string) (*models.Challenge, error) {
	var stored storedChallenge
	err := s.cache.GetJSON(ctx, cache.KeyChallengePrefix+id, &stored)
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrChallengeExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	return &models.Challenge{
		ID:        stored.ID,
		Code:      stored.Code,
		State:     stored.State,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, cache.KeyChallengePrefix+id)
}

// storedChallenge is the Redis wire form; unlike the API model it carries
// the code, which must never leave the store in a response body.
type storedChallenge struct {
	ID        string                `json:"id"`
	Code      string                `json:"code"`
	State     models.ChallengeState `json:"state"`
	CreatedAt time.Time             `json:"created_at"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// RedisCaseStateStore keeps per-case checklist state in Redis, keyed by
// the (procedure, case) composite. Last writer wins.
type RedisCaseStateStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewRedisCaseStateStore creates a Redis-backed case state store
func NewRedisCaseStateStore(c *cache.RedisCache, ttl time.Duration) *RedisCaseStateStore {
	return &RedisCaseStateStore{cache: c, ttl: ttl}
}

func (s *RedisCaseStateStore) Load(ctx context.Context, procedureID, caseID string) (*models.CaseState, error) {
	key := cache.KeyChecklistPrefix + models.CaseStateKey(procedureID, caseID)

	state := models.NewCaseState()
	err := s.cache.GetJSON(ctx, key, state)
	if errors.Is(err, redis.Nil) {
		// Absent state means nothing checked, nothing expanded.
		return models.NewCaseState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case state: %w", err)
	}
	if state.CheckedItemIDs == nil {
		state.CheckedItemIDs = make(map[string]bool)
	}
	if state.OptionalStates == nil {
		state.OptionalStates = make(map[string]models.OptionalItemState)
	}
	return state, nil
}

func (s *RedisCaseStateStore) Save(ctx context.Context, procedureID, caseID string, state *models.CaseState) error {
	key := cache.KeyChecklistPrefix + models.CaseStateKey(procedureID, caseID)
	return s.cache.SetJSON(ctx, key, state, s.ttl)
}
