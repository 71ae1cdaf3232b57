package services

import (
	"context"
	"sync"
	"time"

	"civigate/internal/domain/models"
)

// MemoryChallengeStore is an in-process challenge store, used in tests and
// when running without Redis.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
}

// NewMemoryChallengeStore creates an empty in-memory challenge store
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{challenges: make(map[string]*models.Challenge)}
}

func (s *MemoryChallengeStore) Save(_ context.Context, ch *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ch
	s.challenges[ch.ID] = &copied
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, id string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok || time.Now().After(ch.ExpiresAt) {
		return nil, models.ErrChallengeExpired
	}
	copied := *ch
	return &copied, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, id)
	return nil
}

// MemoryCaseStateStore is an in-process case state store
type MemoryCaseStateStore struct {
	mu     sync.Mutex
	states map[string]*models.CaseState
}

// NewMemoryCaseStateStore creates an empty in-memory case state store
func NewMemoryCaseStateStore() *MemoryCaseStateStore {
	return &MemoryCaseStateStore{states: make(map[string]*models.CaseState)}
}

func (s *MemoryCaseStateStore) Load(_ context.Context, procedureID, caseID string) (*models.CaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[models.CaseStateKey(procedureID, caseID)]
	if !ok {
		return models.NewCaseState(), nil
	}
	return cloneState(state), nil
}

func (s *MemoryCaseStateStore) Save(_ context.Context, procedureID, caseID string, state *models.CaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[models.CaseStateKey(procedureID, caseID)] = cloneState(state)
	return nil
}

func cloneState(state *models.CaseState) *models.CaseState {
	cloned := models.NewCaseState()
	for id, checked := range state.CheckedItemIDs {
		cloned.CheckedItemIDs[id] = checked
	}
	for id, st := range state.OptionalStates {
		cloned.OptionalStates[id] = st
	}
	return cloned
}
