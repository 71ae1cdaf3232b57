package services

import (
	"context"

	"civigate/internal/domain/models"
)

// ChallengeStore persists verification challenges for their short lifetime.
// Implementations must report a missing or expired challenge as
// models.ErrChallengeExpired.
type ChallengeStore interface {
	Save(ctx context.Context, ch *models.Challenge) error
	Get(ctx context.Context, id string) (*models.Challenge, error)
	Delete(ctx context.Context, id string) error
}

// CaseStateStore persists per-(procedure, case) checklist state. Absent
// state is not an error; implementations return an empty state instead.
// Writes are last-writer-wins.
type CaseStateStore interface {
	Load(ctx context.Context, procedureID, caseID string) (*models.CaseState, error)
	Save(ctx context.Context, procedureID, caseID string, state *models.CaseState) error
}

// ChecklistCatalog supplies item definitions for a procedure case
type ChecklistCatalog interface {
	GetCase(ctx context.Context, procedureID, caseID string) (*models.ChecklistCase, error)
}
