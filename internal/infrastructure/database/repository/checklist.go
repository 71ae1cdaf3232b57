package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"civigate/internal/domain/models"
)

// ChecklistRepository serves the document-preparation item catalog.
// Item definitions are administrative data and live in Postgres; the
// per-citizen checked/expanded state lives in the session state store.
type ChecklistRepository struct {
	pool *pgxpool.Pool
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(pool *pgxpool.Pool) *ChecklistRepository {
	return &ChecklistRepository{pool: pool}
}

// GetCase loads the item catalog for one case of a procedure
func (r *ChecklistRepository) GetCase(ctx context.Context, procedureID, caseID string) (*models.ChecklistCase, error) {
	query := `
		SELECT id, procedure_id, case_id, label, optional, COALESCE(sub_item_label, ''), position
		FROM checklist_items
		WHERE procedure_id = $1 AND case_id = $2
		ORDER BY position ASC`

	rows, err := r.pool.Query(ctx, query, procedureID, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist case: %w", err)
	}
	defer rows.Close()

	cc := &models.ChecklistCase{
		ProcedureID: procedureID,
		CaseID:      caseID,
	}
	for rows.Next() {
		var item models.ChecklistItem
		if err := rows.Scan(
			&item.ID, &item.ProcedureID, &item.CaseID,
			&item.Label, &item.Optional, &item.SubItemLabel, &item.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		if item.Optional {
			cc.OptionalItems = append(cc.OptionalItems, item)
		} else {
			cc.RequiredItems = append(cc.RequiredItems, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checklist items: %w", err)
	}

	return cc, nil
}
