package services

import (
	"context"
	"fmt"

	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

// ChecklistView is the assembled readiness view for one case
type ChecklistView struct {
	ProcedureID   string               `json:"procedure_id"`
	CaseID        string               `json:"case_id"`
	RequiredItems []ChecklistItemView  `json:"required_items"`
	OptionalItems []OptionalItemView   `json:"optional_items"`
	Progress      models.CaseProgress  `json:"progress"`
	FullyReady    bool                 `json:"fully_ready"`
}

// ChecklistItemView is a required item with its checked state
type ChecklistItemView struct {
	models.ChecklistItem
	Checked bool `json:"checked"`
}

// OptionalItemView is an optional item with its expansion/check state
type OptionalItemView struct {
	models.ChecklistItem
	State models.OptionalItemState `json:"state"`
}

// ChecklistService computes document-preparation readiness for a
// procedure case. Item definitions come from the catalog; checked and
// expanded state is persisted per (procedure, case) and recomputed on
// every toggle, never cached.
type ChecklistService struct {
	catalog ChecklistCatalog
	states  CaseStateStore
	logger  *logger.Logger
}

// NewChecklistService creates a checklist readiness service
func NewChecklistService(catalog ChecklistCatalog, states CaseStateStore, log *logger.Logger) *ChecklistService {
	return &ChecklistService{
		catalog: catalog,
		states:  states,
		logger:  log.WithComponent("checklist"),
	}
}

// View loads the catalog and state for a case and computes progress
func (s *ChecklistService) View(ctx context.Context, procedureID, caseID string) (*ChecklistView, error) {
	cc, state, err := s.load(ctx, procedureID, caseID)
	if err != nil {
		return nil, err
	}
	return buildView(cc, state), nil
}

// ToggleItem flips the checked state of a counted requirement: either a
// non-optional item, or the sub-item of a currently expanded optional
// item. Toggling a collapsed optional item is rejected because its
// sub-item is not a requirement while hidden.
func (s *ChecklistService) ToggleItem(ctx context.Context, procedureID, caseID, itemID string) (*ChecklistView, error) {
	cc, state, err := s.load(ctx, procedureID, caseID)
	if err != nil {
		return nil, err
	}

	item := findItem(cc, itemID)
	if item == nil {
		return nil, fmt.Errorf("unknown checklist item %s", itemID)
	}

	if item.Optional {
		switch state.OptionalState(itemID) {
		case models.OptionalCollapsed:
			return nil, fmt.Errorf("item %s is collapsed and cannot be checked", itemID)
		case models.OptionalExpandedUnchecked:
			state.OptionalStates[itemID] = models.OptionalExpandedChecked
		case models.OptionalExpandedChecked:
			state.OptionalStates[itemID] = models.OptionalExpandedUnchecked
		}
	} else {
		if state.CheckedItemIDs[itemID] {
			delete(state.CheckedItemIDs, itemID)
		} else {
			state.CheckedItemIDs[itemID] = true
		}
	}

	if err := s.states.Save(ctx, procedureID, caseID, state); err != nil {
		return nil, fmt.Errorf("failed to persist case state: %w", err)
	}
	return buildView(cc, state), nil
}

// ToggleExpansion expands or collapses an optional item. Collapsing
// atomically drops the sub-item's checked state: the single optional-item
// state value makes "checked but collapsed" unrepresentable.
func (s *ChecklistService) ToggleExpansion(ctx context.Context, procedureID, caseID, itemID string, expanded bool) (*ChecklistView, error) {
	cc, state, err := s.load(ctx, procedureID, caseID)
	if err != nil {
		return nil, err
	}

	item := findItem(cc, itemID)
	if item == nil || !item.Optional {
		return nil, fmt.Errorf("unknown optional checklist item %s", itemID)
	}

	if expanded {
		if !state.OptionalState(itemID).Expanded() {
			state.OptionalStates[itemID] = models.OptionalExpandedUnchecked
		}
	} else {
		state.OptionalStates[itemID] = models.OptionalCollapsed
	}

	if err := s.states.Save(ctx, procedureID, caseID, state); err != nil {
		return nil, fmt.Errorf("failed to persist case state: %w", err)
	}
	return buildView(cc, state), nil
}

func (s *ChecklistService) load(ctx context.Context, procedureID, caseID string) (*models.ChecklistCase, *models.CaseState, error) {
	if s.catalog == nil {
		return nil, nil, fmt.Errorf("checklist catalog unavailable")
	}
	cc, err := s.catalog.GetCase(ctx, procedureID, caseID)
	if err != nil {
		return nil, nil, err
	}
	state, err := s.states.Load(ctx, procedureID, caseID)
	if err != nil {
		return nil, nil, err
	}
	return cc, state, nil
}

// computeProgress derives readiness from scratch. The denominator counts
// non-optional items plus optional items currently expanded; it changes
// as the user expands and collapses.
func computeProgress(cc *models.ChecklistCase, state *models.CaseState) models.CaseProgress {
	total := len(cc.RequiredItems)
	completed := 0

	for _, item := range cc.RequiredItems {
		if state.CheckedItemIDs[item.ID] {
			completed++
		}
	}
	for _, item := range cc.OptionalItems {
		switch state.OptionalState(item.ID) {
		case models.OptionalExpandedUnchecked:
			total++
		case models.OptionalExpandedChecked:
			total++
			completed++
		}
	}

	progress := models.CaseProgress{Completed: completed, Total: total}
	if total > 0 {
		progress.Percent = float64(completed) / float64(total) * 100
	}
	return progress
}

func buildView(cc *models.ChecklistCase, state *models.CaseState) *ChecklistView {
	view := &ChecklistView{
		ProcedureID:   cc.ProcedureID,
		CaseID:        cc.CaseID,
		RequiredItems: make([]ChecklistItemView, 0, len(cc.RequiredItems)),
		OptionalItems: make([]OptionalItemView, 0, len(cc.OptionalItems)),
	}
	for _, item := range cc.RequiredItems {
		view.RequiredItems = append(view.RequiredItems, ChecklistItemView{
			ChecklistItem: item,
			Checked:       state.CheckedItemIDs[item.ID],
		})
	}
	for _, item := range cc.OptionalItems {
		view.OptionalItems = append(view.OptionalItems, OptionalItemView{
			ChecklistItem: item,
			State:         state.OptionalState(item.ID),
		})
	}
	view.Progress = computeProgress(cc, state)
	view.FullyReady = view.Progress.FullyReady()
	return view
}

func findItem(cc *models.ChecklistCase, itemID string) *models.ChecklistItem {
	for i := range cc.RequiredItems {
		if cc.RequiredItems[i].ID == itemID {
			return &cc.RequiredItems[i]
		}
	}
	for i := range cc.OptionalItems {
		if cc.OptionalItems[i].ID == itemID {
			return &cc.OptionalItems[i]
		}
	}
	return nil
}
