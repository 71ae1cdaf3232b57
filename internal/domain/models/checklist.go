package models

import "fmt"

// OptionalItemState is the single algebraic state of an optional checklist
// item. Modeling expansion and the sub-item check as one value makes the
// invalid "checked but collapsed" combination unrepresentable.
type OptionalItemState string

const (
	OptionalCollapsed         OptionalItemState = "collapsed"
	OptionalExpandedUnchecked OptionalItemState = "expanded_unchecked"
	OptionalExpandedChecked   OptionalItemState = "expanded_checked"
)

// Expanded reports whether the optional item is currently expanded
func (s OptionalItemState) Expanded() bool {
	return s == OptionalExpandedUnchecked || s == OptionalExpandedChecked
}

// ChecklistItem is a document-preparation requirement within a case.
// Optional items carry a hidden sub-item that becomes a counted, checkable
// requirement only while the item is expanded.
type ChecklistItem struct {
	ID           string `json:"id" db:"id"`
	ProcedureID  string `json:"procedure_id" db:"procedure_id"`
	CaseID       string `json:"case_id" db:"case_id"`
	Label        string `json:"label" db:"label"`
	Optional     bool   `json:"optional" db:"optional"`
	SubItemLabel string `json:"sub_item_label,omitempty" db:"sub_item_label"`
	Position     int    `json:"position" db:"position"`
}

// ChecklistCase is the item catalog for one case of a procedure
type ChecklistCase struct {
	ProcedureID   string          `json:"procedure_id"`
	CaseID        string          `json:"case_id"`
	RequiredItems []ChecklistItem `json:"required_items"`
	OptionalItems []ChecklistItem `json:"optional_items"`
}

// CaseState is the persisted per-(procedure, case) checklist state.
// Absent state is equivalent to the zero value: nothing checked, nothing
// expanded.
type CaseState struct {
	CheckedItemIDs map[string]bool              `json:"checked_item_ids"`
	OptionalStates map[string]OptionalItemState `json:"optional_states"`
}

// NewCaseState returns an empty case state
func NewCaseState() *CaseState {
	return &CaseState{
		CheckedItemIDs: make(map[string]bool),
		OptionalStates: make(map[string]OptionalItemState),
	}
}

// OptionalState returns the state for an optional item, defaulting to collapsed
func (s *CaseState) OptionalState(itemID string) OptionalItemState {
	if st, ok := s.OptionalStates[itemID]; ok {
		return st
	}
	return OptionalCollapsed
}

// CaseStateKey builds the composite persistence key for a case, independent
// of any other case under the same procedure.
func CaseStateKey(procedureID, caseID string) string {
	return fmt.Sprintf("checklist:%s:%s", procedureID, caseID)
}

// CaseProgress is the computed readiness of a case
type CaseProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// FullyReady reports whether every counted requirement is checked. A case
// with zero items is never fully ready, to avoid false positives on
// misconfigured cases.
func (p CaseProgress) FullyReady() bool {
	return p.Total > 0 && p.Completed == p.Total
}
