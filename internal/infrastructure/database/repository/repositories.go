package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles all database repositories
type Repositories struct {
	Submissions *SubmissionRepository
	Checklists  *ChecklistRepository
}

// NewRepositories creates all repositories sharing one pool
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Submissions: NewSubmissionRepository(pool),
		Checklists:  NewChecklistRepository(pool),
	}
}
