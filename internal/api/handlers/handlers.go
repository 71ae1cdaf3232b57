package handlers

import (
	"civigate/internal/domain/services"
	"civigate/internal/infrastructure/cache"
	"civigate/internal/infrastructure/database/repository"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Challenge *ChallengeHandler
	Reports   *ReportsHandler
	Checklist *ChecklistHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Challenges  *services.ChallengeEngine
	Submissions *services.SubmissionService
	Tracking    *services.TrackingService
	Checklists  *services.ChecklistService
	Uploads     *upstream.UploadClient
	Cache       *cache.RedisCache
	Repos       *repository.Repositories
	Logger      *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Cache, deps.Repos, deps.Logger),
		Challenge: NewChallengeHandler(deps.Challenges, deps.Logger),
		Reports:   NewReportsHandler(deps.Submissions, deps.Tracking, deps.Uploads, deps.Repos, deps.Logger),
		Checklist: NewChecklistHandler(deps.Checklists, deps.Logger),
	}
}
