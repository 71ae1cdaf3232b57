package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"civigate/internal/domain/models"
	"civigate/internal/infrastructure/database/repository"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// SubmitResult is the durable outcome of a successful submission. The
// tracking code is the only identifier the citizen gets; it cannot be
// recovered later except by re-searching on title.
type SubmitResult struct {
	TrackingCode string `json:"tracking_code"`
}

// SubmissionService validates and assembles a report draft, orchestrates
// the upload-before-submit ordering, and reports the tracking code back.
//
// State machine: Editing -> (optional) Uploading -> Submitting ->
// Succeeded | Failed. A video-upload failure aborts the whole submission;
// no partial report is ever created upstream.
type SubmissionService struct {
	client     *upstream.Client
	uploads    *upstream.UploadClient
	challenges *ChallengeEngine
	journal    *repository.SubmissionRepository
	logger     *logger.Logger
}

// NewSubmissionService creates a report submission service. journal may be
// nil when running without a database; successful submissions are then
// only reported to the caller.
func NewSubmissionService(
	client *upstream.Client,
	uploads *upstream.UploadClient,
	challenges *ChallengeEngine,
	journal *repository.SubmissionRepository,
	log *logger.Logger,
) *SubmissionService {
	return &SubmissionService{
		client:     client,
		uploads:    uploads,
		challenges: challenges,
		journal:    journal,
		logger:     log.WithComponent("submission"),
	}
}

// Validate applies the authoritative draft rules. It is purely local and
// runs before any network call.
func (s *SubmissionService) Validate(draft *models.ReportDraft) *models.ValidationError {
	fields := make(map[string]string)

	if draft.Category == "" {
		fields["category"] = "category is required"
	}
	if draft.Title == "" {
		fields["title"] = "title is required"
	} else if utf8.RuneCountInString(draft.Title) > maxTitleLength {
		fields["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if draft.Description == "" {
		fields["description"] = "description is required"
	} else if utf8.RuneCountInString(draft.Description) > maxDescriptionLength {
		fields["description"] = fmt.Sprintf("description must be at most %d characters", maxDescriptionLength)
	}
	if draft.Location == "" {
		fields["location"] = "location is required"
	}
	if draft.Priority != models.PriorityNormal && draft.Priority != models.PriorityUrgent {
		fields["priority"] = "priority must be normal or urgent"
	}
	if len(draft.Images) == 0 {
		fields["images"] = "at least one image is required"
	}

	if !draft.IsAnonymous {
		if draft.ReporterName == "" {
			fields["reporter_name"] = "name is required unless the report is anonymous"
		}
		if !phonePattern.MatchString(draft.ReporterPhone) {
			fields["reporter_phone"] = "phone must be exactly 10 digits"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &models.ValidationError{Fields: fields}
}

// Submit runs the full submission flow for a draft gated by a solved
// challenge. The challenge is consumed up front; on any failure a fresh
// one is installed under the same id, so a stale solved challenge can
// never gate a retried submission. The draft itself is left untouched for
// the retry.
func (s *SubmissionService) Submit(ctx context.Context, draft *models.ReportDraft, challengeID string) (*SubmitResult, error) {
	if err := s.challenges.Consume(ctx, challengeID); err != nil {
		return nil, err
	}

	if verr := s.Validate(draft); verr != nil {
		s.regenerate(ctx, challengeID)
		return nil, verr
	}

	videoRef := ""
	if draft.Video != nil {
		receipt, err := s.uploads.Upload(ctx, models.FileMeta{
			FileName:    draft.Video.FileName,
			ContentType: draft.Video.ContentType,
			Size:        int64(len(draft.Video.Data)),
		}, bytes.NewReader(draft.Video.Data), nil)
		if err != nil {
			s.regenerate(ctx, challengeID)
			return nil, err
		}
		videoRef = receipt.LogicalID
	}

	trackingCode, err := s.client.SubmitReport(ctx, draft, videoRef)
	if err != nil {
		s.regenerate(ctx, challengeID)
		return nil, err
	}

	s.record(ctx, draft, trackingCode)

	s.logger.Info().Str("tracking_code", trackingCode).Msg("report submission complete")
	return &SubmitResult{TrackingCode: trackingCode}, nil
}

// regenerate installs a replacement challenge after a failed submission.
// Best effort: a store hiccup here must not mask the original failure.
func (s *SubmissionService) regenerate(ctx context.Context, challengeID string) {
	if _, err := s.challenges.Reset(ctx, challengeID); err != nil {
		s.logger.Warn().Err(err).Str("challenge_id", challengeID).Msg("failed to regenerate challenge")
	}
}

// record journals the issued tracking code. The submission already
// succeeded upstream, so a journal failure is logged, not surfaced.
func (s *SubmissionService) record(ctx context.Context, draft *models.ReportDraft, trackingCode string) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.Record(ctx, &models.SubmissionRecord{
		TrackingCode: trackingCode,
		Category:     draft.Category,
		Title:        draft.Title,
		Priority:     draft.Priority,
		IsAnonymous:  draft.IsAnonymous,
		HasVideo:     draft.Video != nil,
		ImageCount:   len(draft.Images),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("tracking_code", trackingCode).Msg("failed to journal submission")
	}
}
