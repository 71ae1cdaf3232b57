package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"civigate/internal/domain/models"
	"civigate/internal/domain/services"
	"civigate/internal/infrastructure/database/repository"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

const maxSubmissionMemory = 32 << 20

// ReportsHandler handles report submission, tracking, and media endpoints
type ReportsHandler struct {
	submissions *services.SubmissionService
	tracking    *services.TrackingService
	uploads     *upstream.UploadClient
	repos       *repository.Repositories
	logger      *logger.Logger
}

// NewReportsHandler creates a new ReportsHandler
func NewReportsHandler(
	submissions *services.SubmissionService,
	tracking *services.TrackingService,
	uploads *upstream.UploadClient,
	repos *repository.Repositories,
	log *logger.Logger,
) *ReportsHandler {
	return &ReportsHandler{
		submissions: submissions,
		tracking:    tracking,
		uploads:     uploads,
		repos:       repos,
		logger:      log.WithComponent("reports"),
	}
}

// Submit handles POST /api/v1/reports (multipart)
func (h *ReportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	challengeID := r.FormValue("challenge_id")
	if challengeID == "" {
		h.respondError(w, http.StatusBadRequest, "challenge_id is required")
		return
	}

	draft, err := h.draftFromForm(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.submissions.Submit(r.Context(), draft, challengeID)
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, result)
}

// draftFromForm assembles a report draft from the multipart form
func (h *ReportsHandler) draftFromForm(r *http.Request) (*models.ReportDraft, error) {
	draft := &models.ReportDraft{
		Category:      r.FormValue("category"),
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		Location:      r.FormValue("location"),
		Priority:      models.ParsePriority(r.FormValue("priority")),
		IsAnonymous:   r.FormValue("is_anonymous") == "true",
		ReporterName:  r.FormValue("reporter_name"),
		ReporterPhone: r.FormValue("reporter_phone"),
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			att, err := readAttachment(header)
			if err != nil {
				return nil, err
			}
			draft.Images = append(draft.Images, *att)
		}
		if videos := r.MultipartForm.File["video"]; len(videos) > 0 {
			att, err := readAttachment(videos[0])
			if err != nil {
				return nil, err
			}
			draft.Video = att
		}
	}

	return draft, nil
}

func readAttachment(header *multipart.FileHeader) (*models.Attachment, error) {
	f, err := header.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file " + header.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("failed to read uploaded file " + header.Filename)
	}

	return &models.Attachment{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// trackResponse decorates the report with its derived current status
type trackResponse struct {
	*models.Report
	CurrentStatus *models.StatusEvent `json:"current_status,omitempty"`
}

// Track handles GET /api/v1/reports/track?code=X or ?q=title+fragment
func (h *ReportsHandler) Track(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	query := r.URL.Query().Get("q")

	var report *models.Report
	var err error
	switch {
	case code != "":
		report, err = h.tracking.TrackByCode(r.Context(), code)
	case query != "":
		report, err = h.tracking.TrackByTitleFragment(r.Context(), query)
	default:
		h.respondError(w, http.StatusBadRequest, "either code or q is required")
		return
	}
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	response := trackResponse{Report: report}
	if current, ok := report.CurrentStatus(); ok {
		response.CurrentStatus = &current
	}
	h.respondJSON(w, http.StatusOK, response)
}

// journalResponse is the staff dashboard's recent-submissions page
type journalResponse struct {
	Data   []*models.SubmissionRecord `json:"data"`
	Total  int64                      `json:"total"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// Journal handles GET /api/v1/reports/journal
func (h *ReportsHandler) Journal(w http.ResponseWriter, r *http.Request) {
	if h.repos == nil {
		h.respondError(w, http.StatusServiceUnavailable, "journal unavailable")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, total, err := h.repos.Submissions.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list journal")
		h.respondError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}

	h.respondJSON(w, http.StatusOK, journalResponse{
		Data:   records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// recentResponse is the upstream-backed recent-reports page
type recentResponse struct {
	Data       []upstream.ReportSummary `json:"data"`
	Pagination *upstream.Pagination     `json:"pagination,omitempty"`
}

// Recent handles GET /api/v1/reports/recent. Unlike the journal this reads
// live from the upstream list endpoints, through the fallback walk.
func (h *ReportsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	reports, pagination, err := h.tracking.ListRecent(r.Context(), page, pageSize)
	if err != nil {
		h.respondFlowError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, recentResponse{Data: reports, Pagination: pagination})
}

// Playback handles GET /api/v1/media/{logicalID}/playback
func (h *ReportsHandler) Playback(w http.ResponseWriter, r *http.Request) {
	logicalID := chi.URLParam(r, "logicalID")
	if logicalID == "" {
		h.respondError(w, http.StatusBadRequest, "logicalID is required")
		return
	}

	url := h.uploads.ResolvePlaybackURL(r.Context(), logicalID)
	if url == "" {
		h.respondError(w, http.StatusNotFound, "playback unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// respondFlowError maps the flow error taxonomy onto HTTP responses.
// Every failure here degrades to a user-visible message.
func (h *ReportsHandler) respondFlowError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var exhausted *models.EndpointsExhaustedError
	var upload *models.UploadFailedError
	var rejected *models.SubmissionRejectedError

	switch {
	case errors.As(err, &verr):
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, models.ErrChallengeFailed), errors.Is(err, models.ErrChallengeExpired):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upload):
		h.respondError(w, http.StatusBadGateway, upload.Error())
	case errors.As(err, &rejected):
		h.respondError(w, http.StatusUnprocessableEntity, rejected.Error())
	case errors.Is(err, models.ErrSessionExpired):
		h.respondError(w, http.StatusUnauthorized, "session expired, please sign in again")
	case errors.As(err, &exhausted):
		h.respondError(w, http.StatusForbidden, "you do not have access to report data")
	case errors.Is(err, models.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "no report matched your search")
	default:
		h.logger.Error().Err(err).Msg("report flow failed")
		h.respondError(w, http.StatusInternalServerError, "something went wrong, please try again")
	}
}

func (h *ReportsHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ReportsHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
