package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

type submissionFixture struct {
	service *SubmissionService
	engine  *ChallengeEngine
}

func newSubmissionFixture(t *testing.T, handler http.HandlerFunc) *submissionFixture {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewDevelopment()
	client := upstream.NewClient(config.UpstreamConfig{
		BaseURL:   srv.URL,
		APIPrefix: "/api",
		Timeout:   5 * time.Second,
	}, log)
	uploads := upstream.NewUploadClient(client, config.UploadConfig{ChunkSize: 1 << 20}, log)
	engine := NewChallengeEngine(NewMemoryChallengeStore(), config.ChallengeConfig{
		TTL:        5 * time.Minute,
		RetryDelay: time.Second,
	}, log)

	return &submissionFixture{
		service: NewSubmissionService(client, uploads, engine, nil, log),
		engine:  engine,
	}
}

// solvedChallenge generates a challenge and solves it
func (f *submissionFixture) solvedChallenge(t *testing.T) string {
	ctx := context.Background()
	ch, err := f.engine.Generate(ctx)
	require.NoError(t, err)
	result, err := f.engine.Validate(ctx, ch.ID, ch.Code)
	require.NoError(t, err)
	require.True(t, result.Valid)
	return ch.ID
}

func validDraft() *models.ReportDraft {
	return &models.ReportDraft{
		Category:    "roads",
		Title:       "Pothole on Main Street",
		Description: "A deep pothole in front of number 5.",
		Location:    "Main Street 5",
		Priority:    models.PriorityNormal,
		IsAnonymous: true,
		Images: []models.Attachment{
			{FileName: "pothole.jpg", ContentType: "image/jpeg", Data: []byte("jpeg-bytes")},
		},
	}
}

func TestSubmission_ValidateAnonymousSkipsReporterFields(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	draft := validDraft()
	draft.ReporterName = ""
	draft.ReporterPhone = ""

	assert.Nil(t, fixture.service.Validate(draft))
}

func TestSubmission_ValidateReporterFieldsWhenNotAnonymous(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	draft := validDraft()
	draft.IsAnonymous = false
	draft.ReporterName = "A. Citizen"
	draft.ReporterPhone = "12345"

	verr := fixture.service.Validate(draft)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "reporter_phone")
	assert.NotContains(t, verr.Fields, "reporter_name")

	draft.ReporterPhone = "0123456789"
	assert.Nil(t, fixture.service.Validate(draft))
}

func TestSubmission_ValidateCollectsAllFieldErrors(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	verr := fixture.service.Validate(&models.ReportDraft{IsAnonymous: true})
	require.NotNil(t, verr)
	for _, field := range []string{"category", "title", "description", "location", "images"} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestSubmission_ValidateLengthLimits(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	draft := validDraft()
	draft.Title = strings.Repeat("x", maxTitleLength+1)
	verr := fixture.service.Validate(draft)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "title")
}

func TestSubmission_SubmitRequiresSolvedChallenge(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected without a solved challenge")
	})

	ch, err := fixture.engine.Generate(context.Background())
	require.NoError(t, err)

	_, err = fixture.service.Submit(context.Background(), validDraft(), ch.ID)
	assert.ErrorIs(t, err, models.ErrChallengeFailed)
}

func TestSubmission_SubmitWithoutVideo(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/reports", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(8<<20))
		assert.Equal(t, "true", r.FormValue("is_anonymous"))
		assert.Empty(t, r.FormValue("video_ref"))
		assert.Empty(t, r.FormValue("reporter_name"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"tracking_code":"TC-77"}}`))
	})

	id := fixture.solvedChallenge(t)
	result, err := fixture.service.Submit(context.Background(), validDraft(), id)
	require.NoError(t, err)
	assert.Equal(t, "TC-77", result.TrackingCode)
}

func TestSubmission_SubmitUploadsVideoFirst(t *testing.T) {
	var uploadedID string
	var videoRef string
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/media/upload":
			require.NoError(t, r.ParseMultipartForm(8<<20))
			uploadedID = r.FormValue("logicalId")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":false,"message":"Uploaded chunk 1/1"}`))
		case "/api/reports":
			require.NoError(t, r.ParseMultipartForm(8<<20))
			videoRef = r.FormValue("video_ref")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":{"tracking_code":"TC-78"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	draft := validDraft()
	draft.Video = &models.Attachment{FileName: "clip.mp4", ContentType: "video/mp4", Data: []byte("mp4-bytes")}

	id := fixture.solvedChallenge(t)
	result, err := fixture.service.Submit(context.Background(), draft, id)
	require.NoError(t, err)
	assert.Equal(t, "TC-78", result.TrackingCode)

	// The report references the client-generated logical upload id.
	assert.NotEmpty(t, uploadedID)
	assert.Equal(t, uploadedID, videoRef)
}

func TestSubmission_UploadFailureAbortsSubmission(t *testing.T) {
	reportCalls := 0
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/media/upload":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success":false,"message":"storage offline"}`))
		case "/api/reports":
			reportCalls++
		}
	})

	draft := validDraft()
	draft.Video = &models.Attachment{FileName: "clip.mp4", ContentType: "video/mp4", Data: []byte("mp4-bytes")}

	id := fixture.solvedChallenge(t)
	_, err := fixture.service.Submit(context.Background(), draft, id)

	var failed *models.UploadFailedError
	require.ErrorAs(t, err, &failed)
	// No partial report is ever created upstream.
	assert.Equal(t, 0, reportCalls)
}

func TestSubmission_FailureRegeneratesChallenge(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"success":false,"message":"duplicate report"}`))
	})

	id := fixture.solvedChallenge(t)
	_, err := fixture.service.Submit(context.Background(), validDraft(), id)

	var rejected *models.SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Error(), "duplicate report")

	// A fresh pending challenge replaced the consumed one; the stale solve
	// cannot gate a retry.
	ch, err := fixture.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatePending, ch.State)
}

func TestSubmission_ValidationFailureRegeneratesChallenge(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected for an invalid draft")
	})

	id := fixture.solvedChallenge(t)
	draft := validDraft()
	draft.Images = nil

	_, err := fixture.service.Submit(context.Background(), draft, id)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)

	ch, err := fixture.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeStatePending, ch.State)
}

func TestSubmission_SessionExpiryPropagates(t *testing.T) {
	fixture := newSubmissionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	id := fixture.solvedChallenge(t)
	_, err := fixture.service.Submit(context.Background(), validDraft(), id)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}
