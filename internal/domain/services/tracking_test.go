package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/internal/upstream"
	"civigate/pkg/logger"
)

const trackedReportJSON = `{
	"id": "r-1",
	"tracking_code": "TC-9",
	"title": "Broken streetlight",
	"category": "lighting",
	"status_history": [
		{"label": "In review", "occurred_at": "2026-03-02T10:00:00Z"},
		{"label": "Received", "occurred_at": "2026-03-01T08:00:00Z"},
		{"label": "Resolved", "occurred_at": "2026-03-05T16:30:00Z"}
	]
}`

func newTrackingFixture(t *testing.T, handler http.HandlerFunc) (*TrackingService, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.UpstreamConfig{
		BaseURL:       srv.URL,
		APIPrefix:     "/api",
		Timeout:       5 * time.Second,
		ReadEndpoints: []string{"/reports/my", "/reports"},
	}
	log := logger.NewDevelopment()
	client := upstream.NewClient(cfg, log)
	return NewTrackingService(client, nil, cfg, log), srv
}

func TestTracking_TrackByCodeSortsTimeline(t *testing.T) {
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/reports/my/code/TC-9":
			w.WriteHeader(http.StatusForbidden)
		case "/api/reports/code/TC-9":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":` + trackedReportJSON + `}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	report, err := svc.TrackByCode(context.Background(), "TC-9")
	require.NoError(t, err)
	require.Len(t, report.StatusHistory, 3)

	assert.Equal(t, "Received", report.StatusHistory[0].Label)
	assert.Equal(t, "In review", report.StatusHistory[1].Label)
	assert.Equal(t, "Resolved", report.StatusHistory[2].Label)

	current, ok := report.CurrentStatus()
	require.True(t, ok)
	assert.Equal(t, "Resolved", current.Label)
}

func TestTracking_TrackByCodeBlankIsNotFound(t *testing.T) {
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no upstream call expected for a blank code")
	})

	_, err := svc.TrackByCode(context.Background(), "   ")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTracking_TrackByTitleFragmentUsesFirstMatch(t *testing.T) {
	var detailPath string
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/reports/my/search":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":[
				{"tracking_code":"TC-9","title":"Broken streetlight"},
				{"tracking_code":"TC-10","title":"Broken bench"}
			]}`))
		case "/api/reports/my/code/TC-9":
			detailPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":` + trackedReportJSON + `}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	report, err := svc.TrackByTitleFragment(context.Background(), "streetlight")
	require.NoError(t, err)

	// The search hit only carries a partial record; the canonical code
	// drives a second, full fetch.
	assert.Equal(t, "TC-9", report.TrackingCode)
	assert.Equal(t, "/api/reports/my/code/TC-9", detailPath)
}

func TestTracking_TrackByTitleFragmentNoMatches(t *testing.T) {
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[]}`))
	})

	_, err := svc.TrackByTitleFragment(context.Background(), "nothing here")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTracking_SessionExpiryPropagates(t *testing.T) {
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := svc.TrackByCode(context.Background(), "TC-9")
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestTracking_AllRoutesDenied(t *testing.T) {
	svc, _ := newTrackingFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := svc.TrackByCode(context.Background(), "TC-9")
	var exhausted *models.EndpointsExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}
