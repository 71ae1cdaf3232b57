package upstream

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
	"civigate/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL:   baseURL,
		APIPrefix: "/api",
		Timeout:   5 * time.Second,
	}, logger.NewDevelopment())
}

func TestFetchFirstSuccess_FallsThroughOn403(t *testing.T) {
	calls := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls[r.URL.Path]++
		switch r.URL.Path {
		case "/api/reports/my":
			w.WriteHeader(http.StatusForbidden)
		case "/api/reports":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":[{"tracking_code":"TC-1"}]}`))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	env, err := client.FetchFirstSuccess(context.Background(), []string{"/reports/my", "/reports", "/web/reports"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, env.Data)

	assert.Equal(t, 1, calls["/api/reports/my"])
	assert.Equal(t, 1, calls["/api/reports"])
	// The walk stops at the first success.
	assert.Equal(t, 0, calls["/api/web/reports"])
}

func TestFetchFirstSuccess_401IsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchFirstSuccess(context.Background(), []string{"/reports/my", "/reports"}, nil)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
	assert.Equal(t, 1, calls)
}

func TestFetchFirstSuccess_AllDeniedExhausts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchFirstSuccess(context.Background(), []string{"/reports/my", "/reports", "/web/reports"}, nil)

	var exhausted *models.EndpointsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempted)
	assert.ErrorIs(t, exhausted, models.ErrPermissionDenied)
}

func TestFetchFirstSuccess_EmptyPayloadIsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":null}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchFirstSuccess(context.Background(), []string{"/reports/my", "/reports"}, nil)
	assert.Error(t, err)
	// A successful-but-empty answer must not trigger the fallback walk.
	assert.Equal(t, 1, calls)
}

func TestFetchFirstSuccess_NoEndpointsConfigured(t *testing.T) {
	client := newTestClient("http://unreachable.invalid")
	_, err := client.FetchFirstSuccess(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestFetchFirstSuccess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient("http://unreachable.invalid")
	_, err := client.FetchFirstSuccess(ctx, []string{"/reports"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
