package upstream

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

func newTestUploadClient(baseURL string, cfg config.UploadConfig) *UploadClient {
	return NewUploadClient(newTestClient(baseURL), cfg, logger.NewDevelopment())
}

func TestNewLogicalID_IsUUIDv4(t *testing.T) {
	id, err := uuid.Parse(NewLogicalID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}

func TestPseudoUUID_Shape(t *testing.T) {
	id := pseudoUUID()
	assert.Len(t, id, 36)
	assert.Equal(t, byte('4'), id[14])
	for _, pos := range []int{8, 13, 18, 23} {
		assert.Equal(t, byte('-'), id[pos])
	}
}

func TestUpload_SingleChunkExplicitFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		assert.Equal(t, "1", r.FormValue("currentChunkIndex"))
		assert.Equal(t, "1", r.FormValue("totalChunks"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"logicalId":"srv-assigned"}}`))
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 1 << 20})
	receipt, err := u.Upload(context.Background(), models.FileMeta{
		FileName: "clip.mp4",
		Size:     5,
	}, bytes.NewReader([]byte("video")), nil)

	require.NoError(t, err)
	assert.Equal(t, "srv-assigned", receipt.LogicalID)
}

func TestUpload_MessageMarkerOverridesErrorStatus(t *testing.T) {
	// The upstream sometimes reports a completed chunk through its error
	// branch. The human-readable marker wins over the transport status.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"Uploaded chunk 1/1"}`))
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 1 << 20})
	session := u.NewSession(models.FileMeta{FileName: "clip.mp4", Size: 5})
	receipt, err := u.Upload(context.Background(), session.FileMeta, bytes.NewReader([]byte("video")), session)

	require.NoError(t, err)
	assert.Equal(t, session.LogicalID, receipt.LogicalID)
}

func TestUpload_Bare2xxCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 1 << 20})
	receipt, err := u.Upload(context.Background(), models.FileMeta{FileName: "clip.mp4", Size: 3}, bytes.NewReader([]byte("abc")), nil)

	require.NoError(t, err)
	assert.NotEmpty(t, receipt.LogicalID)
}

func TestUpload_FailureSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"storage offline"}`))
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 1 << 20})
	_, err := u.Upload(context.Background(), models.FileMeta{FileName: "clip.mp4", Size: 3}, bytes.NewReader([]byte("abc")), nil)

	var failed *models.UploadFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Error(), "storage offline")
}

func TestUpload_ChunksSequentially(t *testing.T) {
	var gotChunks []int
	var gotIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		idx, err := strconv.Atoi(r.FormValue("currentChunkIndex"))
		require.NoError(t, err)
		gotChunks = append(gotChunks, idx)
		gotIDs = append(gotIDs, r.FormValue("logicalId"))
		assert.Equal(t, "3", r.FormValue("totalChunks"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"currentChunkIndex":` + r.FormValue("currentChunkIndex") + `,"totalChunks":3,"logicalId":"` + r.FormValue("logicalId") + `"}}`))
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 2})
	receipt, err := u.Upload(context.Background(), models.FileMeta{FileName: "clip.mp4", Size: 5}, bytes.NewReader([]byte("abcde")), nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, gotChunks)
	// The logical id is client-generated and stable across chunks.
	assert.Equal(t, gotIDs[0], gotIDs[1])
	assert.Equal(t, gotIDs[0], gotIDs[2])
	assert.Equal(t, gotIDs[0], receipt.LogicalID)
	assert.Equal(t, 3, receipt.TotalChunks)
}

func TestUpload_FailedChunkStopsUpload(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{ChunkSize: 2})
	_, err := u.Upload(context.Background(), models.FileMeta{FileName: "clip.mp4", Size: 6}, bytes.NewReader([]byte("abcdef")), nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestResolvePlaybackURL_MetadataProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/media/abc/info":
			w.WriteHeader(http.StatusNotFound)
		case "/api/videos/abc/meta":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"url":"/streams/abc.m3u8"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(config.UpstreamConfig{
		BaseURL:   srv.URL,
		APIPrefix: "/api",
		AssetBase: "https://cdn.example.gov",
		Timeout:   5 * time.Second,
	}, logger.NewDevelopment())
	u := NewUploadClient(client, config.UploadConfig{
		PlaybackProbePaths: []string{"/media/%s/info", "/videos/%s/meta"},
	}, logger.NewDevelopment())

	url := u.ResolvePlaybackURL(context.Background(), "abc")
	assert.Equal(t, "https://cdn.example.gov/streams/abc.m3u8", url)
}

func TestResolvePlaybackURL_BinaryProbeReturnsProbeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70})
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{
		PlaybackProbePaths: []string{"/media/%s/play"},
	})

	url := u.ResolvePlaybackURL(context.Background(), "abc")
	assert.Equal(t, srv.URL+"/api/media/abc/play", url)
}

func TestResolvePlaybackURL_AllProbesMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	u := newTestUploadClient(srv.URL, config.UploadConfig{
		PlaybackProbePaths: []string{"/media/%s/info", "/videos/%s/meta"},
	})

	assert.Empty(t, u.ResolvePlaybackURL(context.Background(), "abc"))
}
