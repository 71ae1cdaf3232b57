package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

const pathUploadMedia = "/media/upload"

// UploadClient relays a media file to the municipal upload endpoint in one
// or more ordered chunks. The logical id is generated before any network
// call so it stays stable across retries and across chunk calls.
type UploadClient struct {
	client     *Client
	chunkSize  int64
	probePaths []string
	logger     *logger.Logger
}

// NewUploadClient creates an upload client on top of the base API client
func NewUploadClient(client *Client, cfg config.UploadConfig, log *logger.Logger) *UploadClient {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 2 << 20
	}
	return &UploadClient{
		client:     client,
		chunkSize:  chunkSize,
		probePaths: cfg.PlaybackProbePaths,
		logger:     log.WithComponent("upload"),
	}
}

// NewLogicalID generates a stable client-side upload identifier. When no
// secure UUID source is available it falls back to a non-cryptographic
// generator rather than failing the upload.
func NewLogicalID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return pseudoUUID()
	}
	return id.String()
}

func pseudoUUID() string {
	const hex = "0123456789abcdef"
	b := make([]byte, 36)
	for i := range b {
		switch i {
		case 8, 13, 18, 23:
			b[i] = '-'
		case 14:
			b[i] = '4'
		default:
			b[i] = hex[rand.Intn(16)]
		}
	}
	return string(b)
}

// NewSession creates an upload session for a file of known size
func (u *UploadClient) NewSession(meta models.FileMeta) *models.UploadSession {
	totalChunks := 1
	if meta.Size > u.chunkSize {
		totalChunks = int((meta.Size + u.chunkSize - 1) / u.chunkSize)
	}
	return &models.UploadSession{
		LogicalID:         NewLogicalID(),
		CurrentChunkIndex: 1,
		TotalChunks:       totalChunks,
		FileMeta:          meta,
	}
}

// Upload sends the file through the chunk endpoint, sequentially and in
// order. A nil session starts a fresh upload; a partially advanced session
// resumes at its current chunk index.
func (u *UploadClient) Upload(ctx context.Context, meta models.FileMeta, file io.Reader, session *models.UploadSession) (*models.UploadReceipt, error) {
	if session == nil {
		session = u.NewSession(meta)
	}

	log := u.logger.WithUpload(session.LogicalID)
	log.Info().
		Str("file", meta.FileName).
		Int("total_chunks", session.TotalChunks).
		Msg("starting upload")

	var receipt *models.UploadReceipt
	for session.CurrentChunkIndex <= session.TotalChunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk := make([]byte, u.chunkSize)
		n, err := io.ReadFull(file, chunk)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, fmt.Errorf("failed to read chunk %d: %w", session.CurrentChunkIndex, err)
		}

		receipt, err = u.uploadChunk(ctx, session, chunk[:n])
		if err != nil {
			return nil, err
		}

		log.Debug().Int("chunk", session.CurrentChunkIndex).Msg("chunk accepted")
		session.CurrentChunkIndex++
	}

	if receipt == nil {
		return nil, &models.UploadFailedError{LogicalID: session.LogicalID, Message: "no chunks were sent"}
	}

	log.Info().Msg("upload complete")
	return receipt, nil
}

// uploadChunk sends a single chunk and reconciles the server's answer
// through the layered success detection chain.
func (u *UploadClient) uploadChunk(ctx context.Context, session *models.UploadSession, data []byte) (*models.UploadReceipt, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	_ = w.WriteField("logicalId", session.LogicalID)
	_ = w.WriteField("currentChunkIndex", strconv.Itoa(session.CurrentChunkIndex))
	_ = w.WriteField("totalChunks", strconv.Itoa(session.TotalChunks))

	part, err := w.CreateFormFile("file", session.FileMeta.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build chunk body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write chunk data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize chunk body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.client.endpointURL(pathUploadMedia), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build chunk request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if u.client.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+u.client.authToken)
	}

	resp, err := u.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chunk request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk response: %w", err)
	}

	raw := uploadResponse{StatusCode: resp.StatusCode, Body: body}
	if receipt, ok := detectSuccess(raw, session); ok {
		return receipt, nil
	}

	return nil, &models.UploadFailedError{
		LogicalID: session.LogicalID,
		Message:   serverMessage(body),
	}
}

// uploadResponse is the raw material the success detectors work on
type uploadResponse struct {
	StatusCode int
	Body       []byte
}

// successDetector inspects a raw response and either produces a receipt or
// passes. Detectors are pure so the chain stays unit-testable; it encodes
// undocumented upstream behavior and must not be reordered.
type successDetector func(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool)

// detectSuccess runs the ordered detection chain. The upstream's success
// signal is inconsistent, so four independent representations count as
// success, checked in priority order:
//  1. an explicit success flag with a payload
//  2. a payload carrying the expected identifier fields
//  3. a human-readable message containing the "uploaded" marker, even on a
//     non-2xx transport status or inside an error branch
//  4. any 2xx transport status with no parseable body
func detectSuccess(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool) {
	chain := []successDetector{
		detectExplicitFlag,
		detectIdentifierPayload,
		detectUploadedMarker,
		detectBare2xx,
	}
	for _, detect := range chain {
		if receipt, ok := detect(raw, session); ok {
			return receipt, true
		}
	}
	return nil, false
}

func detectExplicitFlag(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool) {
	var env Envelope
	if err := json.Unmarshal(raw.Body, &env); err != nil {
		return nil, false
	}
	if env.Success == nil || !*env.Success || len(env.Data) == 0 {
		return nil, false
	}
	return receiptFromPayload(env.Data, session), true
}

func detectIdentifierPayload(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool) {
	var payload uploadIdentifiers
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		// The identifiers may be nested under data.
		var env Envelope
		if err := json.Unmarshal(raw.Body, &env); err != nil || len(env.Data) == 0 {
			return nil, false
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, false
		}
	}
	if payload.logicalID() == "" {
		return nil, false
	}
	return payload.receipt(session), true
}

func detectUploadedMarker(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool) {
	msg := serverMessage(raw.Body)
	if msg == "" {
		msg = string(raw.Body)
	}
	if !strings.Contains(strings.ToLower(msg), "uploaded") {
		return nil, false
	}
	return receiptFromSession(session), true
}

func detectBare2xx(raw uploadResponse, session *models.UploadSession) (*models.UploadReceipt, bool) {
	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return nil, false
	}
	return receiptFromSession(session), true
}

// uploadIdentifiers tolerates the upstream's field-name drift
type uploadIdentifiers struct {
	LogicalID   string `json:"logicalId"`
	LogicalIDS  string `json:"logical_id"`
	FileID      string `json:"fileId"`
	ChunkIndex  int    `json:"currentChunkIndex"`
	ChunkIndexS int    `json:"current_chunk_index"`
	TotalChunks int    `json:"totalChunks"`
	TotalS      int    `json:"total_chunks"`
}

func (p uploadIdentifiers) logicalID() string {
	if p.LogicalID != "" {
		return p.LogicalID
	}
	if p.LogicalIDS != "" {
		return p.LogicalIDS
	}
	return p.FileID
}

func (p uploadIdentifiers) receipt(session *models.UploadSession) *models.UploadReceipt {
	receipt := receiptFromSession(session)
	if id := p.logicalID(); id != "" {
		receipt.LogicalID = id
	}
	if p.ChunkIndex > 0 {
		receipt.ChunkIndex = p.ChunkIndex
	} else if p.ChunkIndexS > 0 {
		receipt.ChunkIndex = p.ChunkIndexS
	}
	if p.TotalChunks > 0 {
		receipt.TotalChunks = p.TotalChunks
	} else if p.TotalS > 0 {
		receipt.TotalChunks = p.TotalS
	}
	return receipt
}

func receiptFromPayload(data json.RawMessage, session *models.UploadSession) *models.UploadReceipt {
	var payload uploadIdentifiers
	if err := json.Unmarshal(data, &payload); err != nil {
		return receiptFromSession(session)
	}
	return payload.receipt(session)
}

func receiptFromSession(session *models.UploadSession) *models.UploadReceipt {
	return &models.UploadReceipt{
		LogicalID:   session.LogicalID,
		ChunkIndex:  session.CurrentChunkIndex,
		TotalChunks: session.TotalChunks,
	}
}

// serverMessage extracts the envelope message from a raw body, if any
func serverMessage(body []byte) string {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

// playbackInfo tolerates the several URL field names the metadata probes return
type playbackInfo struct {
	URL         string `json:"url"`
	PlaybackURL string `json:"playback_url"`
	PlayURL     string `json:"playUrl"`
}

func (p playbackInfo) best() string {
	if p.URL != "" {
		return p.URL
	}
	if p.PlaybackURL != "" {
		return p.PlaybackURL
	}
	return p.PlayURL
}

// ResolvePlaybackURL probes metadata and direct stream endpoints for a
// playable URL. It is strictly best effort: every probe failure is
// swallowed and only an empty string is surfaced when nothing answers,
// leaving the caller to show its "unavailable" state.
func (u *UploadClient) ResolvePlaybackURL(ctx context.Context, logicalID string) string {
	for _, pattern := range u.probePaths {
		if ctx.Err() != nil {
			return ""
		}

		probeURL := u.client.endpointURL(fmt.Sprintf(pattern, logicalID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
		if err != nil {
			continue
		}
		if u.client.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+u.client.authToken)
		}

		resp, err := u.client.http.Do(req)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			continue
		}

		// Metadata probes answer with JSON carrying a URL field.
		var info playbackInfo
		if err := json.Unmarshal(body, &info); err == nil {
			if url := info.best(); url != "" {
				return u.client.AssetURL(url)
			}
			var env Envelope
			if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &info); err == nil {
					if url := info.best(); url != "" {
						return u.client.AssetURL(url)
					}
				}
			}
			continue
		}

		// A literal absolute URL in the body counts.
		if text := strings.TrimSpace(string(body)); strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			return text
		}

		// A binary payload means the probe endpoint itself is streamable.
		if len(body) > 0 {
			return probeURL
		}
	}

	u.logger.Debug().Str("upload_id", logicalID).Msg("no playback source responded")
	return ""
}
