package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civigate/internal/domain/models"
)

const pathSubmitReport = "/reports"

// scopedPaths derives per-role candidate paths by appending a suffix to
// every configured read-endpoint prefix. Detail-by-code and search-by-title
// exist under each role scope, and any scope may 403 independently.
func scopedPaths(prefixes []string, suffix string) []string {
	paths := make([]string, len(prefixes))
	for i, p := range prefixes {
		paths[i] = strings.TrimRight(p, "/") + suffix
	}
	return paths
}

// ReportSummary is the partial record returned by list and search
// endpoints. Only the detail-by-code endpoint carries the full timeline
// and attachments.
type ReportSummary struct {
	ID           string    `json:"id"`
	TrackingCode string    `json:"tracking_code"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchByTitle queries the search endpoint for title matches, walking
// the role-scoped candidate routes on 403.
func (c *Client) SearchByTitle(ctx context.Context, readPrefixes []string, text string) ([]ReportSummary, error) {
	query := url.Values{}
	query.Set("q", text)

	env, err := c.FetchFirstSuccess(ctx, scopedPaths(readPrefixes, "/search"), query)
	if err != nil {
		return nil, err
	}

	var matches []ReportSummary
	if err := json.Unmarshal(env.Data, &matches); err != nil {
		return nil, fmt.Errorf("malformed search payload: %w", err)
	}
	return matches, nil
}

// ReportByCode fetches the full report detail, including the status
// timeline and attachments, by canonical tracking code. The detail route
// exists under each role scope, so it goes through the same fallback walk.
func (c *Client) ReportByCode(ctx context.Context, readPrefixes []string, code string) (*models.Report, error) {
	suffix := "/code/" + url.PathEscape(code)
	env, err := c.FetchFirstSuccess(ctx, scopedPaths(readPrefixes, suffix), nil)
	if err != nil {
		return nil, err
	}

	var report models.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		return nil, fmt.Errorf("malformed report payload: %w", err)
	}
	return &report, nil
}

// ListReports reads the report list through the ordered candidate
// endpoints, falling back across role-scoped routes on 403.
func (c *Client) ListReports(ctx context.Context, paths []string, page, pageSize int) ([]ReportSummary, *Pagination, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	env, err := c.FetchFirstSuccess(ctx, paths, query)
	if err != nil {
		return nil, nil, err
	}

	var reports []ReportSummary
	if err := json.Unmarshal(env.Data, &reports); err != nil {
		return nil, nil, fmt.Errorf("malformed report list payload: %w", err)
	}
	return reports, env.Pagination, nil
}

// submitResponse is the payload of a successful report POST
type submitResponse struct {
	TrackingCode string `json:"tracking_code"`
}

// SubmitReport posts a validated report draft as multipart form data and
// returns the server-issued tracking code. videoRef is the logical upload
// id of an already-completed video upload, empty when no video was
// attached.
func (c *Client) SubmitReport(ctx context.Context, draft *models.ReportDraft, videoRef string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"category":     draft.Category,
		"title":        draft.Title,
		"description":  draft.Description,
		"location":     draft.Location,
		"priority":     string(draft.Priority),
		"is_anonymous": strconv.FormatBool(draft.IsAnonymous),
	}
	if !draft.IsAnonymous {
		fields["reporter_name"] = draft.ReporterName
		fields["reporter_phone"] = draft.ReporterPhone
	}
	if videoRef != "" {
		fields["video_ref"] = videoRef
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	for i, img := range draft.Images {
		part, err := w.CreateFormFile(fmt.Sprintf("images[%d]", i), img.FileName)
		if err != nil {
			return "", fmt.Errorf("failed to attach image: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return "", fmt.Errorf("failed to write image data: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(pathSubmitReport), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", models.ErrSessionExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the server's structured message verbatim when present.
		var env Envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
			return "", &models.SubmissionRejectedError{Message: env.Message}
		}
		return "", &models.SubmissionRejectedError{}
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("malformed submit payload: %w", err)
	}
	var result submitResponse
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &result); err != nil {
			return "", fmt.Errorf("malformed submit payload: %w", err)
		}
	}
	if result.TrackingCode == "" {
		return "", fmt.Errorf("submit succeeded but no tracking code was returned")
	}

	c.logger.Info().Str("tracking_code", result.TrackingCode).Msg("report submitted upstream")
	return result.TrackingCode, nil
}
