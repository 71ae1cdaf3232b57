package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"civigate/internal/config"
	"civigate/internal/domain/models"
	"civigate/pkg/logger"
)

// Envelope is the conventional success envelope of the municipal API
type Envelope struct {
	Success    *bool           `json:"success,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// Pagination describes list paging as returned by the municipal API
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Client is the low-level HTTP client for the municipal API. It owns URL
// building, auth headers, envelope decoding, and status classification;
// the typed endpoint wrappers live in reports.go and upload.go.
type Client struct {
	baseURL   string
	apiPrefix string
	assetBase string
	authToken string
	http      *http.Client
	logger    *logger.Logger
}

// NewClient creates a municipal API client from upstream configuration
func NewClient(cfg config.UpstreamConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiPrefix: cfg.APIPrefix,
		assetBase: cfg.AssetBase,
		authToken: cfg.AuthToken,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithComponent("upstream"),
	}
}

// endpointURL joins the base URL, API prefix, and path
func (c *Client) endpointURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + c.apiPrefix + path
}

// AssetURL resolves a relative asset reference against the asset base
func (c *Client) AssetURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(c.assetBase, "/") + "/" + strings.TrimLeft(ref, "/")
}

// get performs a GET against the given API path and decodes the envelope.
// Transport status is classified before decoding: 401 maps to
// ErrSessionExpired, 403 to ErrPermissionDenied.
func (c *Client) get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed upstream payload: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, fmt.Errorf("upstream error: %s", messageOrDefault(env.Message, "request failed"))
	}

	return &env, nil
}

// classifyStatus maps transport status codes to the error taxonomy
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return models.ErrSessionExpired
	case status == http.StatusForbidden:
		return models.ErrPermissionDenied
	case status == http.StatusNotFound:
		return models.ErrNotFound
	case status >= 200 && status < 300:
		return nil
	default:
		return fmt.Errorf("upstream returned status %d: %s", status, truncate(string(body), 200))
	}
}

func messageOrDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
