// Package azure implements the search backend on the Azure Cognitive Search REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// Compile-time check: Client implements db.Backend.
var _ db.Backend = (*Client)(nil)

// DefaultAPIVersion is the first REST version with vector search and semantic captions in one request.
const DefaultAPIVersion = "2023-07-01-Preview"

// Default upload settings.
const (
	DefaultUploadBatchSize   = 1000
	DefaultUploadConcurrency = 2
)

// Config holds connection parameters for a search service.
type Config struct {
	Endpoint          string // https://{service}.search.windows.net
	AdminKey          string
	APIVersion        string
	Timeout           time.Duration
	UploadBatchSize   int
	UploadConcurrency int
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to one search service.
type Client struct {
	endpoint    string
	key         string
	apiVersion  string
	batchSize   int
	concurrency int
	http        *http.Client

	mu      sync.RWMutex
	schemas map[string]*schema.Index
}

// New creates a search service client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.AdminKey == "" {
		return nil, fmt.Errorf("admin key is required")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}

	c := &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		key:         cfg.AdminKey,
		apiVersion:  cfg.APIVersion,
		batchSize:   cfg.UploadBatchSize,
		concurrency: cfg.UploadConcurrency,
		http:        cfg.HTTPClient,
		schemas:     make(map[string]*schema.Index),
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultUploadBatchSize
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultUploadConcurrency
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// Ping checks that the service answers and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, db.OpStats, http.MethodGet, "/servicestats", nil, nil)
}

// APIError is an error body returned by the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, db.ErrIndexNotFound) match a 404.
func (e *APIError) Is(target error) bool {
	return target == db.ErrIndexNotFound && e.Status == http.StatusNotFound
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON sends body as JSON and decodes a 2xx response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	_, err := c.doJSONStatus(ctx, op, method, path, body, out)
	return err
}

func (c *Client) doJSONStatus(ctx context.Context, op, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	u := c.endpoint + path + "?api-version=" + url.QueryEscape(c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("api-key", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &db.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &db.Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &db.Error{Op: op, Err: parseAPIError(resp.StatusCode, respBody)}
	}
	if out != nil && len(respBody) > 0 {
		dec := json.NewDecoder(bytes.NewReader(respBody))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return resp.StatusCode, &db.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.StatusCode, nil
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// isNotFound reports whether err is a 404 from the service.
func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func indexPath(name string) string {
	return "/indexes/" + url.PathEscape(name)
}
