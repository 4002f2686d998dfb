// Package solveclient is the HTTP client for the solverd plate-solving
// service.
package solveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/skyanchor/skyanchor/pkg/models"
)

// Sentinel errors for solver service failures.
var (
	ErrUpstream        = errors.New("solver service error")
	ErrUpstreamTimeout = errors.New("solver service timeout")
	ErrJobNotFound     = errors.New("solver job not found")
)

// Client is the interface for talking to the solver service.
type Client interface {
	Submit(ctx context.Context, imagePath string) (string, error)
	Status(ctx context.Context, jobID string) (*models.SolverJob, error)
	Info(ctx context.Context, jobID string) (*models.JobInfo, error)
	Health(ctx context.Context) error
}

// HTTPClient implements Client against solverd's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new solver service client. apiKey may be empty.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Submit uploads the image at imagePath and returns the job ID assigned by
// the solver service. A non-2xx response or a response without a job ID is
// an upstream failure.
func (c *HTTPClient) Submit(ctx context.Context, imagePath string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if c.apiKey != "" {
		if err := mw.WriteField("apikey", c.apiKey); err != nil {
			return "", fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("%w: decoding upload response: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: upload failed: status %d: %s", ErrUpstream, resp.StatusCode, sr.Error)
	}
	if sr.JobID == "" {
		return "", fmt.Errorf("%w: upload response missing job_id", ErrUpstream)
	}

	return sr.JobID, nil
}

// Status fetches the job snapshot for jobID.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (*models.SolverJob, error) {
	u := fmt.Sprintf("%s/jobs/%s", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var job models.SolverJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("%w: decoding job status: %v", ErrUpstream, err)
	}
	job.ID = jobID
	return &job, nil
}

// Info fetches the terminal-shaped result payload for jobID.
func (c *HTTPClient) Info(ctx context.Context, jobID string) (*models.JobInfo, error) {
	u := fmt.Sprintf("%s/jobs/%s/info", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var info models.JobInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decoding job info: %v", ErrUpstream, err)
	}
	return &info, nil
}

// Health probes the solver service liveness endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: solver service not healthy (status %d)", ErrUpstream, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
