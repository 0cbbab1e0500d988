// Package captions is a Go client for the captions job API.
package captions

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
)

// APIError is returned for a non-2xx response or a failed round trip.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets callers match a 404 with ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Temporary reports whether repeating the request might succeed.
func (e *APIError) Temporary() bool {
	return e.Err != nil || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type UploadTarget struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

func (c *Client) CreateJob(ctx context.Context) (*Job, error) {
	job := &Job{}
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) UpdateJob(ctx context.Context, jobID string, req PatchRequest) (*Job, error) {
	job := &Job{}
	if err := c.do(ctx, http.MethodPatch, "/api/jobs/"+url.PathEscape(jobID), req, job); err != nil {
		return nil, err
	}
	return job, nil
}

// StartJob asks the service to hand the job to a worker.
func (c *Client) StartJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/start", nil, nil)
}

func (c *Client) Presign(ctx context.Context, jobID, fileName, contentType string) (*UploadTarget, error) {
	body := map[string]string{"jobId": jobID, "fileName": fileName, "contentType": contentType}
	target := &UploadTarget{}
	if err := c.do(ctx, http.MethodPost, "/api/uploads/presign", body, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Upload PUTs r to a presigned URL returned by Presign.
func (c *Client) Upload(ctx context.Context, target *UploadTarget, contentType string, r io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &APIError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: "upload failed: " + resp.Status}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &APIError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
