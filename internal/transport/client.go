// Package transport is the stateless boundary to the copy service. Each
// call issues exactly one HTTP request and either returns a parsed payload
// or a classified *Error; retrying and caching are the callers' business.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"telecopy/internal/model"
	"telecopy/internal/usage"
)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
}

func NewClient(baseURL string, tokens oauth2.TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// CreateResult is the server's acknowledgement of a created job.
type CreateResult struct {
	ID            string          `json:"id"`
	Status        model.JobStatus `json:"status"`
	Message       string          `json:"message"`
	SourceChannel string          `json:"source_channel"`
	TargetChannel string          `json:"target_channel"`
}

func (c *Client) ListJobs(ctx context.Context, owner string) ([]model.Job, error) {
	var out struct {
		Jobs []model.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs?owner="+url.QueryEscape(owner), nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (model.Job, error) {
	var job model.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func (c *Client) CreateJob(ctx context.Context, spec model.CopySpec) (CreateResult, error) {
	var res CreateResult
	if err := c.do(ctx, http.MethodPost, "/copy", spec, &res); err != nil {
		return CreateResult{}, err
	}
	return res, nil
}

func (c *Client) StopJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/copy/"+url.PathEscape(id)+"/stop", nil, nil)
}

func (c *Client) PauseJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/pause", nil, nil)
}

func (c *Client) ResumeJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/resume", nil, nil)
}

func (c *Client) UsageStats(ctx context.Context) (usage.Stats, error) {
	var stats usage.Stats
	if err := c.do(ctx, http.MethodGet, "/user/usage", nil, &stats); err != nil {
		return usage.Stats{}, err
	}
	return stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("no session credential: %w", err)
		}
		token.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return connectionError(err)
	}

	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode >= 400 {
		return classify(resp, readErrorMessage(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// readErrorMessage pulls the human-readable message out of an error body.
// The service answers either {"detail": ...} or {"error": ...}.
func readErrorMessage(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Error
}
