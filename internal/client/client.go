// Package client is a thin HTTP client for the condgate API, used by the
// CLI. It wraps the JSON endpoints and surfaces the server's error
// envelope as APIError values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/condgate/condgate/internal/evaluation"
	"github.com/condgate/condgate/internal/store"
)

// Client is an HTTP client for the condgate API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// UpsertRuleSetParams is the body for creating or replacing a rule set.
type UpsertRuleSetParams struct {
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Sample      *int32          `json:"sample,omitempty"`
	Rule        json.RawMessage `json:"rule,omitempty"`
}

// SnapshotPayload mirrors the snapshot endpoint's response body.
type SnapshotPayload struct {
	ETag      string                   `json:"etag"`
	RuleSets  map[string]store.RuleSet `json:"rulesets"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// ValidateParams is the body for a validation dry run.
type ValidateParams struct {
	Key         string          `json:"key"`
	Env         string          `json:"env,omitempty"`
	Description string          `json:"description,omitempty"`
	Sample      *int32          `json:"sample,omitempty"`
	Rule        json.RawMessage `json:"rule,omitempty"`
}

// ValidateResult is the outcome of a validation dry run.
type ValidateResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

type mutationResponse struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

// UpsertRuleSet creates or replaces a rule set and returns the new
// snapshot ETag.
func (c *Client) UpsertRuleSet(ctx context.Context, key string, params UpsertRuleSetParams) (string, error) {
	var resp mutationResponse
	if err := c.do(ctx, http.MethodPut, "/v1/rulesets/"+key, params, &resp); err != nil {
		return "", err
	}
	return resp.ETag, nil
}

// GetRuleSet retrieves a single rule set by key.
func (c *Client) GetRuleSet(ctx context.Context, key string) (*store.RuleSet, error) {
	var rs store.RuleSet
	if err := c.do(ctx, http.MethodGet, "/v1/rulesets/"+key, nil, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// ListRuleSets retrieves all rule sets in the server's environment,
// sorted by key.
func (c *Client) ListRuleSets(ctx context.Context) ([]store.RuleSet, error) {
	var resp struct {
		RuleSets []store.RuleSet `json:"rulesets"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rulesets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.RuleSets, nil
}

// DeleteRuleSet deletes a rule set and returns the new snapshot ETag.
func (c *Client) DeleteRuleSet(ctx context.Context, key string) (string, error) {
	var resp mutationResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/rulesets/"+key, nil, &resp); err != nil {
		return "", err
	}
	return resp.ETag, nil
}

// Snapshot retrieves the current compiled snapshot.
func (c *Client) Snapshot(ctx context.Context) (*SnapshotPayload, error) {
	var snap SnapshotPayload
	if err := c.do(ctx, http.MethodGet, "/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Evaluate decides rule sets for a subject. With no keys, every rule
// set in the snapshot is evaluated.
func (c *Client) Evaluate(ctx context.Context, subject evaluation.Subject, keys []string) (*evaluation.EvaluateResponse, error) {
	body := struct {
		Subject evaluation.Subject `json:"subject"`
		Keys    []string           `json:"keys,omitempty"`
	}{subject, keys}

	var resp evaluation.EvaluateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/evaluate", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate dry-runs the upsert checks without writing anything.
func (c *Client) Validate(ctx context.Context, params ValidateParams) (*ValidateResult, error) {
	var result ValidateResult
	if err := c.do(ctx, http.MethodPost, "/v1/validate", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do performs one request cycle: marshal, send, decode or surface the
// error envelope.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeAPIError reads the error envelope; auth failures arrive as plain
// text, so fall back to the raw body.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Message != "" {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Message
		apiErr.Fields = envelope.Fields
		return apiErr
	}

	apiErr.Message = string(bytes.TrimSpace(data))
	return apiErr
}
