// Package client is a Go client for the marketplace REST API. It feeds the
// readiness checklist (as a checklist.Executor) and the catalog (as a
// catalog.Source).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/danceforge/backoffice/internal/models"
)

// ErrMalformedPayload is returned when a response does not decode into the
// expected shape or fails validation
var ErrMalformedPayload = errors.New("malformed payload")

// StatusError is returned for HTTP responses with status >= 400
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Endpoints are the API paths, relative to the base URL
type Endpoints struct {
	Results     string
	RunTest     string
	RunCategory string
	RunAll      string
	Resources   string
	Users       string
	Health      string
}

// DefaultEndpoints returns the marketplace's standard paths
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Results:     "/api/admin/test-results",
		RunTest:     "/api/admin/run-test",
		RunCategory: "/api/admin/run-tests",
		RunAll:      "/api/admin/run-all-tests",
		Resources:   "/api/resources",
		Users:       "/api/users",
		Health:      "/api/health",
	}
}

// Client talks to the marketplace REST API
type Client struct {
	baseURL    string
	apiKey     string
	endpoints  Endpoints
	httpClient *http.Client
	validate   *validator.Validate
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithEndpoints overrides the API paths. Empty fields keep their default.
func WithEndpoints(ep Endpoints) Option {
	return func(c *Client) {
		def := c.endpoints
		pick := func(v, fallback string) string {
			if v == "" {
				return fallback
			}
			return v
		}
		c.endpoints = Endpoints{
			Results:     pick(ep.Results, def.Results),
			RunTest:     pick(ep.RunTest, def.RunTest),
			RunCategory: pick(ep.RunCategory, def.RunCategory),
			RunAll:      pick(ep.RunAll, def.RunAll),
			Resources:   pick(ep.Resources, def.Resources),
			Users:       pick(ep.Users, def.Users),
			Health:      pick(ep.Health, def.Health),
		}
	}
}

// NewClient creates a new marketplace client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		endpoints: DefaultEndpoints(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// testResultPayload is the wire form of a test result
type testResultPayload struct {
	Success     *bool           `json:"success" validate:"required"`
	Message     string          `json:"message"`
	Details     json.RawMessage `json:"details,omitempty"`
	ActionItems []string        `json:"actionItems,omitempty" validate:"omitempty,dive,required"`
}

func (p *testResultPayload) toModel() *models.TestResult {
	return &models.TestResult{
		Success:     *p.Success,
		Message:     p.Message,
		Details:     rawText(p.Details),
		ActionItems: p.ActionItems,
	}
}

// rawText unquotes a JSON string and keeps any other JSON value verbatim,
// so both "9.99" and 9.99 come out as 9.99
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type resourcePayload struct {
	ID              int64           `json:"id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Description     string          `json:"description"`
	Price           json.RawMessage `json:"price"`
	SellerID        int64           `json:"sellerId" validate:"gte=0"`
	DanceStyle      string          `json:"danceStyle"`
	AgeRange        string          `json:"ageRange"`
	DifficultyLevel string          `json:"difficultyLevel"`
	FileType        string          `json:"fileType"`
	IsFeatured      bool            `json:"isFeatured"`
	CreatedAt       *time.Time      `json:"createdAt"`
	DownloadCount   *int            `json:"downloadCount" validate:"omitempty,gte=0"`
	Rating          *float64        `json:"rating"`
}

func (p *resourcePayload) toModel() *models.Resource {
	return &models.Resource{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Price:           rawText(p.Price),
		SellerID:        p.SellerID,
		DanceStyle:      p.DanceStyle,
		AgeRange:        p.AgeRange,
		DifficultyLevel: p.DifficultyLevel,
		FileType:        p.FileType,
		IsFeatured:      p.IsFeatured,
		CreatedAt:       p.CreatedAt,
		DownloadCount:   p.DownloadCount,
		Rating:          p.Rating,
	}
}

type sellerPayload struct {
	ID              int64   `json:"id" validate:"required"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Username        string  `json:"username"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// SavedResults returns the results of the last persisted run
func (c *Client) SavedResults(ctx context.Context) (map[string]*models.TestResult, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.endpoints.Results, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeResultMap(body)
}

// RunTest executes a single readiness test
func (c *Client) RunTest(ctx context.Context, testID string) (*models.TestResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, c.endpoints.RunTest, map[string]string{"testId": testID})
	if err != nil {
		return nil, err
	}

	var p testResultPayload
	if err := c.decode(body, &p); err != nil {
		return nil, err
	}
	if err := c.check(&p); err != nil {
		return nil, err
	}
	return p.toModel(), nil
}

// RunTests executes a batch of readiness tests
func (c *Client) RunTests(ctx context.Context, testIDs []string) (map[string]*models.TestResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, c.endpoints.RunCategory, map[string][]string{"testIds": testIDs})
	if err != nil {
		return nil, err
	}
	return c.decodeResultMap(body)
}

// RunAllTests executes every readiness test
func (c *Client) RunAllTests(ctx context.Context) (map[string]*models.TestResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, c.endpoints.RunAll, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeResultMap(body)
}

// ListResources returns every marketplace resource
func (c *Client) ListResources(ctx context.Context) ([]*models.Resource, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.endpoints.Resources, nil)
	if err != nil {
		return nil, err
	}

	var payload []*resourcePayload
	if err := c.decode(body, &payload); err != nil {
		return nil, err
	}

	resources := make([]*models.Resource, 0, len(payload))
	for i, p := range payload {
		if p == nil {
			return nil, fmt.Errorf("%w: resource %d is null", ErrMalformedPayload, i)
		}
		if err := c.check(p); err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		resources = append(resources, p.toModel())
	}
	return resources, nil
}

// GetUser returns a seller profile
func (c *Client) GetUser(ctx context.Context, id int64) (*models.Seller, error) {
	path := c.endpoints.Users + "/" + url.PathEscape(strconv.FormatInt(id, 10))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var p sellerPayload
	if err := c.decode(body, &p); err != nil {
		return nil, err
	}
	if err := c.check(&p); err != nil {
		return nil, err
	}

	return &models.Seller{
		ID:              p.ID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Username:        p.Username,
		ProfileImageURL: p.ProfileImageURL,
	}, nil
}

// Health checks that the marketplace API answers
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, c.endpoints.Health, nil)
	return err
}

func (c *Client) decodeResultMap(body []byte) (map[string]*models.TestResult, error) {
	var payload map[string]*testResultPayload
	if err := c.decode(body, &payload); err != nil {
		return nil, err
	}

	results := make(map[string]*models.TestResult, len(payload))
	for testID, p := range payload {
		if p == nil {
			return nil, fmt.Errorf("%w: result for %s is null", ErrMalformedPayload, testID)
		}
		if err := c.check(p); err != nil {
			return nil, fmt.Errorf("result for %s: %w", testID, err)
		}
		results[testID] = p.toModel()
	}
	return results, nil
}

func (c *Client) decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// doRequest performs an HTTP request. A non-nil payload is sent as JSON.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}
