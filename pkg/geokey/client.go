// Package geokey is a client for the REST API of the host crowdsourcing
// platform that Air Quality projects are attached to.
package geokey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/mappingforchange/geokey-airquality/internal/resilience"
)

// ErrNotFound is returned when the host answers 404.
var ErrNotFound = eris.New("geokey: not found")

// APIError is any other non-2xx host answer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("geokey: status %d: %s", e.StatusCode, e.Body)
}

// Client defines the host operations Air Quality depends on.
type Client interface {
	// GetProject returns a host project with its categories and fields.
	GetProject(ctx context.Context, id int64) (*Project, error)
	// ListProjects returns host projects, only active ones when active is true.
	ListProjects(ctx context.Context, active bool) ([]Project, error)
	// LockProject prevents further structural edits of a host project.
	LockProject(ctx context.Context, id int64) error
	// CanContribute reports whether the user may contribute to the project.
	CanContribute(ctx context.Context, projectID, userID int64) (bool, error)
	// GetCategory returns a category of a project.
	GetCategory(ctx context.Context, projectID, categoryID int64) (*Category, error)
	// GetField returns a single field.
	GetField(ctx context.Context, id int64) (*Field, error)
	// GetUser returns a user.
	GetUser(ctx context.Context, id int64) (*User, error)
	// CreateContribution submits a contribution on behalf of a user.
	CreateContribution(ctx context.Context, projectID, userID int64, c Contribution) (*Created, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the host root URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second to the host.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPolicy sets the retry and circuit breaker policy.
func WithPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.policy = p
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	policy  resilience.Policy
}

// NewClient creates a host client authenticating with a service token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "http://localhost:8000",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(20, 20),
		policy:  resilience.Policy{Retry: resilience.DefaultRetryConfig()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	if err := c.do(ctx, "get_project", http.MethodGet, fmt.Sprintf("/api/projects/%d/", id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *httpClient) ListProjects(ctx context.Context, active bool) ([]Project, error) {
	path := "/api/projects/"
	if active {
		path += "?status=" + StatusActive
	}
	var projects []Project
	if err := c.do(ctx, "list_projects", http.MethodGet, path, nil, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *httpClient) LockProject(ctx context.Context, id int64) error {
	body := map[string]bool{"islocked": true}
	return c.do(ctx, "lock_project", http.MethodPatch, fmt.Sprintf("/api/projects/%d/", id), nil, body, nil)
}

func (c *httpClient) CanContribute(ctx context.Context, projectID, userID int64) (bool, error) {
	var perm struct {
		CanContribute bool `json:"can_contribute"`
	}
	path := fmt.Sprintf("/api/projects/%d/permissions/%d/", projectID, userID)
	if err := c.do(ctx, "can_contribute", http.MethodGet, path, nil, nil, &perm); err != nil {
		return false, err
	}
	return perm.CanContribute, nil
}

func (c *httpClient) GetCategory(ctx context.Context, projectID, categoryID int64) (*Category, error) {
	var cat Category
	path := fmt.Sprintf("/api/projects/%d/categories/%d/", projectID, categoryID)
	if err := c.do(ctx, "get_category", http.MethodGet, path, nil, nil, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *httpClient) GetField(ctx context.Context, id int64) (*Field, error) {
	var f Field
	if err := c.do(ctx, "get_field", http.MethodGet, fmt.Sprintf("/api/fields/%d/", id), nil, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *httpClient) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := c.do(ctx, "get_user", http.MethodGet, fmt.Sprintf("/api/users/%d/", id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *httpClient) CreateContribution(ctx context.Context, projectID, userID int64, contrib Contribution) (*Created, error) {
	var created Created
	path := fmt.Sprintf("/api/projects/%d/contributions/", projectID)
	header := http.Header{"X-On-Behalf-Of": []string{strconv.FormatInt(userID, 10)}}
	if err := c.doWith(ctx, c.singleShot(), "create_contribution", http.MethodPost, path, header, contrib, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do sends one logical request under the retry policy and decodes a JSON
// answer into out when out is not nil.
func (c *httpClient) do(ctx context.Context, op, method, path string, header http.Header, in, out any) error {
	return c.doWith(ctx, c.policy, op, method, path, header, in, out)
}

// singleShot is the client policy without retries. Requests that create
// host objects use it: a lost reply must not turn into a second object.
func (c *httpClient) singleShot() resilience.Policy {
	p := c.policy
	p.Retry.Attempts = 1
	return p
}

func (c *httpClient) doWith(ctx context.Context, policy resilience.Policy, op, method, path string, header http.Header, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return eris.Wrapf(err, "geokey: marshal %s", op)
		}
	}

	body, err := resilience.Call(ctx, policy, op, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, method, path, header, payload)
	})
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "geokey: decode %s", op)
	}
	return nil
}

func (c *httpClient) send(ctx context.Context, method, path string, header http.Header, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geokey: rate limit wait")
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, eris.Wrap(err, "geokey: create request")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "geokey: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geokey: read response body")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
	}
	return nil, apiErr
}
