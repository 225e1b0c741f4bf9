// Package api provides an HTTP client for the Zoho Inventory API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stockbridge/zinv/internal/auth"
	"github.com/stockbridge/zinv/internal/output"
	"github.com/stockbridge/zinv/internal/version"
)

// TokenSource supplies access tokens. *auth.Manager implements it.
type TokenSource interface {
	EnsureValid(ctx context.Context) (auth.Token, error)
	Refresh(ctx context.Context) (auth.Token, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the versioned API root, e.g. https://www.zohoapis.eu/inventory/v1.
	BaseURL        string
	OrganizationID string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client executes authenticated requests, retrying once after a 401.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    string
	orgID      string
	log        *zap.Logger
}

// Request describes one API call.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     any
	// Header values override the auth headers.
	Header http.Header
	// Unscoped omits organization_id.
	Unscoped bool
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// NewClient creates a new API client.
func NewClient(cfg Config, tokens TokenSource) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.OrganizationID == "" {
		log.Warn("organization id not set; requests will not be scoped to an organization")
	}
	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		orgID:      cfg.OrganizationID,
		log:        log,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body})
}

// Do executes req. A 401 triggers one forced token refresh and one retry;
// a second 401 or a failed refresh is an auth error. Other statuses >= 400
// become api errors carrying the body. Transport failures are not retried.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	tok, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, authError("Authentication failed", err)
	}

	var body []byte
	if req.Body != nil {
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
	}

	target := c.buildURL(req.Endpoint, req.Query, !req.Unscoped)

	resp, err := c.singleRequest(ctx, req, target, body, tok, 1)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Info("unauthorized; refreshing token and retrying once",
			zap.String("method", req.Method), zap.String("endpoint", req.Endpoint))
		tok, err = c.tokens.Refresh(ctx)
		if err != nil {
			return nil, authError("Authentication failed", err)
		}
		resp, err = c.singleRequest(ctx, req, target, body, tok, 2)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, output.ErrAuth("Authentication failed after token refresh")
		}
	}

	if resp.StatusCode >= 400 {
		return nil, apiError(resp)
	}
	return resp, nil
}

func (c *Client) singleRequest(ctx context.Context, req Request, target string, body []byte, tok auth.Token, attempt int) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	httpReq.Header = tok.Header()
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	c.log.Debug("request",
		zap.String("method", req.Method),
		zap.String("url", target),
		zap.Int("attempt", attempt))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.ErrNetwork(fmt.Errorf("failed to read response: %w", err))
	}

	c.log.Debug("response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(respBody)))

	return &Response{
		Data:       respBody,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}, nil
}

// buildURL joins the endpoint onto the base URL, then appends the caller's
// query and organization_id with ? or & as needed.
func (c *Client) buildURL(endpoint string, query url.Values, scoped bool) string {
	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u = appendQuery(u, query.Encode())
	}
	if scoped && c.orgID != "" {
		u = appendQuery(u, "organization_id="+url.QueryEscape(c.orgID))
	}
	return u
}

func appendQuery(u, q string) string {
	if strings.Contains(u, "?") {
		return u + "&" + q
	}
	return u + "?" + q
}

// OrganizationID returns the configured organization id, if any.
func (c *Client) OrganizationID() string {
	return c.orgID
}

func apiError(resp *Response) *output.Error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	msg := fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode)
	if json.Unmarshal(resp.Data, &body) == nil && body.Message != "" {
		msg = body.Message
	}
	return output.ErrAPIBody(resp.StatusCode, msg, string(resp.Data))
}

func authError(msg string, err error) error {
	if output.HasCode(err, output.CodeAuth) {
		return err
	}
	return output.ErrAuthCause(msg, err)
}
