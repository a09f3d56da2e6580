// Package apiclient is the REST client the rolesync CLI uses to manage
// mappings, trigger reconciliations and sweeps, and read sync history from
// a running bot.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single API call. Reconcile blocks until the
// subject is done, which includes the platform's rate limiting.
const DefaultTimeout = 60 * time.Second

// userAgent identifies CLI traffic in the bot's request log.
const userAgent = "rolesync-cli"

// maxErrorDetail caps the body quoted in an APIError built from a
// non-problem response, such as a proxy's HTML page.
const maxErrorDetail = 512

// Client talks to the rolesync API of one bot.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client for the API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithToken returns a copy of the client that sends token as a bearer token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		token:      token,
	}
}

func (c *Client) SetToken(token string) {
	c.token = token
}

// do sends one request. Responses of 400 and above come back as *APIError.
func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/problem+json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rolesync API unreachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// decodeError turns an error response into an APIError. Problem bodies from
// the bot are used as is; anything else (the router's plain 404, a proxy
// page) is quoted as the detail under the status text.
func decodeError(resp *http.Response, body []byte) *APIError {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/problem+json" || mediaType == "application/json" {
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Title != "" {
			apiErr.StatusCode = resp.StatusCode
			return &apiErr
		}
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail] + "..."
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Title:      http.StatusText(resp.StatusCode),
		Detail:     detail,
	}
}

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body, result any) error {
	return c.do(http.MethodPut, path, body, result)
}

func (c *Client) patch(path string, body, result any) error {
	return c.do(http.MethodPatch, path, body, result)
}

func (c *Client) delete(path string, result any) error {
	return c.do(http.MethodDelete, path, nil, result)
}
