// rest.go -- Signed REST helpers (GET, POST, DELETE) for an authorized client.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
)

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 4 << 20

// APIError is a non-2xx response from the provider.
// Code, Message, and Request are filled from the provider's JSON error body when present.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Request    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider returned %d", e.StatusCode)
}

// Get issues a signed GET to api with params URL-encoded into the query string and decodes
// the JSON body into out. out may be nil, in which case the body is only checked for validity.
// The returned response's body has been read and closed.
func (c *Client) Get(ctx context.Context, api string, params url.Values, out any) (*http.Response, error) {
	if !c.user.Valid() {
		return nil, ErrNotAuthorized
	}
	target := c.provider.ResourceURL(api)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building GET %s: %w", api, err)
	}
	return c.do(ctx, req, api, out)
}

// Post issues a signed, form-encoded POST to api and decodes the JSON body into out.
func (c *Client) Post(ctx context.Context, api string, form url.Values, out any) (*http.Response, error) {
	if !c.user.Valid() {
		return nil, ErrNotAuthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.ResourceURL(api), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building POST %s: %w", api, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, req, api, out)
}

// Delete issues a signed DELETE to api and decodes the JSON body into out.
func (c *Client) Delete(ctx context.Context, api string, out any) (*http.Response, error) {
	if !c.user.Valid() {
		return nil, ErrNotAuthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.provider.ResourceURL(api), nil)
	if err != nil {
		return nil, fmt.Errorf("building DELETE %s: %w", api, err)
	}
	return c.do(ctx, req, api, out)
}

// do signs and sends req, then classifies and decodes the response.
func (c *Client) do(ctx context.Context, req *http.Request, api string, out any) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")

	// oauth1 reads the base transport from the context.
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, c.httpClient)
	}
	hc := c.config.Client(ctx, oauth1.NewToken(c.user.Token, c.user.Secret))
	if c.httpClient != nil {
		hc.Timeout = c.httpClient.Timeout
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, api, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, fmt.Errorf("reading %s response: %w", api, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, newAPIError(resp.StatusCode, body)
	}

	if err := decodeJSON(body, out); err != nil {
		return resp, fmt.Errorf("decoding %s response: %w", api, err)
	}
	return resp, nil
}

// decodeJSON unmarshals body into out, or just validates it when out is nil.
// Any failure is reported as ErrMalformedResponse.
func decodeJSON(body []byte, out any) error {
	if out == nil {
		if !json.Valid(body) {
			return ErrMalformedResponse
		}
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// newAPIError builds an APIError, picking up the provider's error fields if the body is JSON.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}
	var payload struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
		Request   string `json:"request"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Error
		apiErr.Code = payload.ErrorCode
		apiErr.Request = payload.Request
	}
	return apiErr
}
