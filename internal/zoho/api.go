package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"filing-backend/internal/shared/util"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx answer from a Zoho API.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: zoho status %d (%s): %s", e.Op, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s: zoho status %d: %s", e.Op, e.Status, msg)
}

// HTTPStatus lets retry classification see the upstream status.
func (e *APIError) HTTPStatus() int { return e.Status }

// API sends paced requests to one Zoho service base URL.
type API struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// NewAPI wraps client for baseURL. A nil limiter disables pacing.
func NewAPI(baseURL string, client *http.Client, limiter *rate.Limiter) *API {
	if client == nil {
		client = http.DefaultClient
	}
	return &API{
		base:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
		limiter: limiter,
	}
}

// NewLimiter returns a token bucket allowing perSec requests with burst.
func NewLimiter(perSec float64, burst int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// URL joins path and query onto the base URL.
func (a *API) URL(path string, query url.Values) string {
	u := a.base + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do waits for the limiter, sends req and turns non-2xx answers into *APIError.
// The caller closes the returned body.
func (a *API) Do(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}
	resp, err := a.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(op, resp)
	}
	return resp, nil
}

// DoJSON sends an optional JSON body and decodes a JSON answer into out.
func (a *API) DoJSON(ctx context.Context, op, method, path string, query url.Values, contentType string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.URL(path, query), reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := a.Do(ctx, op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Both WorkDrive ({"errors":[{"id","title"}]}) and CRM ({"code","message"})
// error shapes are understood.
func decodeAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if len(payload.Errors) > 0 {
			if apiErr.Code == "" {
				apiErr.Code = payload.Errors[0].ID
			}
			if apiErr.Message == "" {
				apiErr.Message = payload.Errors[0].Title
			}
		}
		return apiErr
	}
	apiErr.Message = util.Truncate(strings.TrimSpace(string(raw)), 200)
	return apiErr
}
