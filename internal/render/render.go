// Package render talks to the Render hosting API to read and change the bot's
// environment variables and to trigger redeploys.
package render

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// ErrNotConfigured is returned when no API key or service id is set.
var ErrNotConfigured = errors.New("render: api key and service id are required")

type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type envVarEntry struct {
	EnvVar EnvVar `json:"envVar"`
	Cursor string `json:"cursor,omitempty"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("render: http %d", e.Status)
	}
	return fmt.Sprintf("render: http %d: %s", e.Status, e.Message)
}

type Client struct {
	http      *resty.Client
	serviceID string
	hasKey    bool
}

func New(baseURL, apiKey, serviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if apiKey != "" {
		hc.SetAuthToken(apiKey)
	}
	return &Client{http: hc, serviceID: strings.TrimSpace(serviceID), hasKey: apiKey != ""}
}

func (c *Client) Configured() bool {
	return c != nil && c.serviceID != "" && c.hasKey
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	return c.http.R().
		SetContext(ctx).
		SetPathParam("service", c.serviceID).
		SetError(&APIError{}), nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrapf(err, "render: %s", op)
	}
	if resp.IsError() {
		apiErr, _ := resp.Error().(*APIError)
		if apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

// EnvVars lists the service's variables in API order.
func (c *Client) EnvVars(ctx context.Context) ([]EnvVar, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var entries []envVarEntry
	resp, err := req.SetResult(&entries).Get("/services/{service}/env-vars")
	if err := check(resp, err, "list env vars"); err != nil {
		return nil, err
	}
	out := make([]EnvVar, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.EnvVar)
	}
	return out, nil
}

// Lookup returns the value of key, if set.
func (c *Client) Lookup(ctx context.Context, key string) (string, bool, error) {
	vars, err := c.EnvVars(ctx)
	if err != nil {
		return "", false, err
	}
	for _, v := range vars {
		if v.Key == key {
			return v.Value, true, nil
		}
	}
	return "", false, nil
}

func (c *Client) replace(ctx context.Context, vars []EnvVar) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	if vars == nil {
		vars = []EnvVar{}
	}
	resp, err := req.SetBody(vars).Put("/services/{service}/env-vars")
	return check(resp, err, "replace env vars")
}

// SetVar creates or updates key. The API replaces the whole set, so the current
// list is read first.
func (c *Client) SetVar(ctx context.Context, key, value string) (created bool, err error) {
	vars, err := c.EnvVars(ctx)
	if err != nil {
		return false, err
	}
	created = true
	for i := range vars {
		if vars[i].Key == key {
			vars[i].Value = value
			created = false
			break
		}
	}
	if created {
		vars = append(vars, EnvVar{Key: key, Value: value})
	}
	return created, c.replace(ctx, vars)
}

// DeleteVar removes key and reports whether it existed.
func (c *Client) DeleteVar(ctx context.Context, key string) (bool, error) {
	vars, err := c.EnvVars(ctx)
	if err != nil {
		return false, err
	}
	kept := vars[:0]
	for _, v := range vars {
		if v.Key != key {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(vars) {
		return false, nil
	}
	return true, c.replace(ctx, kept)
}

type deploy struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Redeploy starts a new deploy and returns its id.
func (c *Client) Redeploy(ctx context.Context) (string, error) {
	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}
	var d deploy
	resp, err := req.
		SetBody(map[string]string{"clearCache": "do_not_clear"}).
		SetResult(&d).
		Post("/services/{service}/deploys")
	if err := check(resp, err, "redeploy"); err != nil {
		return "", err
	}
	return d.ID, nil
}
