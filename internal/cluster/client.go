package cluster

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

	"github.com/ziadkadry99/gynoid/internal/registry"
)

// APIError is a non-2xx answer from the admin API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gynoid api: %d %s", e.Status, e.Message)
}

// Client talks to the admin endpoints mounted by RegisterRoutes.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// WithToken sends token as a bearer token on every request.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func droidPath(id string, rest ...string) string {
	p := "/api/droids/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

// Droids lists the fleet.
func (c *Client) Droids(ctx context.Context) ([]Status, error) {
	var out []Status
	err := c.do(ctx, http.MethodGet, "/api/droids", nil, &out)
	return out, err
}

// StartDroid registers and connects a droid.
func (c *Client) StartDroid(ctx context.Context, name, token string) error {
	return c.do(ctx, http.MethodPost, "/api/droids", startRequest{Name: name, Token: token}, nil)
}

// RemoveDroid disconnects a droid and deletes its definition.
func (c *Client) RemoveDroid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, droidPath(id), nil, nil)
}

// ReloadDroid re-reads a droid's extensions and keys.
func (c *Client) ReloadDroid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, droidPath(id, "reload"), nil, nil)
}

// DisconnectDroid closes a droid's platform connection.
func (c *Client) DisconnectDroid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, droidPath(id, "disconnect"), nil, nil)
}

// ListExtensions returns a droid's installed extensions.
func (c *Client) ListExtensions(ctx context.Context, id string) ([]registry.Extension, error) {
	var out []registry.Extension
	err := c.do(ctx, http.MethodGet, droidPath(id, "extensions"), nil, &out)
	return out, err
}

// InstallExtension installs repository on a droid.
func (c *Client) InstallExtension(ctx context.Context, id, repository string) (Repository, error) {
	var out Repository
	err := c.do(ctx, http.MethodPost, droidPath(id, "extensions"), installRequest{Repository: repository}, &out)
	return out, err
}

// RemoveExtension uninstalls an extension from a droid.
func (c *Client) RemoveExtension(ctx context.Context, id, name string) error {
	return c.do(ctx, http.MethodDelete, droidPath(id, "extensions", name), nil, nil)
}

// ListKeys returns the key names visible to a droid.
func (c *Client) ListKeys(ctx context.Context, id string) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, droidPath(id, "keys"), nil, &out)
	return out, err
}

// AddKey sets a droid key.
func (c *Client) AddKey(ctx context.Context, id, key, value string) error {
	return c.do(ctx, http.MethodPut, droidPath(id, "keys", key), keyRequest{Value: value}, nil)
}

// RemoveKey deletes a droid key.
func (c *Client) RemoveKey(ctx context.Context, id, key string) error {
	return c.do(ctx, http.MethodDelete, droidPath(id, "keys", key), nil, nil)
}
