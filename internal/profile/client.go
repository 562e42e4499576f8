// Package profile provides a client for the external profile service that
// receives a copy of every successful registration.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Profile is the payload replicated once per successful registration. The
// account record remains the source of truth; replication failures leave an
// accepted eventual-consistency gap.
type Profile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Age         int       `json:"age"`
}

// Creator creates a profile in the external store.
type Creator interface {
	CreateProfile(ctx context.Context, p *Profile) error
}

// Client posts profiles to the profile service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the given base URL (e.g. https://profiles.internal).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateProfile sends the profile to the service. Returns an error if the
// request fails or the service returns non-2xx. Not retried here: the endpoint
// is not assumed idempotent.
func (c *Client) CreateProfile(ctx context.Context, p *Profile) error {
	if c.baseURL == "" {
		return fmt.Errorf("profile: base URL is empty")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	url := c.baseURL + "/api/SignUp/CreateProfile"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("profile: create returned %s", resp.Status)
	}
	return nil
}
