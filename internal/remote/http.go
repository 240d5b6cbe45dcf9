package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// HTTPClient reads snapshot feeds shaped as
//
//	GET {base}/{kind}?project=..&repository=..&branch=..&pipeline=..&team=..&id=..
//
// answering with a JSON array of Entity objects.
type HTTPClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewHTTPClient creates a client for the feed rooted at baseURL.
func NewHTTPClient(baseURL, token string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{base: u, token: token, http: &http.Client{Timeout: timeout}}, nil
}

// Fetch implements Client.
func (c *HTTPClient) Fetch(ctx context.Context, kind string, q Query) ([]Entity, error) {
	u := c.base.JoinPath(kind)
	u.RawQuery = encodeQuery(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &FetchError{
			Kind: kind,
			Err:  fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var entities []Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, &FetchError{Kind: kind, Err: fmt.Errorf("decode response: %w", err)}
	}
	return entities, nil
}

func encodeQuery(q Query) url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("project", q.Project)
	set("repository", q.Repository)
	set("branch", q.Branch)
	set("pipeline", q.Pipeline)
	for _, t := range q.Teams {
		v.Add("team", t)
	}
	for _, id := range q.IDs {
		v.Add("id", id)
	}
	return v
}
