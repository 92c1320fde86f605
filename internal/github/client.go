// Package github fetches milestone and issue data used as external evidence.
// Responses are cached on disk so repeated runs against the same milestone
// do not spend API quota.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sentinel/internal/logging"
)

// Milestone is the subset of the milestones endpoint sentinel consumes.
type Milestone struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	OpenIssues  int    `json:"open_issues"`
}

// Issue is the subset of the issues endpoint sentinel consumes.
type Issue struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	State  string  `json:"state"`
	Labels []Label `json:"labels"`
}

// Label is an issue label.
type Label struct {
	Name string `json:"name"`
}

// Client is a minimal GitHub REST client. Unauthenticated use works but
// rate-limits quickly; set a token for real runs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client. baseURL defaults to the public API when empty.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// Milestones lists open milestones for owner/repo.
func (c *Client) Milestones(ctx context.Context, owner, repo string) ([]Milestone, error) {
	var out []Milestone
	path := fmt.Sprintf("/repos/%s/%s/milestones", owner, repo)
	if err := c.getPaged(ctx, path, url.Values{"state": {"open"}}, func(page []byte) (int, error) {
		var ms []Milestone
		if err := json.Unmarshal(page, &ms); err != nil {
			return 0, err
		}
		out = append(out, ms...)
		return len(ms), nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// MilestoneIssues lists all issues (open and closed) on one milestone.
func (c *Client) MilestoneIssues(ctx context.Context, owner, repo string, milestone int) ([]Issue, error) {
	var out []Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	q := url.Values{
		"milestone": {strconv.Itoa(milestone)},
		"state":     {"all"},
	}
	if err := c.getPaged(ctx, path, q, func(page []byte) (int, error) {
		var is []Issue
		if err := json.Unmarshal(page, &is); err != nil {
			return 0, err
		}
		out = append(out, is...)
		return len(is), nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

const perPage = 100

// getPaged walks the endpoint page by page until a short page comes back.
// decode reports how many records the page held.
func (c *Client) getPaged(ctx context.Context, path string, q url.Values, decode func([]byte) (int, error)) error {
	for page := 1; ; page++ {
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))

		body, err := c.get(ctx, path+"?"+q.Encode())
		if err != nil {
			return err
		}
		n, err := decode(body)
		if err != nil {
			return fmt.Errorf("decode %s page %d: %w", path, page, err)
		}
		if n < perPage {
			return nil
		}
	}
}

// get performs one GET. A 403 with a Retry-After header is retried once
// after the indicated delay; other non-200 statuses fail.
func (c *Client) get(ctx context.Context, pathAndQuery string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("github request %s: %w", pathAndQuery, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read github response: %w", readErr)
		}

		if resp.StatusCode == http.StatusOK {
			if remaining := resp.Header.Get("X-Ratelimit-Remaining"); remaining == "0" {
				logging.GitHub("rate limit exhausted after %s", pathAndQuery)
			}
			return body, nil
		}

		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			if delay := retryAfter(resp); delay > 0 {
				logging.GitHub("403 on %s, retrying after %s", pathAndQuery, delay)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}

		return nil, fmt.Errorf("github %s: status %d: %s", pathAndQuery, resp.StatusCode, truncateBody(body))
	}
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
