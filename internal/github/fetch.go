package github

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sentinel/internal/logging"
	"sentinel/internal/trace"
)

// Bundle is everything sentinel knows about one milestone: the milestone
// itself plus all of its issues.
type Bundle struct {
	Repo      string    `json:"repo"`
	Milestone Milestone `json:"milestone"`
	Issues    []Issue   `json:"issues"`
}

// Fetcher assembles bundles, consulting the cache first and recording each
// API interaction on the trace so fetches are visible to supervision.
type Fetcher struct {
	client  *Client
	cache   *FileCache
	emitter *trace.Emitter
}

// NewFetcher creates a fetcher. cache and emitter may be nil to disable
// caching or trace recording.
func NewFetcher(client *Client, cache *FileCache, emitter *trace.Emitter) *Fetcher {
	return &Fetcher{client: client, cache: cache, emitter: emitter}
}

// FetchBundle fetches the milestone and its issues, concurrently on a cache
// miss. repo is "owner/name".
func (f *Fetcher) FetchBundle(ctx context.Context, repo string, milestone int) (*Bundle, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{Repo: repo}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := f.milestone(gctx, owner, name, repo, milestone)
		if err != nil {
			return err
		}
		bundle.Milestone = ms
		return nil
	})
	g.Go(func() error {
		issues, err := f.issues(gctx, owner, name, repo, milestone)
		if err != nil {
			return err
		}
		bundle.Issues = issues
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.GitHub("bundle for %s milestone %d: %d issues", repo, milestone, len(bundle.Issues))
	return bundle, nil
}

func (f *Fetcher) milestone(ctx context.Context, owner, name, repo string, number int) (Milestone, error) {
	const endpoint = "milestones"

	var cached Milestone
	if f.cache != nil && f.cache.Get(repo, number, endpoint, &cached) {
		return cached, nil
	}

	f.emitToolCall("github_get_milestone", map[string]any{"repo": repo, "milestone": number})
	milestones, err := f.client.Milestones(ctx, owner, name)
	if err != nil {
		return Milestone{}, fmt.Errorf("fetch milestones for %s: %w", repo, err)
	}
	for _, m := range milestones {
		if m.Number == number {
			f.emitObservation(map[string]any{"title": m.Title, "body": m.Description})
			if f.cache != nil {
				f.cache.Put(repo, number, endpoint, m)
			}
			return m, nil
		}
	}
	return Milestone{}, fmt.Errorf("milestone %d not found in %s", number, repo)
}

func (f *Fetcher) issues(ctx context.Context, owner, name, repo string, milestone int) ([]Issue, error) {
	const endpoint = "issues"

	var cached []Issue
	if f.cache != nil && f.cache.Get(repo, milestone, endpoint, &cached) {
		return cached, nil
	}

	f.emitToolCall("github_get_issues", map[string]any{"repo": repo, "milestone": milestone})
	issues, err := f.client.MilestoneIssues(ctx, owner, name, milestone)
	if err != nil {
		return nil, fmt.Errorf("fetch issues for %s milestone %d: %w", repo, milestone, err)
	}
	for _, is := range issues {
		f.emitObservation(map[string]any{"title": is.Title, "body": is.Body})
	}
	if f.cache != nil {
		f.cache.Put(repo, milestone, endpoint, issues)
	}
	return issues, nil
}

func (f *Fetcher) emitToolCall(tool string, params map[string]any) {
	if f.emitter == nil {
		return
	}
	if err := f.emitter.EmitToolCall(tool, params, ""); err != nil {
		logging.GitHub("record tool call %s: %v", tool, err)
	}
}

func (f *Fetcher) emitObservation(result map[string]any) {
	if f.emitter == nil {
		return
	}
	if err := f.emitter.EmitObservation(result, ""); err != nil {
		logging.GitHub("record observation: %v", err)
	}
}

func splitRepo(repo string) (owner, name string, err error) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			owner, name = repo[:i], repo[i+1:]
			if owner == "" || name == "" {
				break
			}
			return owner, name, nil
		}
	}
	return "", "", fmt.Errorf("repo %q must be owner/name", repo)
}
