package github

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sentinel/internal/logging"
)

// FileCache stores fetched API payloads as JSON files keyed by repo,
// milestone, and endpoint. Cached data never expires; delete the cache
// directory to force a refetch.
type FileCache struct {
	dir string
}

// NewFileCache creates a cache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// key maps (repo, milestone, endpoint) to a stable file path. The endpoint
// is hashed so query strings cannot break out of the cache directory.
func (c *FileCache) key(repo string, milestone int, endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	name := fmt.Sprintf("%s_%s.json", sanitize(endpoint), hex.EncodeToString(sum[:4]))
	return filepath.Join(c.dir, strings.ReplaceAll(repo, "/", "_"), fmt.Sprintf("milestone_%d", milestone), name)
}

// Get unmarshals a cached payload into v. The boolean reports a hit.
func (c *FileCache) Get(repo string, milestone int, endpoint string, v any) bool {
	path := c.key(repo, milestone, endpoint)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logging.GitHub("cache entry %s corrupt, ignoring: %v", path, err)
		return false
	}
	return true
}

// Put writes a payload to the cache. Failures are logged and swallowed; a
// broken cache degrades to refetching, never to a failed run.
func (c *FileCache) Put(repo string, milestone int, endpoint string, v any) {
	path := c.key(repo, milestone, endpoint)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logging.GitHub("cache marshal %s: %v", endpoint, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logging.GitHub("cache mkdir for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.GitHub("cache write %s: %v", path, err)
	}
}

// sanitize keeps a short readable prefix of the endpoint in the file name.
func sanitize(endpoint string) string {
	s := strings.Trim(endpoint, "/")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
