// Package content sanitises user-written text before it is stored.
package content

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Cleaner rewrites free text.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// WordListCleaner masks whole-word matches of a blocked word list, keeping the
// first letter of each match.
type WordListCleaner struct {
	pattern *regexp.Regexp
}

// NewWordListCleaner builds a cleaner for words. An empty list yields a
// cleaner that returns text unchanged.
func NewWordListCleaner(words []string) *WordListCleaner {
	var quoted []string
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	if len(quoted) == 0 {
		return &WordListCleaner{}
	}
	// Longest first so overlapping words mask fully.
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return &WordListCleaner{pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)}
}

// Clean masks every blocked word in text.
func (c *WordListCleaner) Clean(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c == nil || c.pattern == nil {
		return text, nil
	}
	return c.pattern.ReplaceAllStringFunc(text, mask), nil
}

func mask(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	return string(first) + strings.Repeat("*", utf8.RuneCountInString(word[size:]))
}

type cacheEntry struct {
	cleaned string
	expires time.Time
}

// CachingCleaner wraps another Cleaner with a TTL-based in-memory cache.
type CachingCleaner struct {
	base Cleaner
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingCleaner returns a Cleaner that caches results for ttl.
func NewCachingCleaner(base Cleaner, ttl time.Duration) *CachingCleaner {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingCleaner{
		base:  base,
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]cacheEntry),
	}
}

// Clean returns the cached result when fresh, otherwise it delegates and
// stores the result. Failures are not cached.
func (c *CachingCleaner) Clean(ctx context.Context, text string) (string, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.items[text]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.cleaned, nil
	}

	cleaned, err := c.base.Clean(ctx, text)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.items[text] = cacheEntry{cleaned: cleaned, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return cleaned, nil
}

// Prune drops expired entries and reports how many were removed.
func (c *CachingCleaner) Prune() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, v := range c.items {
		if !now.Before(v.expires) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}
