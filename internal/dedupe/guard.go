// Package dedupe drops webhook events the platform delivers more than once.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultMaxEntries = 10000
)

// Guard records keys. Seen reports true when key was already recorded
// within the TTL, and records it otherwise.
type Guard interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
}

// EventKey identifies a webhook event. The platform's event id is preferred;
// the reply token is unique per event too. Empty means the event cannot be
// deduplicated.
func EventKey(webhookEventID, replyToken string) string {
	if id := strings.TrimSpace(webhookEventID); id != "" {
		return "event:" + id
	}
	if token := strings.TrimSpace(replyToken); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:])
	}
	return ""
}

// MemoryGuard is a process-local guard bounded by MaxEntries.
type MemoryGuard struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryGuard(config Config) *MemoryGuard {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MemoryGuard{
		entries:    make(map[string]time.Time),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		now:        config.Now,
	}
}

func (g *MemoryGuard) Seen(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	now := g.now().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()

	if expiresAt, exists := g.entries[key]; exists {
		if now.Before(expiresAt) {
			return true, nil
		}
		delete(g.entries, key)
	}

	if len(g.entries) >= g.maxEntries {
		g.pruneExpired(now)
	}
	if len(g.entries) >= g.maxEntries {
		g.evictOldest()
	}
	g.entries[key] = now.Add(g.ttl)
	return false, nil
}

func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *MemoryGuard) pruneExpired(now time.Time) {
	for key, expiresAt := range g.entries {
		if !now.Before(expiresAt) {
			delete(g.entries, key)
		}
	}
}

func (g *MemoryGuard) evictOldest() {
	if len(g.entries) == 0 {
		return
	}

	type pair struct {
		key       string
		expiresAt time.Time
	}
	pairs := make([]pair, 0, len(g.entries))
	for key, expiresAt := range g.entries {
		pairs = append(pairs, pair{key: key, expiresAt: expiresAt})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].expiresAt.Before(pairs[j].expiresAt)
	})
	delete(g.entries, pairs[0].key)
}
