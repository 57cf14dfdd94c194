// Package cache provides the request fingerprint and an in-memory TTL cache
// for assembled match responses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"jobmatch/pkg/model"
)

// Fingerprint derives a stable cache key from everything that affects the
// response: resume identity, pagination, filters, both blacklist sets, and
// the flags that shape the payload (rerank, explain, total count). Keyword
// order is significant; blacklist order is not, so both sets are sorted
// before hashing. Every component is length-prefixed so free-form strings
// cannot collide across field boundaries.
func Fingerprint(req *model.MatchRequest, applied, cooled []string) string {
	var b strings.Builder
	field := func(name string, parts ...string) {
		fmt.Fprintf(&b, "%s#%d", name, len(parts))
		for _, p := range parts {
			fmt.Fprintf(&b, "#%d:%s", len(p), p)
		}
	}

	field("resume", req.Resume.ID)
	field("page", strconv.Itoa(req.Offset), strconv.Itoa(req.Limit))

	if loc := req.Location; loc != nil {
		parts := []string{loc.Country, loc.City}
		if loc.Latitude != nil && loc.Longitude != nil {
			parts = append(parts,
				strconv.FormatFloat(*loc.Latitude, 'f', 6, 64),
				strconv.FormatFloat(*loc.Longitude, 'f', 6, 64),
				strconv.FormatFloat(loc.Radius(), 'f', 1, 64))
		}
		field("loc", parts...)
	} else {
		field("loc")
	}

	field("kw", req.Keywords...)

	levels := make([]string, 0, len(req.Experience))
	for _, e := range req.Experience {
		levels = append(levels, string(e))
	}
	sort.Strings(levels)
	field("exp", levels...)

	field("applied", sortedCopy(applied)...)
	field("cooled", sortedCopy(cooled)...)

	field("flags",
		strconv.FormatBool(req.EnableRerank),
		strconv.FormatBool(req.EnableExplain),
		strconv.FormatBool(req.IncludeTotalCount))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

type entry struct {
	resp       *model.MatchResponse
	insertedAt time.Time
}

// Cache is a TTL-bounded in-memory response cache. When an insert pushes the
// size past the soft cap, the oldest half by insertion time is evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	softCap int
	log     *zap.Logger

	now func() time.Time // overridable in tests
}

// New builds a Cache with the given TTL and soft cap.
func New(ttl time.Duration, softCap int, log *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		softCap: softCap,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the cached response for the key, or nil on a miss or an
// expired entry.
func (c *Cache) Get(key string) *model.MatchResponse {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}
	return e.resp
}

// Set stores a response under the key, evicting if over the soft cap.
func (c *Cache) Set(key string, resp *model.MatchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{resp: resp, insertedAt: c.now()}
	if len(c.entries) > c.softCap {
		c.evictOldestHalf()
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldestHalf drops the older half of the entries. Caller holds the
// write lock.
func (c *Cache) evictOldestHalf() {
	type keyed struct {
		key string
		at  time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, at: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	evicted := len(all) / 2
	for _, k := range all[:evicted] {
		delete(c.entries, k.key)
	}
	c.log.Debug("cache soft cap reached, evicted oldest entries",
		zap.Int("evicted", evicted),
		zap.Int("remaining", len(c.entries)))
}
