// Package blacklist fetches the per-user applied set and the global cooling
// set from Redis and merges them into the exclusion list.
package blacklist

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmatch/pkg/config"
	"jobmatch/pkg/model"
)

// cooledKey is the global set of job IDs inside their cooling window.
const cooledKey = "cooled"

// appliedKey returns the per-user set of already-applied job IDs.
func appliedKey(userID string) string {
	return "applied:" + userID
}

// Store reads blacklist sets from the secondary store.
type Store struct {
	client *redis.Client
	log    *zap.Logger
}

// Connect builds a Redis client from config and verifies connectivity.
func Connect(cfg *config.RedisConfig, log *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", model.ErrTransientDB, err)
	}
	return &Store{client: client, log: log}, nil
}

// New wraps an existing client. Used by tests.
func New(client *redis.Client, log *zap.Logger) *Store {
	return &Store{client: client, log: log}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Fetch loads the applied and cooled sets concurrently. An empty user ID
// yields an empty applied set without a round trip. Fetch failures surface
// as transient errors: excluding blacklisted jobs is a correctness
// requirement, so the caller must not proceed on a partial read.
func (s *Store) Fetch(ctx context.Context, userID string) (applied, cooled []string, err error) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if userID == "" {
			applied = []string{}
			return nil
		}
		members, err := s.client.SMembers(ctx, appliedKey(userID)).Result()
		if err != nil {
			return fmt.Errorf("%w: fetch applied set: %v", model.ErrTransientDB, err)
		}
		applied = members
		return nil
	})
	g.Go(func() error {
		members, err := s.client.SMembers(ctx, cooledKey).Result()
		if err != nil {
			return fmt.Errorf("%w: fetch cooled set: %v", model.ErrTransientDB, err)
		}
		cooled = members
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	applied = s.validIDs("applied", applied)
	cooled = s.validIDs("cooled", cooled)
	sort.Strings(applied)
	sort.Strings(cooled)
	return applied, cooled, nil
}

// validIDs drops set members that are not UUIDs. A malformed member would
// otherwise fail the uuid[] cast and take the whole query down with it.
func (s *Store) validIDs(set string, ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			s.log.Warn("ignoring malformed job id in blacklist set",
				zap.String("set", set),
				zap.String("id", id))
			continue
		}
		out = append(out, id)
	}
	return out
}

// Union merges both sets into a sorted, deduplicated exclusion list.
func Union(applied, cooled []string) []string {
	seen := make(map[string]struct{}, len(applied)+len(cooled))
	out := make([]string, 0, len(applied)+len(cooled))
	for _, set := range [][]string{applied, cooled} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
