// Package redis provides a dedup.Store shared by every process connected to
// the same Redis instance.
package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "incident-alerts"
	scanCount     = 200
)

// DedupStore keeps source keys and lower-cased addresses in two Redis sets.
type DedupStore struct {
	client       goredis.UniversalClient
	keysKey      string
	addressesKey string
}

// NewDedupStore creates a store whose sets are namespaced under prefix.
func NewDedupStore(client goredis.UniversalClient, prefix string) *DedupStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &DedupStore{
		client:       client,
		keysKey:      prefix + ":dedup:keys",
		addressesKey: prefix + ":dedup:addresses",
	}
}

func (s *DedupStore) HasKey(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.keysKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

// HasAddressContaining walks the address set with SSCAN MATCH. The scan is
// linear in the number of stored addresses.
func (s *DedupStore) HasAddressContaining(ctx context.Context, fragment string) (bool, error) {
	match := "*" + escapeGlob(strings.ToLower(fragment)) + "*"
	iter := s.client.SScan(ctx, s.addressesKey, 0, match, scanCount).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	if err := iter.Err(); err != nil {
		return false, fmt.Errorf("redis sscan: %w", err)
	}
	return false, nil
}

func (s *DedupStore) Add(ctx context.Context, key, address string) error {
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.SAdd(ctx, s.keysKey, key)
		if address != "" {
			p.SAdd(ctx, s.addressesKey, strings.ToLower(address))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// CheckReadiness pings the server.
func (s *DedupStore) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
