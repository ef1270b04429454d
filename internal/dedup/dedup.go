// Package dedup decides whether an incoming report repeats one already known.
//
// Two criteria are supported. ModeExact compares normalized source keys
// (see domain.SourceKey). ModeFuzzyPrefix takes the first comma-delimited
// segment of the raw address and treats any stored address containing it,
// case-insensitively, as a duplicate. Fuzzy mode is loose by construction:
// "Lake St" matches every stored address on Lake Street. It exists for bulk
// feeds whose address formatting varies between scrapes.
//
// Checks and registration are not atomic. Two concurrent submissions of the
// same address may both pass IsDuplicate; the race is accepted.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// Mode selects the duplicate criterion.
type Mode string

const (
	ModeExact       Mode = "exact"
	ModeFuzzyPrefix Mode = "fuzzy_prefix"
)

// ParseMode accepts "exact" or "fuzzy_prefix" (also "fuzzy").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return ModeExact, nil
	case "fuzzy_prefix", "fuzzy":
		return ModeFuzzyPrefix, nil
	default:
		return "", fmt.Errorf("unknown dedup mode %q", s)
	}
}

// DefaultMode returns the criterion used for a source when the caller does
// not choose one. Aggregated feeds reformat addresses between scrapes, so
// they use the prefix match.
func DefaultMode(src domain.Source) Mode {
	if src == domain.SourceAggregated {
		return ModeFuzzyPrefix
	}
	return ModeExact
}

// Candidate is the dedup view of a submission.
type Candidate struct {
	Address string
	Key     string
}

// NewCandidate derives the source key from raw address text.
func NewCandidate(address string) Candidate {
	return Candidate{Address: strings.TrimSpace(address), Key: domain.SourceKey(address)}
}

// Store is the backing set of known keys and addresses.
type Store interface {
	HasKey(ctx context.Context, key string) (bool, error)
	// HasAddressContaining reports whether any stored address contains
	// fragment, ignoring case.
	HasAddressContaining(ctx context.Context, fragment string) (bool, error)
	Add(ctx context.Context, key, address string) error
}

// Index answers duplicate queries against a Store.
type Index struct {
	store  Store
	logger *slog.Logger
}

// NewIndex creates an index over store.
func NewIndex(store Store, logger *slog.Logger) *Index {
	return &Index{store: store, logger: logger}
}

// IsDuplicate checks the candidate under mode. Store failures are returned
// wrapped; callers reject the submission rather than risk a duplicate.
func (x *Index) IsDuplicate(ctx context.Context, mode Mode, c Candidate) (bool, error) {
	if c.Key == "" {
		c.Key = domain.SourceKey(c.Address)
	}

	switch mode {
	case ModeFuzzyPrefix:
		fragment := domain.AddressPrefix(c.Address)
		if fragment == "" {
			// An empty fragment would match everything.
			return x.hasKey(ctx, c.Key)
		}
		dup, err := x.store.HasAddressContaining(ctx, fragment)
		if err != nil {
			return false, fmt.Errorf("dedup fuzzy lookup %q: %w", fragment, err)
		}
		if dup {
			x.logger.Debug("duplicate by address prefix", "fragment", fragment)
		}
		return dup, nil
	case ModeExact, "":
		return x.hasKey(ctx, c.Key)
	default:
		return false, fmt.Errorf("unknown dedup mode %q", mode)
	}
}

func (x *Index) hasKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	dup, err := x.store.HasKey(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dedup key lookup %q: %w", key, err)
	}
	if dup {
		x.logger.Debug("duplicate by source key", "source_key", key)
	}
	return dup, nil
}

// Register records the candidate so later submissions see it.
func (x *Index) Register(ctx context.Context, c Candidate) error {
	if c.Key == "" {
		c.Key = domain.SourceKey(c.Address)
	}
	if err := x.store.Add(ctx, c.Key, c.Address); err != nil {
		return fmt.Errorf("dedup register %q: %w", c.Key, err)
	}
	return nil
}
