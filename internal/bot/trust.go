package bot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Level is how far the bot trusts a reporter.
type Level string

const (
	LevelVerified Level = "verified"
	LevelTrusted  Level = "trusted"
	LevelAdmin    Level = "admin"
)

// AutoApproves reports whether submissions at this level skip moderation.
func (l Level) AutoApproves() bool {
	return l == LevelTrusted || l == LevelAdmin
}

// Member is a reporter the bot knows.
type Member struct {
	UserID     string
	Username   string
	FirstName  string
	Level      Level
	ApprovedBy string
	ApprovedAt time.Time
}

// Name is the best human-readable label for the member.
func (m Member) Name() string {
	return displayName(m.FirstName, m.Username, m.UserID)
}

// VerificationRequest is a pending /register.
type VerificationRequest struct {
	UserID      string
	Username    string
	FirstName   string
	RequestedAt time.Time
}

func (r VerificationRequest) Name() string {
	return displayName(r.FirstName, r.Username, r.UserID)
}

func displayName(first, username, id string) string {
	switch {
	case first != "":
		return first
	case username != "":
		return "@" + username
	default:
		return id
	}
}

// TrustStore holds members and pending verification requests.
type TrustStore interface {
	Member(ctx context.Context, userID string) (Member, bool, error)
	PutMember(ctx context.Context, m Member) error
	Members(ctx context.Context) ([]Member, error)

	AddRequest(ctx context.Context, r VerificationRequest) error
	Request(ctx context.Context, userID string) (VerificationRequest, bool, error)
	Requests(ctx context.Context) ([]VerificationRequest, error)
	RemoveRequest(ctx context.Context, userID string) error
}

// MemoryTrustStore is an in-process TrustStore.
type MemoryTrustStore struct {
	mu       sync.RWMutex
	members  map[string]Member
	requests map[string]VerificationRequest
}

func NewMemoryTrustStore() *MemoryTrustStore {
	return &MemoryTrustStore{
		members:  make(map[string]Member),
		requests: make(map[string]VerificationRequest),
	}
}

func (s *MemoryTrustStore) Member(_ context.Context, userID string) (Member, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[userID]
	return m, ok, nil
}

func (s *MemoryTrustStore) PutMember(_ context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.UserID] = m
	return nil
}

func (s *MemoryTrustStore) Members(_ context.Context) ([]Member, error) {
	s.mu.RLock()
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryTrustStore) AddRequest(_ context.Context, r VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.UserID] = r
	return nil
}

func (s *MemoryTrustStore) Request(_ context.Context, userID string) (VerificationRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[userID]
	return r, ok, nil
}

func (s *MemoryTrustStore) Requests(_ context.Context) ([]VerificationRequest, error) {
	s.mu.RLock()
	out := make([]VerificationRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *MemoryTrustStore) RemoveRequest(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, userID)
	return nil
}
