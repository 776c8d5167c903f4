package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/valuescope/internal/contracts"
)

// MemoryStore is an in-process RuleStore. Rules are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*contracts.AlertRule
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[string]*contracts.AlertRule)}
}

func cloneRule(r *contracts.AlertRule) *contracts.AlertRule {
	c := *r
	if r.LastTriggeredAt != nil {
		t := *r.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	return &c
}

// Create stores a new rule
func (s *MemoryStore) Create(_ context.Context, rule *contracts.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("%w: duplicate id %s", contracts.ErrInvalidRule, rule.ID)
	}
	s.rules[rule.ID] = cloneRule(rule)
	return nil
}

// Get returns one rule
func (s *MemoryStore) Get(_ context.Context, id string) (*contracts.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, contracts.ErrRuleNotFound
	}
	return cloneRule(r), nil
}

// ListByOwner returns an owner's rules, oldest first
func (s *MemoryStore) ListByOwner(_ context.Context, owner string) ([]*contracts.AlertRule, error) {
	return s.list(func(r *contracts.AlertRule) bool { return r.Owner == owner }), nil
}

// ListEnabled returns every enabled rule, oldest first
func (s *MemoryStore) ListEnabled(_ context.Context) ([]*contracts.AlertRule, error) {
	return s.list(func(r *contracts.AlertRule) bool { return r.Enabled }), nil
}

func (s *MemoryStore) list(keep func(*contracts.AlertRule) bool) []*contracts.AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.AlertRule, 0)
	for _, r := range s.rules {
		if keep(r) {
			out = append(out, cloneRule(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update replaces a stored rule
func (s *MemoryStore) Update(_ context.Context, rule *contracts.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return contracts.ErrRuleNotFound
	}
	s.rules[rule.ID] = cloneRule(rule)
	return nil
}

// Delete removes a rule
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return contracts.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

// CompareAndSetState implements RuleStore
func (s *MemoryStore) CompareAndSetState(_ context.Context, id string, from, to contracts.AlertState, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return false, contracts.ErrRuleNotFound
	}
	if !r.Enabled || r.State != from {
		return false, nil
	}

	r.State = to
	r.UpdatedAt = at
	if to == contracts.StateTriggered {
		t := at
		r.LastTriggeredAt = &t
	}
	return true, nil
}
