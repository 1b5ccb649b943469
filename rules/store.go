package rules

import (
	"context"
	"sort"
	"sync"
)

// RuleStore persists rule definitions by name. Writes replace the whole
// document; there is no partial update and no version check, so concurrent
// writers to one name race under last-write-wins.
type RuleStore interface {
	// GetByName returns the rule stored under name, or an error matching
	// ErrNotFound.
	GetByName(ctx context.Context, name string) (*RuleDefinition, error)

	// PutByName creates or replaces the rule stored under name.
	PutByName(ctx context.Context, name string, rule *RuleDefinition) error

	// ListNames returns the stored rule names in lexical order.
	ListNames(ctx context.Context) ([]string, error)
}

// InMemoryRuleStore implements RuleStore using an in-memory map
// Thread-safe with RWMutex; stores and returns copies
type InMemoryRuleStore struct {
	rules map[string]*RuleDefinition
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates a new in-memory rule store
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*RuleDefinition),
	}
}

// GetByName retrieves a rule by name
func (s *InMemoryRuleStore) GetByName(_ context.Context, name string) (*RuleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[name]
	if !exists {
		return nil, &NotFoundError{Name: name}
	}
	return rule.Clone()
}

// PutByName stores a copy of rule under name
func (s *InMemoryRuleStore) PutByName(_ context.Context, name string, rule *RuleDefinition) error {
	cp, err := rule.Clone()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[name] = cp
	return nil
}

// ListNames returns all stored names
func (s *InMemoryRuleStore) ListNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
