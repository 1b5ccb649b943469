package rules

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultNATSBucket is the key-value bucket rules are stored in.
const DefaultNATSBucket = "RULE_DEFINITIONS"

// NATSRuleStore implements RuleStore on a JetStream key-value bucket. Rule
// names are base64url-encoded into keys because KV keys allow a narrower
// alphabet than rule names.
type NATSRuleStore struct {
	bucket jetstream.KeyValue
}

// NewNATSRuleStore wraps an existing bucket.
func NewNATSRuleStore(bucket jetstream.KeyValue) *NATSRuleStore {
	return &NATSRuleStore{bucket: bucket}
}

// OpenNATSRuleStore creates the bucket if needed and returns a store on it.
func OpenNATSRuleStore(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSRuleStore, error) {
	if bucket == "" {
		bucket = DefaultNATSBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Compliance rule definitions by name",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}
	return NewNATSRuleStore(kv), nil
}

func natsKey(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func (s *NATSRuleStore) GetByName(ctx context.Context, name string) (*RuleDefinition, error) {
	entry, err := s.bucket.Get(ctx, natsKey(name))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	var rule RuleDefinition
	if err := json.Unmarshal(entry.Value(), &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule %s: %w", name, err)
	}
	return &rule, nil
}

func (s *NATSRuleStore) PutByName(ctx context.Context, name string, rule *RuleDefinition) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule %s: %w", name, err)
	}
	if _, err := s.bucket.Put(ctx, natsKey(name), doc); err != nil {
		return fmt.Errorf("failed to put rule: %w", err)
	}
	return nil
}

func (s *NATSRuleStore) ListNames(ctx context.Context) ([]string, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		raw, err := base64.RawURLEncoding.DecodeString(k)
		if err != nil {
			continue
		}
		names = append(names, string(raw))
	}
	sort.Strings(names)
	return names, nil
}
