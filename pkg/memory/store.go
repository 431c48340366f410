package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Store is the persistence contract an engine delegates to. The
// default, used when Config.Store is nil, keeps everything in process
// memory; a Redis-backed implementation lets multiple simulator
// processes share agent memory across restarts.
type Store interface {
	Append(ctx context.Context, agentID string, e Event) error
	List(ctx context.Context, agentID string) ([]Event, error)
	AppendReflection(ctx context.Context, agentID string, text string) error
	Reflections(ctx context.Context, agentID string, limit int) ([]string, error)
}

// inMemoryStore is the zero-dependency default Store.
type inMemoryStore struct {
	mu          sync.RWMutex
	events      map[string][]Event
	reflections map[string][]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		events:      make(map[string][]Event),
		reflections: make(map[string][]string),
	}
}

func (s *inMemoryStore) Append(_ context.Context, agentID string, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[agentID] = append(s.events[agentID], e)
	return nil
}

func (s *inMemoryStore) List(_ context.Context, agentID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events[agentID]))
	copy(out, s.events[agentID])
	return out, nil
}

func (s *inMemoryStore) AppendReflection(_ context.Context, agentID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reflections[agentID] = append(s.reflections[agentID], text)
	return nil
}

func (s *inMemoryStore) Reflections(_ context.Context, agentID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.reflections[agentID]
	if limit <= 0 || limit >= len(all) {
		out := make([]string, len(all))
		copy(out, all)
		return out, nil
	}
	return append([]string(nil), all[len(all)-limit:]...), nil
}

var _ Store = (*inMemoryStore)(nil)

// RedisStoreConfig configures a Redis-backed Store.
type RedisStoreConfig struct {
	Client    *redis.Client
	KeyPrefix string // defaults to "skillgov:memory:"
}

// RedisStore persists events as a per-agent Redis list (RPUSH/LRANGE)
// and reflections as a second per-agent list (never trimmed), so agent memory
// survives process restarts and is shared across simulator instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Store backed by cfg.Client.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("memory: redis store requires a non-nil client")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "skillgov:memory:"
	}
	return &RedisStore{client: cfg.Client, prefix: prefix}, nil
}

func (s *RedisStore) eventsKey(agentID string) string      { return s.prefix + "events:" + agentID }
func (s *RedisStore) reflectionsKey(agentID string) string { return s.prefix + "reflections:" + agentID }

func (s *RedisStore) Append(ctx context.Context, agentID string, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("memory: encode event: %w", err)
	}
	return s.client.RPush(ctx, s.eventsKey(agentID), payload).Err()
}

func (s *RedisStore) List(ctx context.Context, agentID string) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(agentID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("memory: list events: %w", err)
	}
	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("memory: decode event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) AppendReflection(ctx context.Context, agentID string, text string) error {
	return s.client.RPush(ctx, s.reflectionsKey(agentID), text).Err()
}

func (s *RedisStore) Reflections(ctx context.Context, agentID string, limit int) ([]string, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.client.LRange(ctx, s.reflectionsKey(agentID), start, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("memory: list reflections: %w", err)
	}
	return raw, nil
}

var _ Store = (*RedisStore)(nil)

// sortByStepDesc sorts events newest-step-first, stable so equal-step
// events keep their recorded order (oldest of the tie last).
func sortByStepDesc(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Step > events[j].Step })
}
