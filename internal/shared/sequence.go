package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Document number prefixes.
const (
	PrefixSPP  = "SPP"
	PrefixSOPb = "SOPb"
	PrefixLPB  = "LPB"
	PrefixBKK  = "BKK"
)

// Sequencer hands out document numbers that never repeat within a type and year.
type Sequencer interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// FormatNumber renders PREFIX-NNN/YYYY.
func FormatNumber(prefix string, seq int64, year int) string {
	return fmt.Sprintf("%s-%03d/%d", prefix, seq, year)
}

// SequenceKey builds redis keys for document counters.
func SequenceKey(prefix string, year int) string {
	return fmt.Sprintf("docseq:%s:%d", prefix, year)
}

// RedisSequencer keeps counters in Redis so numbers survive restarts.
type RedisSequencer struct {
	client *redis.Client
}

// NewRedisSequencer constructs the sequencer.
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{client: client}
}

// Next increments the counter for prefix in the year of at.
func (s *RedisSequencer) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("sequencer not initialised")
	}
	year := at.Year()
	n, err := s.client.Incr(ctx, SequenceKey(prefix, year)).Result()
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", prefix, err)
	}
	return FormatNumber(prefix, n, year), nil
}

// MemorySequencer is the process-local counter used without Redis.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemorySequencer constructs the sequencer.
func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{counters: make(map[string]int64)}
}

// Next increments the counter for prefix in the year of at.
func (s *MemorySequencer) Next(_ context.Context, prefix string, at time.Time) (string, error) {
	year := at.Year()
	key := SequenceKey(prefix, year)
	s.mu.Lock()
	s.counters[key]++
	n := s.counters[key]
	s.mu.Unlock()
	return FormatNumber(prefix, n, year), nil
}
