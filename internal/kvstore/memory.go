package kvstore

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is a map-backed Store used by tests and by local development without
// a redis instance. Increments hold the mutex for the whole read-modify-write,
// so it gives the same atomicity guarantees as the redis commands it mimics.
type Memory struct {
	mu     sync.Mutex
	values map[string]memoryValue
	hashes map[string]map[string]string
}

type memoryValue struct {
	data      string
	expiresAt time.Time // zero = no expiry
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]memoryValue),
		hashes: make(map[string]map[string]string),
	}
}

func (m *Memory) get(key string) (string, bool) {
	v, ok := m.values[key]
	if !ok {
		return "", false
	}
	if !v.expiresAt.IsZero() && time.Now().After(v.expiresAt) {
		delete(m.values, key)
		return "", false
	}
	return v.data, true
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.get(key)
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = newMemoryValue(value, ttl)
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.get(key); ok {
		return false, nil
	}
	m.values[key] = newMemoryValue(value, ttl)
	return true, nil
}

func (m *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok || len(h) == 0 {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(h))
	for f, v := range h {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (m *Memory) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	cur, err := strconv.ParseInt(h[field], 10, 64)
	if err != nil && h[field] != "" {
		return 0, err
	}
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *Memory) IncrByFloat(ctx context.Context, key string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur float64
	if val, ok := m.get(key); ok {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, err
		}
		cur = parsed
	}
	cur += delta
	m.values[key] = memoryValue{data: strconv.FormatFloat(cur, 'f', -1, 64)}
	return cur, nil
}

func newMemoryValue(value string, ttl time.Duration) memoryValue {
	v := memoryValue{data: value}
	if ttl > 0 {
		v.expiresAt = time.Now().Add(ttl)
	}
	return v
}
