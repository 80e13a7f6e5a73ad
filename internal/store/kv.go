package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrKeyNotFound is returned by KV.Get for a missing key
var ErrKeyNotFound = errors.New("key not found")

// Score is one member of a sorted set
type Score struct {
	Member string
	Value  float64
}

// Batch is a group of writes applied atomically
type Batch struct {
	Sets   map[string][]byte
	Scores map[string][]Score
}

// Set queues a value write
func (b *Batch) Set(key string, value []byte) {
	if b.Sets == nil {
		b.Sets = make(map[string][]byte)
	}
	b.Sets[key] = value
}

// Score queues a sorted set update
func (b *Batch) Score(key, member string, value float64) {
	if b.Scores == nil {
		b.Scores = make(map[string][]Score)
	}
	b.Scores[key] = append(b.Scores[key], Score{Member: member, Value: value})
}

// KV is the minimal key/value surface the KVStore needs
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetNX writes the key only if it does not exist, reporting whether it did so.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Apply(ctx context.Context, b *Batch) error
	// TopScores returns the n highest scored members, highest first.
	TopScores(ctx context.Context, key string, n int) ([]Score, error)
	Close() error
}

// MemoryKV is an in-process KV
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
	sets   map[string]map[string]float64
}

// NewMemoryKV creates an empty in-process KV
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string][]byte),
		sets:   make(map[string]map[string]float64),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemoryKV) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = slices.Clone(value)
	return true, nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *MemoryKV) Apply(ctx context.Context, b *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range b.Sets {
		m.values[k] = slices.Clone(v)
	}
	for k, scores := range b.Scores {
		set, ok := m.sets[k]
		if !ok {
			set = make(map[string]float64)
			m.sets[k] = set
		}
		for _, s := range scores {
			set[s.Member] = s.Value
		}
	}
	return nil
}

func (m *MemoryKV) TopScores(_ context.Context, key string, n int) ([]Score, error) {
	m.mu.RLock()
	out := make([]Score, 0, len(m.sets[key]))
	for member, v := range m.sets[key] {
		out = append(out, Score{Member: member, Value: v})
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Score) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Member, b.Member)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryKV) Close() error { return nil }
