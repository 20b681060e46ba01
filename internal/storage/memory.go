package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps metrics in a slice. It is used when no DSN is
// configured and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   []Metric
	nextID int64
	now    func() time.Time
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) { r.now = now }
}

func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{nextID: 1, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *MemoryRepository) Migrate(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) Seed(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rows) > 0 {
		return nil
	}
	for _, s := range sampleData {
		r.insertLocked(s.name, Float(s.value))
	}
	return nil
}

func (r *MemoryRepository) Insert(ctx context.Context, name string, value *float64) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return Metric{}, err
	}
	if err := validate(name, value); err != nil {
		return Metric{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(name, value), nil
}

func (r *MemoryRepository) insertLocked(name string, value *float64) Metric {
	m := Metric{
		ID:          r.nextID,
		MetricName:  name,
		MetricValue: roundDecimal(value),
		CreatedAt:   r.now(),
	}
	r.nextID++
	r.rows = append(r.rows, m)
	return m
}

func (r *MemoryRepository) Recent(ctx context.Context) ([]Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := recentCutoff(r.now())

	r.mu.RLock()
	out := make([]Metric, 0, len(r.rows))
	for _, m := range r.rows {
		if !m.CreatedAt.Before(cutoff) {
			if m.MetricValue != nil {
				v := *m.MetricValue
				m.MetricValue = &v
			}
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Metric) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }
