package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository hands out per-period counters for ticket codes.
type SequenceRepository interface {
	// Next returns the next value for the period, starting at 1.
	Next(ctx context.Context, period string) (int, error)
}

type sequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository returns the Postgres-backed counter.
func NewSequenceRepository(pool *pgxpool.Pool) SequenceRepository {
	return &sequenceRepository{pool: pool}
}

func (r *sequenceRepository) Next(ctx context.Context, period string) (int, error) {
	const query = `
        INSERT INTO ticket_sequences (period, value) VALUES ($1, 1)
        ON CONFLICT (period) DO UPDATE SET value = ticket_sequences.value + 1
        RETURNING value`
	var value int
	if err := r.pool.QueryRow(ctx, query, period).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

type memorySequenceRepository struct {
	mu     sync.Mutex
	values map[string]int
}

// NewMemorySequenceRepository returns a process-local counter.
func NewMemorySequenceRepository() SequenceRepository {
	return &memorySequenceRepository{values: make(map[string]int)}
}

func (r *memorySequenceRepository) Next(_ context.Context, period string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[period]++
	return r.values[period], nil
}
