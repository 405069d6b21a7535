package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unihelp/helpdesk/internal/domain"
)

// AuditRecord is a history entry mirrored outside the ticket document.
type AuditRecord struct {
	TicketID   string `json:"ticketId"`
	TicketCode string `json:"ticketCode"`
	domain.HistoryEntry
}

// TicketHistoryRepository stores the secondary append-only audit log.
// The authoritative history is embedded in the ticket; this mirror feeds reporting.
type TicketHistoryRepository interface {
	Append(ctx context.Context, records []AuditRecord) error
	ListByTicket(ctx context.Context, ticketCode string) ([]AuditRecord, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds the Postgres audit log.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, records []AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, ticket_code, action, field, old_value, new_value, actor, reason, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.TicketID,
			rec.TicketCode,
			rec.Action,
			rec.Field,
			rec.OldValue,
			rec.NewValue,
			rec.Actor,
			rec.Reason,
			rec.Timestamp,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketCode string) ([]AuditRecord, error) {
	const query = `
        SELECT ticket_id, ticket_code, action, field, old_value, new_value, actor, reason, created_at
        FROM ticket_history WHERE ticket_code=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ticketCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(
			&rec.TicketID,
			&rec.TicketCode,
			&rec.Action,
			&rec.Field,
			&rec.OldValue,
			&rec.NewValue,
			&rec.Actor,
			&rec.Reason,
			&rec.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type memoryTicketHistoryRepository struct {
	mu      sync.Mutex
	records []AuditRecord
}

// NewMemoryTicketHistoryRepository returns a process-local audit log.
func NewMemoryTicketHistoryRepository() TicketHistoryRepository {
	return &memoryTicketHistoryRepository{}
}

func (r *memoryTicketHistoryRepository) Append(_ context.Context, records []AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

func (r *memoryTicketHistoryRepository) ListByTicket(_ context.Context, ticketCode string) ([]AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []AuditRecord{}
	for _, rec := range r.records {
		if rec.TicketCode == ticketCode {
			result = append(result, rec)
		}
	}
	return result, nil
}
