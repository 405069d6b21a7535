package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unihelp/helpdesk/internal/domain"
)

// TicketScope restricts a query to what a caller may see. Empty means everything.
// When both fields are set a ticket matches if either does.
type TicketScope struct {
	OwnerID    string
	Department string
}

// TicketFilter captures list parameters.
type TicketFilter struct {
	Scope       TicketScope
	AssignedTo  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Categories  []domain.TicketCategory
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// MutateFunc edits a ticket inside an atomic update. Returning an error aborts the write.
type MutateFunc func(ticket *domain.Ticket) error

// TicketRepository persists tickets as single documents.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	// Update loads the ticket, applies fn and writes it back as one atomic unit.
	Update(ctx context.Context, code string, fn MutateFunc) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	// ListAll ignores pagination.
	ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context, handlerIDs []string) (map[string]int, error)
}

const defaultPageSize = 20

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres document store.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	doc, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	const query = `
        INSERT INTO tickets (id, ticket_code, created_by, department, assigned_to, status, priority, category,
            title, description, created_at, updated_at, doc)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.TicketCode,
		ticket.CreatedBy,
		ticket.Department,
		ticket.AssignedTo,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Title,
		ticket.Description,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		doc,
	)
	return err
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	var doc []byte
	if err := r.pool.QueryRow(ctx, `SELECT doc FROM tickets WHERE ticket_code=$1`, code).Scan(&doc); err != nil {
		return nil, err
	}
	return decodeTicket(doc)
}

func (r *ticketRepository) Update(ctx context.Context, code string, fn MutateFunc) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var doc []byte
		if err := tx.QueryRow(ctx, `SELECT doc FROM tickets WHERE ticket_code=$1 FOR UPDATE`, code).Scan(&doc); err != nil {
			return err
		}
		ticket, err := decodeTicket(doc)
		if err != nil {
			return err
		}
		if err := fn(ticket); err != nil {
			return err
		}
		next, err := json.Marshal(ticket)
		if err != nil {
			return fmt.Errorf("encode ticket: %w", err)
		}
		const query = `
            UPDATE tickets SET assigned_to=$1, status=$2, priority=$3, category=$4, title=$5, description=$6,
                updated_at=$7, doc=$8
            WHERE ticket_code=$9`
		cmd, err := tx.Exec(ctx, query,
			ticket.AssignedTo,
			ticket.Status,
			ticket.Priority,
			ticket.Category,
			ticket.Title,
			ticket.Description,
			ticket.UpdatedAt,
			next,
			code,
		)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := buildTicketWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter)
	query := fmt.Sprintf(`SELECT doc FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, limit, offset)
	tickets, err := r.queryDocs(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	return r.queryDocs(ctx, `SELECT doc FROM tickets WHERE `+where+` ORDER BY created_at ASC`, args...)
}

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, handlerIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(handlerIDs))
	if len(handlerIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_to, COUNT(*) FROM tickets
        WHERE assigned_to = ANY($1) AND status NOT IN ('resolved','closed')
        GROUP BY assigned_to`
	rows, err := r.pool.Query(ctx, query, handlerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *ticketRepository) queryDocs(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		ticket, err := decodeTicket(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	switch {
	case filter.Scope.OwnerID != "" && filter.Scope.Department != "":
		args = append(args, filter.Scope.OwnerID, filter.Scope.Department)
		clauses = append(clauses, fmt.Sprintf("(created_by=$%d OR department=$%d)", len(args)-1, len(args)))
	case filter.Scope.OwnerID != "":
		args = append(args, filter.Scope.OwnerID)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	case filter.Scope.Department != "":
		args = append(args, filter.Scope.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			args = append(args, c)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(ticket_code) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func pageBounds(filter TicketFilter) (int, int) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func decodeTicket(doc []byte) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(doc, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	return &ticket, nil
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
