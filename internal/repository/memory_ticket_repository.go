package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/unihelp/helpdesk/internal/domain"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

type memoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	order   []string
}

// NewMemoryTicketRepository returns a process-local store used when no database is configured.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.TicketCode]; exists {
		return apperrors.NewConflict("ticket code already exists", map[string]any{"ticket_code": ticket.TicketCode})
	}
	r.tickets[ticket.TicketCode] = ticket.Clone()
	r.order = append(r.order, ticket.TicketCode)
	return nil
}

func (r *memoryTicketRepository) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) Update(_ context.Context, code string, fn MutateFunc) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.tickets[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.tickets[code] = working.Clone()
	return working, nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	r.mu.Lock()
	matched := r.matching(filter)
	r.mu.Unlock()

	// newest first
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit, offset := pageBounds(filter)
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memoryTicketRepository) ListAll(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(filter), nil
}

func (r *memoryTicketRepository) CountActiveByAssignee(_ context.Context, handlerIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int, len(handlerIDs))
	wanted := make(map[string]bool, len(handlerIDs))
	for _, id := range handlerIDs {
		wanted[id] = true
	}
	for _, t := range r.tickets {
		if t.AssignedTo == nil || t.Status.Done() || !wanted[*t.AssignedTo] {
			continue
		}
		counts[*t.AssignedTo]++
	}
	return counts, nil
}

func (r *memoryTicketRepository) matching(filter TicketFilter) []domain.Ticket {
	result := []domain.Ticket{}
	for _, code := range r.order {
		t := r.tickets[code]
		if matchesFilter(t, filter) {
			result = append(result, *t.Clone())
		}
	}
	return result
}

func matchesFilter(t *domain.Ticket, f TicketFilter) bool {
	switch {
	case f.Scope.OwnerID != "" && f.Scope.Department != "":
		if t.CreatedBy != f.Scope.OwnerID && t.Department != f.Scope.Department {
			return false
		}
	case f.Scope.OwnerID != "":
		if t.CreatedBy != f.Scope.OwnerID {
			return false
		}
	case f.Scope.Department != "":
		if t.Department != f.Scope.Department {
			return false
		}
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, t.Category) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.TicketCode), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
