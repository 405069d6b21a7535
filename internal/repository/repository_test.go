package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihelp/helpdesk/internal/domain"
)

var base = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

func seedTicket(code, owner, dept string, offset time.Duration) *domain.Ticket {
	return &domain.Ticket{
		ID:          code,
		TicketCode:  code,
		Title:       "Ticket " + code,
		Description: "Description for " + code,
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityMedium,
		Category:    domain.CategorySoftware,
		CreatedBy:   owner,
		Department:  dept,
		CreatedAt:   base.Add(offset),
	}
}

func TestMemoryTicketRepository_CreateAndGetAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	tk := seedTicket("TKT-202402-0001", "u1", "physics", 0)
	require.NoError(t, repo.Create(ctx, tk))

	tk.Title = "mutated after insert"
	got, err := repo.GetByCode(ctx, "TKT-202402-0001")
	require.NoError(t, err)
	assert.Equal(t, "Ticket TKT-202402-0001", got.Title)

	assert.Error(t, repo.Create(ctx, seedTicket("TKT-202402-0001", "u2", "", 0)))

	_, err = repo.GetByCode(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryTicketRepository_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, seedTicket("T1", "u1", "", 0)))

	_, err := repo.Update(ctx, "T1", func(tk *domain.Ticket) error {
		tk.Title = "half written"
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, _ := repo.GetByCode(ctx, "T1")
	assert.Equal(t, "Ticket T1", got.Title)

	_, err = repo.Update(ctx, "nope", func(*domain.Ticket) error { return nil })
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryTicketRepository_ConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, seedTicket("T1", "u1", "", 0)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "T1", func(tk *domain.Ticket) error {
				tk.History = append(tk.History, domain.HistoryEntry{Action: domain.HistoryActionUpdate})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetByCode(ctx, "T1")
	require.NoError(t, err)
	assert.Len(t, got.History, 50)
}

func TestMemoryTicketRepository_ListScopesAndPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	require.NoError(t, repo.Create(ctx, seedTicket("A", "alice", "physics", 1*time.Minute)))
	require.NoError(t, repo.Create(ctx, seedTicket("B", "bob", "physics", 2*time.Minute)))
	require.NoError(t, repo.Create(ctx, seedTicket("C", "carol", "history", 3*time.Minute)))
	closed := seedTicket("D", "alice", "history", 4*time.Minute)
	closed.Status = domain.TicketStatusClosed
	require.NoError(t, repo.Create(ctx, closed))

	own, total, err := repo.List(ctx, TicketFilter{Scope: TicketScope{OwnerID: "alice"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "D", own[0].TicketCode, "newest first")

	dept, total, err := repo.List(ctx, TicketFilter{Scope: TicketScope{OwnerID: "alice", Department: "physics"}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, dept, 3)

	page, total, err := repo.List(ctx, TicketFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "B", page[0].TicketCode)

	active, err := repo.ListAll(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}})
	require.NoError(t, err)
	assert.Len(t, active, 3)

	term := "ticket c"
	found, _, err := repo.List(ctx, TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "C", found[0].TicketCode)
}

func TestMemoryTicketRepository_CountActiveByAssignee(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketRepository()
	h1, h2 := "h1", "h2"
	for i, tc := range []struct {
		handler *string
		status  domain.TicketStatus
	}{
		{&h1, domain.TicketStatusInProgress},
		{&h1, domain.TicketStatusPending},
		{&h1, domain.TicketStatusResolved},
		{&h2, domain.TicketStatusInProgress},
		{nil, domain.TicketStatusOpen},
	} {
		tk := seedTicket(string(rune('A'+i)), "u", "", 0)
		tk.AssignedTo = tc.handler
		tk.Status = tc.status
		require.NoError(t, repo.Create(ctx, tk))
	}

	counts, err := repo.CountActiveByAssignee(ctx, []string{"h1", "h2", "h3"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["h1"])
	assert.Equal(t, 1, counts["h2"])
	assert.Zero(t, counts["h3"])
}

func TestBuildTicketWhere(t *testing.T) {
	term := "Printer"
	where, args := buildTicketWhere(TicketFilter{
		Scope:      TicketScope{OwnerID: "u1", Department: "math"},
		Statuses:   []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending},
		SearchTerm: &term,
	})
	assert.Equal(t, "1=1 AND (created_by=$1 OR department=$2) AND status IN ($3,$4) AND "+
		"(LOWER(title) LIKE $5 OR LOWER(description) LIKE $5 OR LOWER(ticket_code) LIKE $5)", where)
	require.Len(t, args, 5)
	assert.Equal(t, "%printer%", args[4])
	assert.True(t, strings.HasPrefix(where, "1=1"))
}

func TestMemorySequenceRepository(t *testing.T) {
	ctx := context.Background()
	seq := NewMemorySequenceRepository()
	first, _ := seq.Next(ctx, "202402")
	second, _ := seq.Next(ctx, "202402")
	other, _ := seq.Next(ctx, "202403")
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 1, other)
}

func TestMemoryUserRepository_ListHandlers(t *testing.T) {
	repo := NewMemoryUserRepository(
		domain.User{ID: "t2", Role: domain.RoleTechnician, Active: true, Email: "t2@uni.edu"},
		domain.User{ID: "t1", Role: domain.RoleTechnician, Active: true, Email: "t1@uni.edu"},
		domain.User{ID: "a1", Role: domain.RoleAdmin, Active: true, Email: "a1@uni.edu"},
		domain.User{ID: "t3", Role: domain.RoleTechnician, Active: false, Email: "t3@uni.edu"},
		domain.User{ID: "s1", Role: domain.RoleStudent, Active: true, Email: "s1@uni.edu"},
	)

	handlers, err := repo.ListHandlers(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(handlers))
	for _, h := range handlers {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"a1", "t1", "t2"}, ids)

	u, err := repo.GetByEmail(context.Background(), "T1@UNI.EDU")
	require.NoError(t, err)
	assert.Equal(t, "t1", u.ID)
}

func TestMemoryAlertLedger(t *testing.T) {
	now := base
	ledger := NewMemoryAlertLedger(func() time.Time { return now })
	ctx := context.Background()

	first, err := ledger.MarkSent(ctx, "T1:response:critical", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := ledger.MarkSent(ctx, "T1:response:critical", time.Hour)
	assert.False(t, again)

	now = now.Add(2 * time.Hour)
	expired, _ := ledger.MarkSent(ctx, "T1:response:critical", time.Hour)
	assert.True(t, expired)
}

func TestMemoryAttachmentRepository(t *testing.T) {
	repo := NewMemoryAttachmentRepository()
	ref, err := repo.Put(context.Background(), "T1/log.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "mem://T1/log.txt", ref)

	body, ok := repo.Get("T1/log.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(body))
}

func TestMemoryTicketHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTicketHistoryRepository()
	require.NoError(t, repo.Append(ctx, []AuditRecord{
		{TicketCode: "T1", HistoryEntry: domain.HistoryEntry{Field: "status"}},
		{TicketCode: "T2", HistoryEntry: domain.HistoryEntry{Field: "priority"}},
		{TicketCode: "T1", HistoryEntry: domain.HistoryEntry{Field: "assignedTo"}},
	}))

	records, err := repo.ListByTicket(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "status", records[0].Field)
	assert.Equal(t, "assignedTo", records[1].Field)
}
