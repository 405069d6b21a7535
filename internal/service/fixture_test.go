package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unihelp/helpdesk/internal/clock"
	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/repository"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

var (
	student   = domain.Principal{UserID: "stu-1", Role: domain.RoleStudent}
	student2  = domain.Principal{UserID: "stu-2", Role: domain.RoleStudent}
	staff     = domain.Principal{UserID: "staff-1", Role: domain.RoleStaff, Department: "physics"}
	staffPeer = domain.Principal{UserID: "staff-2", Role: domain.RoleStaff, Department: "physics"}
	tech      = domain.Principal{UserID: "tech-a", Role: domain.RoleTechnician}
	tech2     = domain.Principal{UserID: "tech-b", Role: domain.RoleTechnician}
	admin     = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
)

func directory() []domain.User {
	return []domain.User{
		{ID: "stu-1", Name: "Stu One", Email: "stu1@uni.edu", Role: domain.RoleStudent, Active: true},
		{ID: "stu-2", Name: "Stu Two", Email: "stu2@uni.edu", Role: domain.RoleStudent, Active: true},
		{ID: "staff-1", Name: "Staff One", Email: "staff1@uni.edu", Role: domain.RoleStaff, Department: "physics", Active: true},
		{ID: "staff-2", Name: "Staff Two", Email: "staff2@uni.edu", Role: domain.RoleStaff, Department: "physics", Active: true},
		{ID: "tech-a", Name: "Tech A", Email: "techa@uni.edu", Role: domain.RoleTechnician, Active: true},
		{ID: "tech-b", Name: "Tech B", Email: "techb@uni.edu", Role: domain.RoleTechnician, Active: true},
		{ID: "tech-z", Name: "Tech Z", Email: "techz@uni.edu", Role: domain.RoleTechnician, Active: false},
		{ID: "admin-1", Name: "Admin", Email: "admin@uni.edu", Role: domain.RoleAdmin, Active: true},
	}
}

type fixture struct {
	svc         *TicketService
	tickets     repository.TicketRepository
	audit       repository.TicketHistoryRepository
	attachments *repository.MemoryAttachmentRepository
	dispatcher  events.Dispatcher
	clock       *clock.Fake

	mu     sync.Mutex
	events []events.Event
}

type fixtureOption func(*TicketDependencies)

func withAutoAssign() fixtureOption {
	return func(d *TicketDependencies) { d.AutoAssign = true }
}

func withUsers(users repository.UserRepository) fixtureOption {
	return func(d *TicketDependencies) { d.UserRepo = users }
}

func withAudit(audit repository.TicketHistoryRepository) fixtureOption {
	return func(d *TicketDependencies) { d.HistoryRepo = audit }
}

func withPageSizes(def, maxSize int) fixtureOption {
	return func(d *TicketDependencies) { d.DefaultPageSize, d.MaxPageSize = def, maxSize }
}

func withMaxUpload(n int64) fixtureOption {
	return func(d *TicketDependencies) { d.MaxUploadBytes = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		tickets:     repository.NewMemoryTicketRepository(),
		audit:       repository.NewMemoryTicketHistoryRepository(),
		attachments: repository.NewMemoryAttachmentRepository(),
		dispatcher:  events.NewInMemoryDispatcher(),
		clock:       clock.NewFake(t0),
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketPriorityChanged,
		events.EventTicketAssigned, events.EventTicketResolved, events.EventTicketCommentAdded,
	} {
		f.dispatcher.Subscribe(et, f.record)
	}
	deps := TicketDependencies{
		TicketRepo:     f.tickets,
		SequenceRepo:   repository.NewMemorySequenceRepository(),
		UserRepo:       repository.NewMemoryUserRepository(directory()...),
		HistoryRepo:    f.audit,
		AttachmentRepo: f.attachments,
		Dispatcher:     f.dispatcher,
		Clock:          f.clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewTicketService(deps)
	return f
}

func (f *fixture) record(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *fixture) resetEvents() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func (f *fixture) create(t *testing.T, p domain.Principal, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	res, err := f.svc.CreateTicket(context.Background(), p, CreateTicketInput{
		Title:       "Projector not working",
		Description: "The projector in room 204 shows no signal.",
		Priority:    priority,
		Category:    domain.CategoryHardware,
		Campus:      domain.CampusMain,
	})
	require.NoError(t, err)
	return res.Ticket
}

func (f *fixture) stored(t *testing.T, code string) *domain.Ticket {
	t.Helper()
	got, err := f.tickets.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return got
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }

func strPtr(s string) *string { return &s }

type failingAudit struct{}

func (failingAudit) Append(context.Context, []repository.AuditRecord) error {
	return errors.New("audit table unavailable")
}

func (failingAudit) ListByTicket(context.Context, string) ([]repository.AuditRecord, error) {
	return nil, errors.New("audit table unavailable")
}

type failingDirectory struct {
	repository.UserRepository
}

func (failingDirectory) ListHandlers(context.Context) ([]domain.User, error) {
	return nil, errors.New("directory timeout")
}
