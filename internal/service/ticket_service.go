package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/clock"
	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/history"
	"github.com/unihelp/helpdesk/internal/repository"
	"github.com/unihelp/helpdesk/internal/workflow"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultListPageSize   = 20
	defaultMaxPageSize    = 100
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	sequences   repository.SequenceRepository
	users       repository.UserRepository
	audit       repository.TicketHistoryRepository
	attachments repository.AttachmentRepository
	dispatcher  events.Dispatcher
	lifecycle   *workflow.Lifecycle
	recorder    *history.Recorder
	clock       clock.Clock
	logger      *zap.Logger

	autoAssign      bool
	maxUploadBytes  int64
	defaultPageSize int
	maxPageSize     int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	SequenceRepo   repository.SequenceRepository
	UserRepo       repository.UserRepository
	HistoryRepo    repository.TicketHistoryRepository
	AttachmentRepo repository.AttachmentRepository
	Dispatcher     events.Dispatcher
	Lifecycle      *workflow.Lifecycle
	Recorder       *history.Recorder
	Clock          clock.Clock
	Logger         *zap.Logger

	AutoAssign      bool
	MaxUploadBytes  int64
	DefaultPageSize int
	MaxPageSize     int
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	SubCategory string
	Campus      domain.Campus
	Location    string
	Metadata    domain.Metadata
}

// UpdateTicketInput carries the fields to change. Nil means untouched.
type UpdateTicketInput struct {
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Category        *domain.TicketCategory
	SubCategory     *string
	Campus          *domain.Campus
	Location        *string
	EscalationLevel *int
	AssignedTo      *string
	Resolution      *domain.Resolution
	Metadata        *domain.Metadata
	Reason          string
}

func (in UpdateTicketInput) touchesSupportFields() bool {
	return in.Priority != nil || in.Category != nil || in.SubCategory != nil ||
		in.Campus != nil || in.Location != nil || in.EscalationLevel != nil ||
		in.AssignedTo != nil || in.Resolution != nil || in.Metadata != nil
}

// CommentInput describes a new comment.
type CommentInput struct {
	Message    string
	IsInternal bool
}

// MutationResult is the outcome of a committed ticket write.
type MutationResult struct {
	Ticket   *domain.Ticket   `json:"ticket"`
	Changes  []history.Change `json:"changes"`
	Warnings []string         `json:"warnings,omitempty"`
}

// errUnchanged aborts a store update that produced no tracked change.
var errUnchanged = errors.New("ticket unchanged")

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:         deps.TicketRepo,
		sequences:       deps.SequenceRepo,
		users:           deps.UserRepo,
		audit:           deps.HistoryRepo,
		attachments:     deps.AttachmentRepo,
		dispatcher:      deps.Dispatcher,
		lifecycle:       deps.Lifecycle,
		recorder:        deps.Recorder,
		clock:           deps.Clock,
		logger:          deps.Logger,
		autoAssign:      deps.AutoAssign,
		maxUploadBytes:  deps.MaxUploadBytes,
		defaultPageSize: deps.DefaultPageSize,
		maxPageSize:     deps.MaxPageSize,
	}
	if s.lifecycle == nil {
		s.lifecycle = workflow.NewLifecycle(nil, nil)
	}
	if s.recorder == nil {
		s.recorder = history.NewRecorder()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = defaultListPageSize
	}
	if s.maxPageSize <= 0 {
		s.maxPageSize = defaultMaxPageSize
	}
	return s
}

// CreateTicket files a ticket for the principal. The code, deadlines, creation
// entry and optional auto-assignment are built in memory and inserted once.
func (s *TicketService) CreateTicket(ctx context.Context, p domain.Principal, input CreateTicketInput) (*MutationResult, error) {
	if p.UserID == "" {
		return nil, apperrors.NewUnauthorized("identity required")
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	code, err := s.nextCode(ctx, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	metadata := input.Metadata
	if metadata.Source == "" {
		metadata.Source = domain.SourceWeb
	}
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		TicketCode:  code,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
		Category:    input.Category,
		SubCategory: strings.TrimSpace(input.SubCategory),
		Campus:      input.Campus,
		Location:    strings.TrimSpace(input.Location),
		CreatedBy:   p.UserID,
		Department:  p.Department,
		Metadata:    metadata,
		Comments:    []domain.Comment{},
		Attachments: []domain.Attachment{},
		History:     []domain.HistoryEntry{},
	}
	s.lifecycle.Open(ticket, now)

	changes := s.recorder.Diff(nil, ticket)
	entries := s.recorder.Record(ticket, changes, p.UserID, "", now)

	var warnings []string
	if s.autoAssign {
		handlerID, err := s.pickHandler(ctx)
		switch {
		case err != nil:
			s.logger.Warn("auto-assignment skipped", zap.String("ticket_code", code), zap.Error(err))
			warnings = append(warnings, "auto-assignment skipped: handler lookup failed")
		case handlerID != "":
			before := ticket.Clone()
			if _, err := s.lifecycle.Assign(ticket, handlerID, now); err != nil {
				return nil, err
			}
			assigned := s.recorder.Diff(before, ticket)
			entries = append(entries, s.recorder.Record(ticket, assigned, p.UserID, "auto-assigned", now)...)
			changes = append(changes, assigned...)
		}
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &MutationResult{Ticket: ticket, Changes: changes, Warnings: warnings}
	result.Warnings = append(result.Warnings, s.mirror(ctx, ticket, entries)...)

	s.publishEvent(ctx, events.Event{
		Type:       events.EventTicketCreated,
		TicketID:   ticket.ID,
		TicketCode: ticket.TicketCode,
		Actor:      actorOf(p),
		Timestamp:  now,
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			Priority:   ticket.Priority,
			Category:   ticket.Category,
			CreatedBy:  ticket.CreatedBy,
			AssignedTo: ticket.AssignedTo,
		},
	})
	s.publishChanges(ctx, p, result)
	return result, nil
}

// UpdateTicket applies a partial update. Validation and permission checks run
// before the store is touched; checks that depend on the current status run
// inside the atomic update.
func (s *TicketService) UpdateTicket(ctx context.Context, p domain.Principal, code string, input UpdateTicketInput) (*MutationResult, error) {
	if err := validateUpdate(input); err != nil {
		return nil, err
	}
	if !p.Role.IsSupport() && input.touchesSupportFields() {
		return nil, apperrors.NewForbidden("only support staff may change these fields")
	}
	if input.AssignedTo != nil {
		if err := s.ensureHandler(ctx, *input.AssignedTo); err != nil {
			return nil, err
		}
	}

	result, err := s.mutate(ctx, p, code, input.Reason, func(t *domain.Ticket, now time.Time) error {
		if input.Title != nil || input.Description != nil {
			if !p.Role.IsSupport() && !(p.Owns(t) && t.Status == domain.TicketStatusOpen) {
				return apperrors.NewForbidden("title and description can only be edited by the requester while open")
			}
			if input.Title != nil {
				t.Title = strings.TrimSpace(*input.Title)
			}
			if input.Description != nil {
				t.Description = strings.TrimSpace(*input.Description)
			}
		}
		if input.Category != nil {
			t.Category = *input.Category
		}
		if input.SubCategory != nil {
			t.SubCategory = strings.TrimSpace(*input.SubCategory)
		}
		if input.Campus != nil {
			t.Campus = *input.Campus
		}
		if input.Location != nil {
			t.Location = strings.TrimSpace(*input.Location)
		}
		if input.Metadata != nil {
			t.Metadata = *input.Metadata
		}
		if input.Priority != nil {
			if _, err := s.lifecycle.SetPriority(t, *input.Priority, now); err != nil {
				return err
			}
		}
		if input.EscalationLevel != nil {
			if _, err := s.lifecycle.SetEscalation(t, *input.EscalationLevel); err != nil {
				return err
			}
		}
		if input.AssignedTo != nil {
			if _, err := s.lifecycle.Assign(t, *input.AssignedTo, now); err != nil {
				return err
			}
		}
		if input.Status != nil {
			if err := authorizeStatus(p, t, *input.Status); err != nil {
				return err
			}
			if _, err := s.lifecycle.SetStatus(t, *input.Status, now); err != nil {
				return err
			}
		}
		if input.Resolution != nil {
			if !t.Status.Done() {
				return apperrors.NewValidationError("resolution requires a resolved or closed ticket",
					map[string]any{"status": t.Status})
			}
			res := *input.Resolution
			t.Resolution = &res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, p, result)
	result.Ticket = visibleTo(p, result.Ticket)
	return result, nil
}

// Assign binds the ticket to a handler, moving an open ticket to in-progress.
func (s *TicketService) Assign(ctx context.Context, p domain.Principal, code, handlerID, reason string) (*MutationResult, error) {
	if !p.Role.IsSupport() {
		return nil, apperrors.NewForbidden("only support staff may assign tickets")
	}
	if err := s.ensureHandler(ctx, handlerID); err != nil {
		return nil, err
	}
	result, err := s.mutate(ctx, p, code, reason, func(t *domain.Ticket, now time.Time) error {
		_, err := s.lifecycle.Assign(t, handlerID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, p, result)
	return result, nil
}

// AddComment appends a comment. A public reply from support on someone
// else's ticket stamps the first response.
func (s *TicketService) AddComment(ctx context.Context, p domain.Principal, code string, input CommentInput) (*MutationResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewValidationError("comment message required", nil)
	}
	if utf8.RuneCountInString(message) > domain.CommentMaxLength {
		return nil, apperrors.NewValidationError("comment too long", map[string]any{"max": domain.CommentMaxLength})
	}
	if input.IsInternal && !p.Role.IsSupport() {
		return nil, apperrors.NewForbidden("internal comments are restricted to support staff")
	}

	result, err := s.mutate(ctx, p, code, "", func(t *domain.Ticket, now time.Time) error {
		s.lifecycle.AddComment(t, domain.Comment{
			ID:         uuid.NewString(),
			Author:     p.UserID,
			AuthorRole: p.Role,
			Message:    message,
			IsInternal: input.IsInternal,
			Timestamp:  now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishChanges(ctx, p, result)
	result.Ticket = visibleTo(p, result.Ticket)
	return result, nil
}

// mutate runs apply inside one atomic store update, diffs the result and
// appends history in the same write. The audit mirror is written after commit.
func (s *TicketService) mutate(ctx context.Context, p domain.Principal, code, reason string, apply func(t *domain.Ticket, now time.Time) error) (*MutationResult, error) {
	var (
		changes   []history.Change
		entries   []domain.HistoryEntry
		unchanged *domain.Ticket
	)
	updated, err := s.tickets.Update(ctx, code, func(t *domain.Ticket) error {
		if !p.CanRead(t) {
			return apperrors.NewForbidden("access denied")
		}
		now := s.clock.Now()
		snapshot := t.Clone()
		if err := apply(t, now); err != nil {
			return err
		}
		changes = s.recorder.Diff(snapshot, t)
		if len(changes) == 0 {
			unchanged = snapshot
			return errUnchanged
		}
		entries = s.recorder.Record(t, changes, p.UserID, strings.TrimSpace(reason), now)
		t.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return &MutationResult{Ticket: unchanged, Changes: []history.Change{}}, nil
	}
	if err != nil {
		return nil, ticketError(err, code)
	}

	s.logger.Debug("ticket updated",
		zap.String("ticket_code", code),
		zap.String("actor", p.UserID),
		zap.Strings("fields", changedFields(changes)),
		zap.Int("entries", len(entries)))

	result := &MutationResult{Ticket: updated, Changes: changes}
	result.Warnings = s.mirror(ctx, updated, entries)
	return result, nil
}

// mirror copies committed history entries into the append-only audit table.
// A failure there is reported as a warning; the ticket write already holds the entries.
func (s *TicketService) mirror(ctx context.Context, t *domain.Ticket, entries []domain.HistoryEntry) []string {
	if s.audit == nil || len(entries) == 0 {
		return nil
	}
	records := make([]repository.AuditRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, repository.AuditRecord{TicketID: t.ID, TicketCode: t.TicketCode, HistoryEntry: e})
	}
	if err := s.audit.Append(ctx, records); err != nil {
		s.logger.Warn("audit mirror write failed",
			zap.String("ticket_code", t.TicketCode), zap.Int("entries", len(records)), zap.Error(err))
		return []string{"audit log write failed; history is stored on the ticket"}
	}
	return nil
}

func (s *TicketService) nextCode(ctx context.Context, now time.Time) (string, error) {
	period := now.Format("200601")
	seq, err := s.sequences.Next(ctx, period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%04d", period, seq), nil
}

// pickHandler returns the technician with the fewest active tickets, ties
// broken by id. An empty id means nobody is available.
func (s *TicketService) pickHandler(ctx context.Context) (string, error) {
	if s.users == nil {
		return "", nil
	}
	handlers, err := s.users.ListHandlers(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(handlers))
	for _, h := range handlers {
		if h.Role == domain.RoleTechnician {
			ids = append(ids, h.ID)
		}
	}
	if len(ids) == 0 {
		return "", nil
	}
	loads, err := s.tickets.CountActiveByAssignee(ctx, ids)
	if err != nil {
		return "", err
	}
	best := ""
	for _, id := range ids {
		if best == "" || loads[id] < loads[best] || (loads[id] == loads[best] && id < best) {
			best = id
		}
	}
	return best, nil
}

func (s *TicketService) ensureHandler(ctx context.Context, handlerID string) error {
	if strings.TrimSpace(handlerID) == "" {
		return apperrors.NewValidationError("handler id required", nil)
	}
	if s.users == nil {
		return apperrors.NewHandlerNotFound(handlerID)
	}
	user, err := s.users.GetByID(ctx, handlerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewHandlerNotFound(handlerID)
		}
		return apperrors.MapError(err)
	}
	if !user.Active || !user.Role.IsSupport() {
		return apperrors.NewHandlerNotFound(handlerID)
	}
	return nil
}

// authorizeStatus lets support make any legal move; requesters may only close
// a resolved ticket or reopen their own finished one.
func authorizeStatus(p domain.Principal, t *domain.Ticket, to domain.TicketStatus) error {
	if p.Role.IsSupport() || t.Status == to {
		return nil
	}
	if p.Owns(t) {
		if t.Status == domain.TicketStatusResolved && to == domain.TicketStatusClosed {
			return nil
		}
		if t.Status.Done() && to == domain.TicketStatusInProgress {
			return nil
		}
	}
	return apperrors.NewForbidden("status change not permitted")
}

func ticketError(err error, code string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_code": code})
	}
	return apperrors.MapError(err)
}

func validateCreate(in CreateTicketInput) error {
	details := map[string]any{}
	if err := domain.ValidateTitle(in.Title); err != nil {
		details["title"] = err.Error()
	}
	if err := domain.ValidateDescription(in.Description); err != nil {
		details["description"] = err.Error()
	}
	if in.Priority != "" && !in.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if !in.Category.Valid() {
		details["category"] = "unknown category"
	}
	if in.Campus != "" && !in.Campus.Valid() {
		details["campus"] = "unknown campus"
	}
	if utf8.RuneCountInString(in.SubCategory) > domain.SubCategoryMaxLength {
		details["subCategory"] = "too long"
	}
	if utf8.RuneCountInString(in.Location) > domain.LocationMaxLength {
		details["location"] = "too long"
	}
	if err := in.Metadata.Validate(); err != nil {
		details["metadata"] = err.Error()
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

func validateUpdate(in UpdateTicketInput) error {
	if in.Status != nil && !in.Status.Valid() {
		return apperrors.NewInvalidStatus(string(*in.Status))
	}
	details := map[string]any{}
	if in.Title != nil {
		if err := domain.ValidateTitle(*in.Title); err != nil {
			details["title"] = err.Error()
		}
	}
	if in.Description != nil {
		if err := domain.ValidateDescription(*in.Description); err != nil {
			details["description"] = err.Error()
		}
	}
	if in.Priority != nil && !in.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if in.Category != nil && !in.Category.Valid() {
		details["category"] = "unknown category"
	}
	if in.Campus != nil && *in.Campus != "" && !in.Campus.Valid() {
		details["campus"] = "unknown campus"
	}
	if in.SubCategory != nil && utf8.RuneCountInString(*in.SubCategory) > domain.SubCategoryMaxLength {
		details["subCategory"] = "too long"
	}
	if in.Location != nil && utf8.RuneCountInString(*in.Location) > domain.LocationMaxLength {
		details["location"] = "too long"
	}
	if in.EscalationLevel != nil && (*in.EscalationLevel < domain.MinEscalationLevel || *in.EscalationLevel > domain.MaxEscalationLevel) {
		details["escalationLevel"] = fmt.Sprintf("must be between %d and %d", domain.MinEscalationLevel, domain.MaxEscalationLevel)
	}
	if in.Resolution != nil && strings.TrimSpace(in.Resolution.Summary) == "" {
		details["resolution"] = "summary required"
	}
	if in.Metadata != nil {
		if err := in.Metadata.Validate(); err != nil {
			details["metadata"] = err.Error()
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket update", details)
	}
	return nil
}
