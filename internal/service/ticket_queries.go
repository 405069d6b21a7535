package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/repository"
	"github.com/unihelp/helpdesk/internal/sla"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

// TicketView pairs a ticket with its SLA status at read time.
type TicketView struct {
	Ticket *domain.Ticket `json:"ticket"`
	SLA    sla.Status     `json:"sla"`
}

// TicketListInput describes list filters.
type TicketListInput struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Categories   []domain.TicketCategory
	Search       string
	AssignedToMe bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
	// Page is 1-based. When set it overrides Offset and is applied after
	// Limit has been clamped.
	Page int
}

// TicketPage is one page of list results.
type TicketPage struct {
	Items  []TicketView `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// AttachmentInput describes an upload.
type AttachmentInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// GetTicket returns a ticket the principal may read and records the view.
func (s *TicketService) GetTicket(ctx context.Context, p domain.Principal, code string) (*TicketView, error) {
	ticket, err := s.readable(ctx, p, code)
	if err != nil {
		return nil, err
	}
	if !ticket.HasViewed(p.UserID) {
		// view tracking is volatile and never fails a read
		_, err := s.tickets.Update(ctx, code, func(t *domain.Ticket) error {
			if !t.HasViewed(p.UserID) {
				t.ViewedBy = append(t.ViewedBy, p.UserID)
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("view tracking failed", zap.String("ticket_code", code), zap.Error(err))
		} else {
			ticket.ViewedBy = append(ticket.ViewedBy, p.UserID)
		}
	}
	return s.view(p, ticket), nil
}

// ListTickets returns the page of tickets visible to the principal.
func (s *TicketService) ListTickets(ctx context.Context, p domain.Principal, input TicketListInput) (*TicketPage, error) {
	for _, st := range input.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewInvalidStatus(string(st))
		}
	}
	filter := repository.TicketFilter{
		Scope:       scopeFor(p),
		Statuses:    input.Statuses,
		Priorities:  input.Priorities,
		Categories:  input.Categories,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		Limit:       s.pageLimit(input.Limit),
		Offset:      input.Offset,
	}
	if input.Page > 0 {
		filter.Offset = (input.Page - 1) * filter.Limit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if term := strings.TrimSpace(input.Search); term != "" {
		filter.SearchTerm = &term
	}
	if input.AssignedToMe && p.Role.IsSupport() {
		me := p.UserID
		filter.AssignedTo = &me
	}

	tickets, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	page := &TicketPage{Items: make([]TicketView, 0, len(tickets)), Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for i := range tickets {
		page.Items = append(page.Items, *s.view(p, &tickets[i]))
	}
	return page, nil
}

// History returns the ticket's embedded audit trail, oldest first.
func (s *TicketService) History(ctx context.Context, p domain.Principal, code string) ([]domain.HistoryEntry, error) {
	ticket, err := s.readable(ctx, p, code)
	if err != nil {
		return nil, err
	}
	if p.Role.IsSupport() {
		return ticket.History, nil
	}
	internal := map[string]bool{}
	for _, c := range ticket.Comments {
		if c.IsInternal {
			internal[c.ID] = true
		}
	}
	entries := make([]domain.HistoryEntry, 0, len(ticket.History))
	for _, e := range ticket.History {
		if e.Action == domain.HistoryActionComment && internal[e.NewValue] {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// AuditLog returns the mirrored audit records for a ticket. Support only.
func (s *TicketService) AuditLog(ctx context.Context, p domain.Principal, code string) ([]repository.AuditRecord, error) {
	if !p.Role.IsSupport() {
		return nil, apperrors.NewForbidden("audit log is restricted to support staff")
	}
	if _, err := s.readable(ctx, p, code); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []repository.AuditRecord{}, nil
	}
	records, err := s.audit.ListByTicket(ctx, code)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// SLAStatus evaluates breaches and countdowns for a ticket now.
func (s *TicketService) SLAStatus(ctx context.Context, p domain.Principal, code string) (*sla.Status, error) {
	ticket, err := s.readable(ctx, p, code)
	if err != nil {
		return nil, err
	}
	status := sla.Evaluate(ticket, s.clock.Now())
	return &status, nil
}

// AddAttachment stores the file and appends its descriptor to the ticket.
func (s *TicketService) AddAttachment(ctx context.Context, p domain.Principal, code string, input AttachmentInput) (*MutationResult, error) {
	name := path.Base(strings.TrimSpace(input.Name))
	if name == "" || name == "." || name == "/" {
		return nil, apperrors.NewValidationError("attachment name required", nil)
	}
	if input.Size <= 0 || input.Body == nil {
		return nil, apperrors.NewValidationError("attachment is empty", nil)
	}
	if input.Size > s.maxUploadBytes {
		return nil, apperrors.NewValidationError("attachment too large", map[string]any{"max_bytes": s.maxUploadBytes})
	}
	if s.attachments == nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("attachment store not configured"))
	}
	if _, err := s.readable(ctx, p, code); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ref, err := s.attachments.Put(ctx, code+"/"+id+"-"+name, input.Body, input.Size, contentType)
	if err != nil {
		return nil, apperrors.MapError(fmt.Errorf("store attachment: %w", err))
	}

	result, err := s.mutate(ctx, p, code, "", func(t *domain.Ticket, now time.Time) error {
		t.Attachments = append(t.Attachments, domain.Attachment{
			ID:          id,
			Name:        name,
			Reference:   ref,
			Size:        input.Size,
			ContentType: contentType,
			UploadedBy:  p.UserID,
			UploadedAt:  now,
		})
		return nil
	})
	if err != nil {
		s.logger.Warn("attachment stored but ticket write failed",
			zap.String("ticket_code", code), zap.String("reference", ref), zap.Error(err))
		return nil, err
	}
	result.Ticket = visibleTo(p, result.Ticket)
	return result, nil
}

func (s *TicketService) readable(ctx context.Context, p domain.Principal, code string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, ticketError(err, code)
	}
	if !p.CanRead(ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) view(p domain.Principal, t *domain.Ticket) *TicketView {
	return &TicketView{Ticket: visibleTo(p, t), SLA: sla.Evaluate(t, s.clock.Now())}
}

func (s *TicketService) pageLimit(limit int) int {
	if limit <= 0 {
		return s.defaultPageSize
	}
	if limit > s.maxPageSize {
		return s.maxPageSize
	}
	return limit
}

func scopeFor(p domain.Principal) repository.TicketScope {
	switch {
	case p.Role.IsSupport():
		return repository.TicketScope{}
	case p.Role == domain.RoleStaff && p.Department != "":
		return repository.TicketScope{OwnerID: p.UserID, Department: p.Department}
	default:
		return repository.TicketScope{OwnerID: p.UserID}
	}
}

// visibleTo hides internal comments from requesters.
func visibleTo(p domain.Principal, t *domain.Ticket) *domain.Ticket {
	if t == nil || p.Role.IsSupport() {
		return t
	}
	c := t.Clone()
	public := make([]domain.Comment, 0, len(c.Comments))
	for _, cm := range c.Comments {
		if !cm.IsInternal {
			public = append(public, cm)
		}
	}
	c.Comments = public
	return c
}
