package dto

import (
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required"`
	Description string                `json:"description" validate:"required"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Category    domain.TicketCategory `json:"category" validate:"required"`
	SubCategory string                `json:"subCategory"`
	Campus      domain.Campus         `json:"campus"`
	Location    string                `json:"location"`
	Metadata    *MetadataRequest      `json:"metadata"`
}

// MetadataRequest carries intake details.
type MetadataRequest struct {
	Source     domain.TicketSource `json:"source"`
	Extensions map[string]string   `json:"extensions"`
}

// ToDomain converts the request; nil yields zero metadata.
func (m *MetadataRequest) ToDomain() domain.Metadata {
	if m == nil {
		return domain.Metadata{}
	}
	return domain.Metadata{Source: m.Source, Extensions: m.Extensions}
}

// UpdateTicketRequest payload. Absent fields are left untouched.
type UpdateTicketRequest struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Status          *domain.TicketStatus   `json:"status"`
	Priority        *domain.TicketPriority `json:"priority"`
	Category        *domain.TicketCategory `json:"category"`
	SubCategory     *string                `json:"subCategory"`
	Campus          *domain.Campus         `json:"campus"`
	Location        *string                `json:"location"`
	EscalationLevel *int                   `json:"escalationLevel"`
	AssignedTo      *string                `json:"assignedTo"`
	Resolution      *ResolutionRequest     `json:"resolution"`
	Metadata        *MetadataRequest       `json:"metadata"`
	Reason          string                 `json:"reason" validate:"max=500"`
}

// ResolutionRequest describes the fix for a resolved ticket.
type ResolutionRequest struct {
	Summary            string `json:"summary" validate:"required"`
	RootCause          string `json:"rootCause"`
	PreventiveMeasures string `json:"preventiveMeasures"`
}

// AssignRequest binds a ticket to a handler.
type AssignRequest struct {
	HandlerID string `json:"handlerId" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

// CommentRequest payload.
type CommentRequest struct {
	Message    string `json:"message" validate:"required"`
	IsInternal bool   `json:"isInternal"`
}

// TicketListQuery captures list filters from the query string.
type TicketListQuery struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Categories   []domain.TicketCategory
	Search       string
	AssignedToMe bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Page         int
	PageSize     int
}
