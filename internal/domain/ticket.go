package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether the status belongs to the enumerated set.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Done reports whether the ticket no longer counts against its resolution target.
func (s TicketStatus) Done() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory classifies the request.
type TicketCategory string

const (
	CategoryHardware   TicketCategory = "hardware"
	CategorySoftware   TicketCategory = "software"
	CategoryNetwork    TicketCategory = "network"
	CategoryAccount    TicketCategory = "account"
	CategoryEmail      TicketCategory = "email"
	CategoryPrinting   TicketCategory = "printing"
	CategoryFacilities TicketCategory = "facilities"
	CategoryOther      TicketCategory = "other"
)

func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryHardware, CategorySoftware, CategoryNetwork, CategoryAccount,
		CategoryEmail, CategoryPrinting, CategoryFacilities, CategoryOther:
		return true
	}
	return false
}

// Campus identifies where the requester is located.
type Campus string

const (
	CampusMain    Campus = "main"
	CampusNorth   Campus = "north"
	CampusSouth   Campus = "south"
	CampusMedical Campus = "medical"
	CampusOnline  Campus = "online"
)

func (c Campus) Valid() bool {
	switch c {
	case CampusMain, CampusNorth, CampusSouth, CampusMedical, CampusOnline:
		return true
	}
	return false
}

// TicketSource records the intake channel.
type TicketSource string

const (
	SourceWeb    TicketSource = "web"
	SourceEmail  TicketSource = "email"
	SourcePhone  TicketSource = "phone"
	SourceWalkIn TicketSource = "walk-in"
)

func (s TicketSource) Valid() bool {
	switch s {
	case SourceWeb, SourceEmail, SourcePhone, SourceWalkIn:
		return true
	}
	return false
}

// Field limits enforced on creation and edit.
const (
	TitleMinLength       = 5
	TitleMaxLength       = 200
	DescriptionMinLength = 10
	DescriptionMaxLength = 5000
	SubCategoryMaxLength = 100
	LocationMaxLength    = 200
	CommentMaxLength     = 5000

	MinEscalationLevel = 1
	MaxEscalationLevel = 3

	MaxMetadataExtensions   = 16
	MaxExtensionKeyLength   = 64
	MaxExtensionValueLength = 512
)

// Comment is one entry in the ticket conversation.
type Comment struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	AuthorRole Role      `json:"authorRole"`
	Message    string    `json:"message"`
	IsInternal bool      `json:"isInternal"`
	Timestamp  time.Time `json:"timestamp"`
}

// Attachment describes a file held by the attachment store.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Reference   string    `json:"reference"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedBy  string    `json:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Resolution summarizes how a ticket was fixed.
type Resolution struct {
	Summary            string `json:"summary"`
	RootCause          string `json:"rootCause,omitempty"`
	PreventiveMeasures string `json:"preventiveMeasures,omitempty"`
}

func (r *Resolution) String() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("summary=%s; rootCause=%s; preventiveMeasures=%s", r.Summary, r.RootCause, r.PreventiveMeasures)
}

// Metadata carries intake details plus a bounded set of free-form extensions.
type Metadata struct {
	Source     TicketSource      `json:"source"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// Validate checks enumerations and extension bounds.
func (m Metadata) Validate() error {
	if m.Source != "" && !m.Source.Valid() {
		return fmt.Errorf("unknown source %q", m.Source)
	}
	if len(m.Extensions) > MaxMetadataExtensions {
		return fmt.Errorf("at most %d metadata extensions allowed", MaxMetadataExtensions)
	}
	for k, v := range m.Extensions {
		if strings.TrimSpace(k) == "" || utf8.RuneCountInString(k) > MaxExtensionKeyLength {
			return fmt.Errorf("invalid metadata key %q", k)
		}
		if utf8.RuneCountInString(v) > MaxExtensionValueLength {
			return fmt.Errorf("metadata value for %q too long", k)
		}
	}
	return nil
}

func (m Metadata) String() string {
	if len(m.Extensions) == 0 {
		return string(m.Source)
	}
	keys := sortedKeys(m.Extensions)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m.Extensions[k])
	}
	return string(m.Source) + " {" + strings.Join(parts, ", ") + "}"
}

// Ticket is the aggregate for support requests. It is persisted as one document.
type Ticket struct {
	ID          string         `json:"id"`
	TicketCode  string         `json:"ticketCode"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	Category    TicketCategory `json:"category"`
	SubCategory string         `json:"subCategory,omitempty"`
	Campus      Campus         `json:"campus,omitempty"`
	Location    string         `json:"location,omitempty"`

	CreatedBy  string  `json:"createdBy"`
	Department string  `json:"department,omitempty"`
	AssignedTo *string `json:"assignedTo,omitempty"`

	SLAResponseDeadline   time.Time  `json:"slaResponseDeadline"`
	SLAResolutionDeadline time.Time  `json:"slaResolutionDeadline"`
	FirstResponseAt       *time.Time `json:"firstResponseAt,omitempty"`
	ResolvedAt            *time.Time `json:"resolvedAt,omitempty"`
	ClosedAt              *time.Time `json:"closedAt,omitempty"`
	ActualResolutionTime  *int       `json:"actualResolutionTime,omitempty"`

	Comments    []Comment      `json:"comments"`
	Attachments []Attachment   `json:"attachments"`
	Resolution  *Resolution    `json:"resolution,omitempty"`
	History     []HistoryEntry `json:"history"`

	EscalationLevel int      `json:"escalationLevel"`
	ReopenCount     int      `json:"reopenCount"`
	Metadata        Metadata `json:"metadata"`
	ViewedBy        []string `json:"viewedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAssignedTo reports whether the ticket is bound to the handler.
func (t *Ticket) IsAssignedTo(handlerID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == handlerID
}

// HasViewed reports whether the user is already in the view list.
func (t *Ticket) HasViewed(userID string) bool {
	for _, id := range t.ViewedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so a mutation can be diffed against the original.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedTo = clonePtr(t.AssignedTo)
	c.FirstResponseAt = clonePtr(t.FirstResponseAt)
	c.ResolvedAt = clonePtr(t.ResolvedAt)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.ActualResolutionTime = clonePtr(t.ActualResolutionTime)
	c.Resolution = clonePtr(t.Resolution)
	c.Comments = append([]Comment(nil), t.Comments...)
	c.Attachments = append([]Attachment(nil), t.Attachments...)
	c.History = append([]HistoryEntry(nil), t.History...)
	c.ViewedBy = append([]string(nil), t.ViewedBy...)
	if t.Metadata.Extensions != nil {
		c.Metadata.Extensions = make(map[string]string, len(t.Metadata.Extensions))
		for k, v := range t.Metadata.Extensions {
			c.Metadata.Extensions[k] = v
		}
	}
	return &c
}

// ValidateTitle enforces the title length bounds.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < TitleMinLength || n > TitleMaxLength {
		return fmt.Errorf("title must be between %d and %d characters", TitleMinLength, TitleMaxLength)
	}
	return nil
}

// ValidateDescription enforces the description length bounds.
func ValidateDescription(description string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(description))
	if n < DescriptionMinLength || n > DescriptionMaxLength {
		return fmt.Errorf("description must be between %d and %d characters", DescriptionMinLength, DescriptionMaxLength)
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
