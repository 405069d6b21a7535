package history

import (
	"strconv"
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
)

// Change is one substantive difference between two snapshots of a ticket.
type Change struct {
	Action   domain.HistoryAction `json:"action"`
	Field    string               `json:"field"`
	OldValue string               `json:"oldValue,omitempty"`
	NewValue string               `json:"newValue,omitempty"`
}

type trackedField struct {
	name  string
	value func(*domain.Ticket) string
}

// Recorder diffs ticket snapshots and appends history entries. Fields are
// compared in declaration order, so an assignment reads as assignedTo then status.
// Volatile fields (updatedAt, viewedBy, history) and values derived from a
// tracked field (deadlines, milestone stamps, reopen count) are not tracked.
type Recorder struct {
	fields []trackedField
}

// NewRecorder returns a recorder over the standard tracked fields.
func NewRecorder() *Recorder {
	return &Recorder{fields: []trackedField{
		{"title", func(t *domain.Ticket) string { return t.Title }},
		{"description", func(t *domain.Ticket) string { return t.Description }},
		{"assignedTo", func(t *domain.Ticket) string {
			if t.AssignedTo == nil {
				return ""
			}
			return *t.AssignedTo
		}},
		{"status", func(t *domain.Ticket) string { return string(t.Status) }},
		{"priority", func(t *domain.Ticket) string { return string(t.Priority) }},
		{"category", func(t *domain.Ticket) string { return string(t.Category) }},
		{"subCategory", func(t *domain.Ticket) string { return t.SubCategory }},
		{"campus", func(t *domain.Ticket) string { return string(t.Campus) }},
		{"location", func(t *domain.Ticket) string { return t.Location }},
		{"escalationLevel", func(t *domain.Ticket) string { return strconv.Itoa(t.EscalationLevel) }},
		{"resolution", func(t *domain.Ticket) string { return t.Resolution.String() }},
		{"metadata", func(t *domain.Ticket) string { return t.Metadata.String() }},
	}}
}

// Diff lists the changes from before to after. A nil before means creation.
func (r *Recorder) Diff(before, after *domain.Ticket) []Change {
	if after == nil {
		return nil
	}
	if before == nil {
		return []Change{{Action: domain.HistoryActionCreate, Field: "ticket", NewValue: after.TicketCode}}
	}

	changes := make([]Change, 0, 2)
	for _, f := range r.fields {
		oldVal, newVal := f.value(before), f.value(after)
		if oldVal == newVal {
			continue
		}
		changes = append(changes, Change{
			Action:   domain.HistoryActionUpdate,
			Field:    f.name,
			OldValue: oldVal,
			NewValue: newVal,
		})
	}

	for i := len(before.Comments); i < len(after.Comments); i++ {
		changes = append(changes, Change{
			Action:   domain.HistoryActionComment,
			Field:    "comments",
			NewValue: after.Comments[i].ID,
		})
	}
	for i := len(before.Attachments); i < len(after.Attachments); i++ {
		changes = append(changes, Change{
			Action:   domain.HistoryActionAttachment,
			Field:    "attachments",
			NewValue: after.Attachments[i].Name,
		})
	}
	return changes
}

// Record appends one entry per change to the ticket's history and returns the new entries.
func (r *Recorder) Record(t *domain.Ticket, changes []Change, actor, reason string, now time.Time) []domain.HistoryEntry {
	appended := make([]domain.HistoryEntry, 0, len(changes))
	for _, c := range changes {
		entry := domain.HistoryEntry{
			Action:    c.Action,
			Field:     c.Field,
			OldValue:  c.OldValue,
			NewValue:  c.NewValue,
			Actor:     actor,
			Timestamp: now,
			Reason:    reason,
		}
		t.History = append(t.History, entry)
		appended = append(appended, entry)
	}
	return appended
}
