package domain

import (
	"sort"
	"time"
)

// HistoryAction describes what kind of change a history entry captures.
type HistoryAction string

const (
	HistoryActionCreate     HistoryAction = "CREATE"
	HistoryActionUpdate     HistoryAction = "UPDATE"
	HistoryActionComment    HistoryAction = "COMMENT"
	HistoryActionAttachment HistoryAction = "ATTACHMENT"
)

// HistoryEntry is an immutable audit trail entry embedded in the ticket.
type HistoryEntry struct {
	Action    HistoryAction `json:"action"`
	Field     string        `json:"field,omitempty"`
	OldValue  string        `json:"oldValue,omitempty"`
	NewValue  string        `json:"newValue,omitempty"`
	Actor     string        `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
	Reason    string        `json:"reason,omitempty"`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
