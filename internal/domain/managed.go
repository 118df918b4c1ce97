package domain

import "fmt"

// Status is the dashboard-side lifecycle of an incident. It is owned by the
// dashboard and never feeds back into deduplication.
type Status string

const (
	StatusNew          Status = "NEW"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusAcknowledged, StatusResolved:
		return Status(s), nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

// ManagedIncident is a RawIncident plus the dashboard's mutable status.
type ManagedIncident struct {
	RawIncident
	Status   Status `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

// MergeManaged rebuilds the managed list from a fresh poll. Incidents absent
// from fresh are dropped; known ids keep their status and assignee; unknown
// ids start as NEW. Output order follows fresh.
func MergeManaged(prev []ManagedIncident, fresh []RawIncident) []ManagedIncident {
	known := make(map[string]ManagedIncident, len(prev))
	for _, m := range prev {
		known[m.ID] = m
	}

	out := make([]ManagedIncident, 0, len(fresh))
	for _, inc := range fresh {
		m := ManagedIncident{RawIncident: inc, Status: StatusNew}
		if existing, ok := known[inc.ID]; ok {
			m.Status = existing.Status
			m.Assignee = existing.Assignee
		}
		out = append(out, m)
	}
	return out
}
