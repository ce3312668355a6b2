package game

import "time"

// EventLogEntry is one immutable entry in a session's append-only log. IDs
// are sequential and scoped to the turn they occurred in.
type EventLogEntry struct {
	ID         string         `json:"id"`
	Turn       int            `json:"turn"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	Timestamp  time.Time      `json:"timestamp"`
	ChipsDelta *ChipDelta     `json:"chipsDelta,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// CloneEntry returns a deep copy of the entry.
func CloneEntry(e EventLogEntry) EventLogEntry {
	out := e
	if e.ChipsDelta != nil {
		delta := *e.ChipsDelta
		out.ChipsDelta = &delta
	}
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			out.Details[k] = v
		}
	}
	return out
}

// CloneEntries deep-copies a slice of log entries.
func CloneEntries(entries []EventLogEntry) []EventLogEntry {
	if entries == nil {
		return nil
	}
	out := make([]EventLogEntry, len(entries))
	for i, e := range entries {
		out[i] = CloneEntry(e)
	}
	return out
}
