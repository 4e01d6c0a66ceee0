package models

import "time"

// PreviewKind tags how a message preview may be rendered.
type PreviewKind string

const (
	// PreviewPlain is inert text; safe to render anywhere.
	PreviewPlain PreviewKind = "plain"
	// PreviewHTML is sanitized markup that must still be rendered inside a
	// sandboxed container by the presentation layer.
	PreviewHTML PreviewKind = "html"
)

// MessageSummary is the display-ready envelope of one message plus a short
// body excerpt. Summaries are immutable and produced fresh on every fetch;
// IDs are unique within one fetch result but not stable across sessions.
type MessageSummary struct {
	ID             string      `json:"id"`
	Subject        string      `json:"subject"`
	From           string      `json:"from"`
	FromName       string      `json:"from_name,omitempty"`
	Date           time.Time   `json:"date"`
	Preview        string      `json:"preview"`
	PreviewKind    PreviewKind `json:"preview_kind"`
	HasAttachments bool        `json:"has_attachments"`

	// ParseFailed marks a placeholder entry kept in place of a message whose
	// envelope or body could not be parsed. The slot preserves recency order;
	// the failure is counted in the fetch result's warning total.
	ParseFailed bool `json:"parse_failed,omitempty"`
}
