package domain

import "time"

// SourceKind identifies which kind of remote history a source serves.
type SourceKind string

const (
	// KindSchedd is a scheduler daemon holding job history.
	KindSchedd SourceKind = "schedd"

	// KindStartd is an execution node daemon holding machine history.
	KindStartd SourceKind = "startd"
)

// Valid reports whether the kind is one of the known source kinds.
func (k SourceKind) Valid() bool {
	return k == KindSchedd || k == KindStartd
}

// Source describes one remote history source in the pool.
// Sources are supplied by configuration and are immutable for the
// lifetime of the process.
type Source struct {
	// Name is the unique identity of the source (the daemon's advertised
	// Name attribute). Checkpoints are keyed by it.
	Name string

	// Kind selects the history query shape (schedd vs startd).
	Kind SourceKind

	// Host is the address the history query is issued against.
	Host string

	// Pool is the collector host the source belongs to. Informational;
	// stamped into harvested document metadata.
	Pool string
}

// Checkpoint marks the last confirmed-delivered position for a source.
// It is only written after every record up to and including Cursor has a
// confirmed or policy-discarded delivery outcome.
type Checkpoint struct {
	// SourceID is the Name of the source this checkpoint belongs to.
	SourceID string

	// Cursor is the completion boundary, in epoch seconds. The next
	// cycle fetches records at or after this position.
	Cursor int64

	// Records is how many records the producing cycle processed.
	Records int

	// Truncated records whether the producing cycle hit the per-cycle
	// record cap before exhausting the source's history.
	Truncated bool

	// UpdatedAt is when the checkpoint was written.
	UpdatedAt time.Time
}
