package domain

// Document is a normalised record ready for bulk delivery.
type Document struct {
	// ID is the stable, content-derived document key used for idempotent
	// upsert at the destination. Re-sending an already-accepted document
	// must not duplicate it.
	ID string

	// Time is the record time in epoch seconds. It drives time-based
	// index naming at the destination.
	Time int64

	// Fields is the flat field mapping delivered to the destination.
	Fields map[string]any
}
