package domain

import "errors"

// Domain errors form the failure taxonomy of the harvest pipeline.
// Per-source and per-batch errors are caught at their own boundary and
// accounted for; none of them abort a cycle.
var (
	// ErrSourceUnreachable indicates a connection or authentication
	// failure while contacting a remote history source.
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrSourceTimeout indicates a history query exceeded its timeout.
	ErrSourceTimeout = errors.New("source query timed out")

	// ErrSourceProtocol indicates a malformed response from a source.
	ErrSourceProtocol = errors.New("source protocol error")

	// ErrDestinationUnavailable indicates the destination store could
	// not be reached. Transient; delivery is retried.
	ErrDestinationUnavailable = errors.New("destination unavailable")

	// ErrDestinationTimeout indicates a bulk write exceeded its timeout.
	// Transient; delivery is retried.
	ErrDestinationTimeout = errors.New("destination timed out")

	// ErrDestinationRejected indicates the destination refused a bulk
	// request outright (not per-document rejects).
	ErrDestinationRejected = errors.New("destination rejected request")

	// ErrCheckpointWrite indicates a checkpoint could not be saved.
	// Blocks that source's commit only.
	ErrCheckpointWrite = errors.New("checkpoint write failed")

	// ErrRecordDiscarded indicates a record was dropped during
	// normalisation (missing identity attribute). Not a failure.
	ErrRecordDiscarded = errors.New("record discarded")

	// ErrHarvestInProgress indicates a harvest cycle for the source is
	// already running; the new cycle skips it.
	ErrHarvestInProgress = errors.New("harvest already in progress")

	// ErrUnknownSource indicates a source name that is not configured.
	ErrUnknownSource = errors.New("unknown source")
)
