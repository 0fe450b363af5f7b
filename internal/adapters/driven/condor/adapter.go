// Package condor adapts the opaque history query capability of pool
// daemons into the core's HistorySource port. It owns the incremental
// pull semantics: cursor constraints, per-kind timeouts, record caps
// and failure classification. The wire protocol itself lives behind
// the injected HistoryClient.
package condor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// Ensure the adapter satisfies its ports.
var (
	_ driven.SourceFactory = (*Factory)(nil)
	_ driven.HistorySource = (*historySource)(nil)
)

// Factory builds history source adapters over a shared wire client.
type Factory struct {
	client        driven.HistoryClient
	scheddTimeout time.Duration
	startdTimeout time.Duration
}

// NewFactory creates a Factory with per-kind query timeouts. A zero
// timeout disables the bound for that kind.
func NewFactory(client driven.HistoryClient, scheddTimeout, startdTimeout time.Duration) *Factory {
	return &Factory{
		client:        client,
		scheddTimeout: scheddTimeout,
		startdTimeout: startdTimeout,
	}
}

// Create returns the adapter for one source descriptor.
func (f *Factory) Create(src domain.Source) (driven.HistorySource, error) {
	if !src.Kind.Valid() {
		return nil, fmt.Errorf("%w: source %s has kind %q", domain.ErrUnknownSource, src.Name, src.Kind)
	}
	timeout := f.scheddTimeout
	if src.Kind == domain.KindStartd {
		timeout = f.startdTimeout
	}
	return &historySource{client: f.client, source: src, timeout: timeout}, nil
}

type historySource struct {
	client  driven.HistoryClient
	source  domain.Source
	timeout time.Duration
}

func (h *historySource) Source() domain.Source {
	return h.source
}

// Fetch pulls history at or after cursor, forwarding at most
// maxRecords ads. The new cursor reflects only the ads actually
// forwarded, so a truncated pull resumes without a gap.
func (h *historySource) Fetch(ctx context.Context, cursor int64, maxRecords int) (<-chan *domain.ClassAd, <-chan error) {
	out := make(chan *domain.ClassAd)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		fctx := ctx
		cancel := context.CancelFunc(func() {})
		if h.timeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, h.timeout)
		} else {
			fctx, cancel = context.WithCancel(ctx)
		}
		defer cancel()

		req := driven.HistoryRequest{
			Kind:       h.source.Kind,
			Host:       h.source.Host,
			Pool:       h.source.Pool,
			Constraint: constraintFor(h.source.Kind, cursor),
			Limit:      maxRecords,
		}
		ads, aerrs := h.client.QueryHistory(fctx, req)

		newCursor := cursor
		count := 0
		truncated := false

	pull:
		for ads != nil || aerrs != nil {
			select {
			case err, ok := <-aerrs:
				if !ok {
					aerrs = nil
					continue
				}
				if err != nil {
					errs <- h.classify(err)
					return
				}

			case ad, ok := <-ads:
				if !ok {
					ads = nil
					continue
				}
				select {
				case out <- ad:
				case <-ctx.Done():
					errs <- h.classify(ctx.Err())
					return
				}
				count++
				if b := boundaryOf(ad, h.source.Kind); b > newCursor {
					newCursor = b
				}
				if maxRecords > 0 && count >= maxRecords {
					truncated = true
					cancel() // abandon the rest of the pull
					break pull
				}

			case <-fctx.Done():
				errs <- h.classify(fctx.Err())
				return
			}
		}

		errs <- &driven.FetchComplete{NewCursor: newCursor, Truncated: truncated}
	}()

	return out, errs
}

// classify maps a failure onto the source error taxonomy. Errors the
// client already tagged pass through unchanged.
func (h *historySource) classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrSourceUnreachable),
		errors.Is(err, domain.ErrSourceTimeout),
		errors.Is(err, domain.ErrSourceProtocol):
		return fmt.Errorf("%s: %w", h.source.Name, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", h.source.Name, domain.ErrSourceTimeout)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s: %w: %v", h.source.Name, domain.ErrSourceUnreachable, err)
	}
}

// constraintFor builds the history constraint expression for a cursor.
func constraintFor(kind domain.SourceKind, cursor int64) string {
	if kind == domain.KindStartd {
		return fmt.Sprintf("LastHeardFrom >= %d", cursor)
	}
	return fmt.Sprintf("EnteredCurrentStatus >= %d", cursor)
}

// boundaryOf extracts an ad's position in the cursor dimension.
func boundaryOf(ad *domain.ClassAd, kind domain.SourceKind) int64 {
	attr := "EnteredCurrentStatus"
	if kind == domain.KindStartd {
		attr = "LastHeardFrom"
	}
	if b, ok := ad.Lookup(attr).AsInt(); ok {
		return b
	}
	return 0
}
