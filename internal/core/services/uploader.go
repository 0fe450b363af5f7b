package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
	"github.com/gridops/condor-spider/internal/logger"
)

// UploaderConfig tunes batching and delivery.
type UploaderConfig struct {
	// BatchSize is the maximum number of documents per bulk call.
	BatchSize int

	// Timeout bounds one bulk call.
	Timeout time.Duration

	// Retry is the policy applied to transient bulk failures.
	Retry RetryPolicy

	// IndexTemplate is the destination index name prefix; documents
	// land in monthly indices derived from their record time.
	IndexTemplate string

	// Metadata is merged into every document under the "metadata"
	// field (spider host, run time, source pool and the like).
	Metadata map[string]any

	// DryRun discards batches at the delivery step instead of calling
	// the destination.
	DryRun bool
}

const (
	defaultBatchSize     = 250
	defaultUploadTimeout = 60 * time.Second
)

// Uploader groups normalised documents into bounded batches and
// delivers them through a BulkWriter with retry and backoff. One
// Uploader serves the whole process; each source opens its own session
// per cycle.
type Uploader struct {
	writer driven.BulkWriter
	cfg    UploaderConfig
}

// NewUploader builds an Uploader. Zero config values get defaults.
func NewUploader(writer driven.BulkWriter, cfg UploaderConfig) *Uploader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUploadTimeout
	}
	if cfg.IndexTemplate == "" {
		cfg.IndexTemplate = "htcondor-jobs"
	}
	return &Uploader{writer: writer, cfg: cfg}
}

// indexFor derives the monthly destination index for a record time.
func (u *Uploader) indexFor(epoch int64) string {
	return fmt.Sprintf("%s-%s", u.cfg.IndexTemplate, time.Unix(epoch, 0).UTC().Format("2006-01"))
}

// NewSession opens an upload session for one source's cycle. Sessions
// are not safe for concurrent use; each source worker owns its own.
func (u *Uploader) NewSession(source string) *UploadSession {
	return &UploadSession{
		uploader: u,
		source:   source,
		buffers:  make(map[string][]domain.Document),
	}
}

// UploadSession buffers one source's documents per destination index
// and flushes full batches as they accumulate, preserving fetch order
// within each index.
//
// Once a batch fails after exhausting retries the session goes dead:
// later documents are dropped and counted as unsent, so the source's
// checkpoint cannot advance past the failed range.
type UploadSession struct {
	uploader *Uploader
	source   string
	buffers  map[string][]domain.Document
	report   domain.DeliveryReport
	dead     bool
}

// Add queues one document, flushing its index buffer when full.
func (s *UploadSession) Add(ctx context.Context, doc domain.Document) {
	if s.dead {
		s.report.Unsent++
		return
	}

	if len(s.uploader.cfg.Metadata) > 0 {
		s.stampMetadata(&doc)
	}

	idx := s.uploader.indexFor(doc.Time)
	s.buffers[idx] = append(s.buffers[idx], doc)
	if len(s.buffers[idx]) >= s.uploader.cfg.BatchSize {
		s.flushIndex(ctx, idx)
	}
}

// Flush delivers every remaining partial batch. Call once after the
// source's fetch stream ends; the outcome is in Report.
func (s *UploadSession) Flush(ctx context.Context) {
	// Deterministic flush order.
	indices := make([]string, 0, len(s.buffers))
	for idx := range s.buffers {
		if len(s.buffers[idx]) > 0 {
			indices = append(indices, idx)
		}
	}
	sort.Strings(indices)

	for _, idx := range indices {
		if s.dead {
			s.report.Unsent += len(s.buffers[idx])
			s.buffers[idx] = nil
			continue
		}
		s.flushIndex(ctx, idx)
	}
}

// Report returns the session's delivery accounting so far.
func (s *UploadSession) Report() domain.DeliveryReport {
	return s.report
}

func (s *UploadSession) stampMetadata(doc *domain.Document) {
	meta, _ := doc.Fields["metadata"].(map[string]any)
	if meta == nil {
		meta = make(map[string]any, len(s.uploader.cfg.Metadata))
	}
	for k, v := range s.uploader.cfg.Metadata {
		meta[k] = v
	}
	doc.Fields["metadata"] = meta
}

func (s *UploadSession) flushIndex(ctx context.Context, idx string) {
	docs := s.buffers[idx]
	if len(docs) == 0 {
		return
	}
	s.buffers[idx] = nil

	if s.uploader.cfg.DryRun {
		logger.Debug("dry-run: discarding %d documents for %s (%s)", len(docs), idx, s.source)
		return
	}

	var outcome *driven.BulkOutcome
	err := attemptWithRetry(ctx, s.uploader.cfg.Retry, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, s.uploader.cfg.Timeout)
		defer cancel()

		out, werr := s.uploader.writer.Write(cctx, idx, docs)
		if werr != nil {
			return werr
		}
		outcome = out
		return nil
	})

	if err != nil {
		s.dead = true
		s.report.FailedBatches++
		s.report.LastError = err.Error()
		logger.Warn("bulk delivery of %d documents to %s failed for %s: %v", len(docs), idx, s.source, err)
		return
	}

	s.report.Accepted += outcome.Accepted
	s.report.Rejected += len(outcome.Rejected)
	for _, rej := range outcome.Rejected {
		logger.Debug("document %s rejected by %s (status %d): %s", rej.DocID, idx, rej.Status, rej.Reason)
	}
	if len(outcome.Rejected) > 0 {
		logger.Warn("destination rejected %d of %d documents for %s", len(outcome.Rejected), len(docs), s.source)
	}
}
