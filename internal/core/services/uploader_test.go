package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

type bulkCall struct {
	index  string
	docIDs []string
}

// mockBulkWriter implements driven.BulkWriter.
type mockBulkWriter struct {
	mu       sync.Mutex
	calls    []bulkCall
	attempts int

	// failures makes the first N calls return failErr.
	failures int
	failErr  error

	// failDocPrefix fails any call carrying a document whose ID starts
	// with the prefix. Lets one source's delivery fail while another's
	// succeeds through the same writer.
	failDocPrefix string

	// rejectIDs marks documents the destination rejects item-level.
	rejectIDs map[string]bool
}

func (w *mockBulkWriter) Write(_ context.Context, index string, docs []domain.Document) (*driven.BulkOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.attempts++
	if w.failures > 0 {
		w.failures--
		return nil, w.failErr
	}
	if w.failDocPrefix != "" {
		for _, doc := range docs {
			if strings.HasPrefix(doc.ID, w.failDocPrefix) {
				return nil, w.failErr
			}
		}
	}

	call := bulkCall{index: index}
	outcome := &driven.BulkOutcome{}
	for _, doc := range docs {
		call.docIDs = append(call.docIDs, doc.ID)
		if w.rejectIDs[doc.ID] {
			outcome.Rejected = append(outcome.Rejected, driven.BulkReject{
				DocID: doc.ID, Status: 400, Reason: "mapper_parsing_exception",
			})
			continue
		}
		outcome.Accepted++
	}
	w.calls = append(w.calls, call)
	return outcome, nil
}

func (w *mockBulkWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Factor: 2}
}

func docAt(id string, epoch int64) domain.Document {
	return domain.Document{ID: id, Time: epoch, Fields: map[string]any{"RecordTime": epoch}}
}

// January and March 2024, for monthly index routing.
const (
	epochJan = int64(1704067200)
	epochMar = int64(1709251200)
)

func TestUploader_IndexFor(t *testing.T) {
	u := NewUploader(&mockBulkWriter{}, UploaderConfig{IndexTemplate: "pool-jobs"})

	assert.Equal(t, "pool-jobs-2024-01", u.indexFor(epochJan))
	assert.Equal(t, "pool-jobs-2024-03", u.indexFor(epochMar))
}

func TestUploadSession_BatchesPerIndex(t *testing.T) {
	writer := &mockBulkWriter{}
	u := NewUploader(writer, UploaderConfig{BatchSize: 2, Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan))
	s.Add(ctx, docAt("b#1", epochMar))

	// Neither index buffer is full yet.
	assert.Equal(t, 0, writer.callCount())

	// Second January document fills that batch.
	s.Add(ctx, docAt("c#1", epochJan))
	require.Equal(t, 1, writer.callCount())
	assert.Equal(t, "htcondor-jobs-2024-01", writer.calls[0].index)
	assert.Equal(t, []string{"a#1", "c#1"}, writer.calls[0].docIDs)

	s.Flush(ctx)
	require.Equal(t, 2, writer.callCount())
	assert.Equal(t, "htcondor-jobs-2024-03", writer.calls[1].index)

	report := s.Report()
	assert.Equal(t, 3, report.Accepted)
	assert.False(t, report.Failed())
}

func TestUploadSession_MetadataStamping(t *testing.T) {
	writer := &mockBulkWriter{}
	u := NewUploader(writer, UploaderConfig{
		Retry:    fastRetry(),
		Metadata: map[string]any{"spider_hostname": "harvester01"},
	})
	ctx := context.Background()

	doc := docAt("a#1", epochJan)
	s := u.NewSession("schedd1")
	s.Add(ctx, doc)
	s.Flush(ctx)

	meta, ok := doc.Fields["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "harvester01", meta["spider_hostname"])
}

func TestUploadSession_DeadAfterBatchFailure(t *testing.T) {
	writer := &mockBulkWriter{
		failures: 1,
		failErr:  fmt.Errorf("%w: mapping conflict", domain.ErrDestinationRejected),
	}
	u := NewUploader(writer, UploaderConfig{BatchSize: 1, Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan)) // batch fails permanently
	s.Add(ctx, docAt("b#1", epochJan)) // dropped: session is dead
	s.Add(ctx, docAt("c#1", epochMar)) // dropped
	s.Flush(ctx)

	report := s.Report()
	assert.True(t, report.Failed())
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 0, report.Accepted)
	assert.Equal(t, 2, report.Unsent)
	assert.Contains(t, report.LastError, "mapping conflict")

	// The failed batch was attempted exactly once: a rejected call is
	// permanent and must not be retried.
	writer.mu.Lock()
	assert.Equal(t, 1, writer.attempts)
	writer.mu.Unlock()
}

func TestUploadSession_TransientFailureRetried(t *testing.T) {
	writer := &mockBulkWriter{
		failures: 1,
		failErr:  fmt.Errorf("%w: connection refused", domain.ErrDestinationUnavailable),
	}
	u := NewUploader(writer, UploaderConfig{Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan))
	s.Flush(ctx)

	report := s.Report()
	assert.False(t, report.Failed())
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, writer.callCount())
}

func TestUploadSession_RetriesExhausted(t *testing.T) {
	writer := &mockBulkWriter{
		failures: 10,
		failErr:  fmt.Errorf("%w: connection refused", domain.ErrDestinationUnavailable),
	}
	u := NewUploader(writer, UploaderConfig{Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan))
	s.Flush(ctx)

	report := s.Report()
	assert.True(t, report.Failed())
	assert.Equal(t, 1, report.FailedBatches)
}

func TestUploadSession_RejectsCounted(t *testing.T) {
	writer := &mockBulkWriter{rejectIDs: map[string]bool{"b#1": true}}
	u := NewUploader(writer, UploaderConfig{Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan))
	s.Add(ctx, docAt("b#1", epochJan))
	s.Flush(ctx)

	// Item-level rejects are permanent: counted, discarded, and the
	// session stays alive.
	report := s.Report()
	assert.False(t, report.Failed())
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 0, report.Unsent)
}

func TestUploadSession_DryRun(t *testing.T) {
	writer := &mockBulkWriter{}
	u := NewUploader(writer, UploaderConfig{DryRun: true, Retry: fastRetry()})
	ctx := context.Background()

	s := u.NewSession("schedd1")
	s.Add(ctx, docAt("a#1", epochJan))
	s.Flush(ctx)

	assert.Equal(t, 0, writer.callCount())
	assert.False(t, s.Report().Failed())
}
