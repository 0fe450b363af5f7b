// Package elastic implements the destination bulk write capability on
// Elasticsearch. Documents are indexed under their stable IDs, so
// re-sending a batch after an ambiguous timeout upserts rather than
// duplicates.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"golang.org/x/time/rate"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
	"github.com/gridops/condor-spider/internal/logger"
)

// Ensure Writer implements the port.
var _ driven.BulkWriter = (*Writer)(nil)

// Config holds the Elasticsearch connection settings.
type Config struct {
	// Addresses is the list of node URLs.
	Addresses []string

	// Username and Password enable basic auth when both are set.
	Username string
	Password string

	// RateLimit caps bulk calls per second across all workers.
	// Zero disables throttling.
	RateLimit float64
}

// Writer is a BulkWriter backed by an Elasticsearch cluster. The first
// write to an index creates it with the spider's mappings; created
// indices are cached for the process lifetime.
type Writer struct {
	es      *elasticsearch.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	created map[string]bool
}

// NewWriter connects a Writer. The connection itself is lazy; failures
// surface on the first write.
func NewWriter(cfg Config) (*Writer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Writer{
		es:      es,
		limiter: limiter,
		created: make(map[string]bool),
	}, nil
}

// Write bulk-indexes docs into index and returns per-document
// accounting. A non-nil error means the whole call failed; transient
// failures are tagged for retry.
func (w *Writer) Write(ctx context.Context, index string, docs []domain.Document) (*driven.BulkOutcome, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, classify(err)
		}
	}
	if err := w.ensureIndex(ctx, index); err != nil {
		return nil, err
	}

	body, err := bulkBody(docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDestinationRejected, err)
	}

	req := esapi.BulkRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, w.es)
	if err != nil {
		return nil, classify(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: bulk to %s: %s", domain.ErrDestinationUnavailable, index, res.Status())
		}
		return nil, fmt.Errorf("%w: bulk to %s: %s", domain.ErrDestinationRejected, index, res.Status())
	}

	return parseBulkResponse(res.Body, len(docs))
}

// bulkBody renders the NDJSON bulk payload: an index action line with
// the document's stable ID followed by the document source.
func bulkBody(docs []domain.Document) ([]byte, error) {
	var buf bytes.Buffer
	for i := range docs {
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_id": docs[i].ID},
		})
		if err != nil {
			return nil, err
		}
		source, err := json.Marshal(docs[i].Fields)
		if err != nil {
			return nil, fmt.Errorf("marshal document %s: %w", docs[i].ID, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func parseBulkResponse(r io.Reader, sent int) (*driven.BulkOutcome, error) {
	var resp bulkResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decode bulk response: %v", domain.ErrDestinationRejected, err)
	}

	outcome := &driven.BulkOutcome{}
	for _, item := range resp.Items {
		// One action type per item; bulk indexing only uses "index".
		for _, detail := range item {
			if detail.Status >= 200 && detail.Status < 300 {
				outcome.Accepted++
				continue
			}
			rej := driven.BulkReject{DocID: detail.ID, Status: detail.Status}
			if detail.Error != nil {
				rej.Reason = detail.Error.Reason
			}
			outcome.Rejected = append(outcome.Rejected, rej)
		}
	}

	// A response with no items at all is malformed.
	if len(resp.Items) == 0 && sent > 0 {
		return nil, fmt.Errorf("%w: bulk response carried no items for %d documents", domain.ErrDestinationRejected, sent)
	}
	return outcome, nil
}

// ensureIndex creates the index with the spider's mappings on first
// use. An index that already exists is fine.
func (w *Writer) ensureIndex(ctx context.Context, index string) error {
	w.mu.Lock()
	if w.created[index] {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	body, err := json.Marshal(map[string]any{
		"mappings": Mappings(),
		"settings": map[string]any{"index": Settings()},
	})
	if err != nil {
		return fmt.Errorf("marshal index body: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, w.es)
	if err != nil {
		return classify(err)
	}
	defer res.Body.Close()

	// 400 here means the index already exists (or raced another
	// creator); both are fine for our purposes.
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: create index %s: %s", domain.ErrDestinationUnavailable, index, res.Status())
		}
		return fmt.Errorf("%w: create index %s: %s", domain.ErrDestinationRejected, index, res.Status())
	}
	if !res.IsError() {
		logger.Info("created index %s", index)
	}

	w.mu.Lock()
	w.created[index] = true
	w.mu.Unlock()
	return nil
}

// classify tags transport-level failures for the retry policy.
func classify(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrDestinationTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrDestinationUnavailable, err)
	}
}
