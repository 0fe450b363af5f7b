package condor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// stubHistoryClient implements driven.HistoryClient.
type stubHistoryClient struct {
	ads []*domain.ClassAd
	err error

	mu      sync.Mutex
	lastReq driven.HistoryRequest
}

func (c *stubHistoryClient) QueryHistory(ctx context.Context, req driven.HistoryRequest) (<-chan *domain.ClassAd, <-chan error) {
	c.mu.Lock()
	c.lastReq = req
	c.mu.Unlock()

	out := make(chan *domain.ClassAd)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if c.err != nil {
			errs <- c.err
			return
		}
		for _, ad := range c.ads {
			select {
			case out <- ad:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return out, errs
}

func (c *stubHistoryClient) request() driven.HistoryRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReq
}

func historyAd(ecs int64) *domain.ClassAd {
	ad := domain.NewClassAd()
	ad.Set("GlobalJobId", domain.StringValue("schedd1#1.0#1"))
	ad.Set("EnteredCurrentStatus", domain.IntValue(ecs))
	return ad
}

func drain(t *testing.T, ads <-chan *domain.ClassAd, errs <-chan error) ([]*domain.ClassAd, *driven.FetchComplete, error) {
	t.Helper()

	var got []*domain.ClassAd
	var complete *driven.FetchComplete
	var failure error

	for ads != nil || errs != nil {
		select {
		case ad, ok := <-ads:
			if !ok {
				ads = nil
				continue
			}
			got = append(got, ad)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if fc, done := driven.IsFetchComplete(err); done {
				complete = fc
				continue
			}
			failure = err
		case <-time.After(2 * time.Second):
			t.Fatal("fetch did not finish")
		}
	}
	return got, complete, failure
}

func testSource() domain.Source {
	return domain.Source{
		Name: "schedd1",
		Kind: domain.KindSchedd,
		Host: "schedd1.example.org",
		Pool: "collector.example.org",
	}
}

func TestFactory_Create(t *testing.T) {
	f := NewFactory(&stubHistoryClient{}, time.Minute, time.Minute)

	src, err := f.Create(testSource())
	require.NoError(t, err)
	assert.Equal(t, "schedd1", src.Source().Name)

	_, err = f.Create(domain.Source{Name: "x", Kind: "collector"})
	assert.ErrorIs(t, err, domain.ErrUnknownSource)
}

func TestFetch_ForwardsAdsAndAdvancesCursor(t *testing.T) {
	client := &stubHistoryClient{
		ads: []*domain.ClassAd{historyAd(20), historyAd(35), historyAd(30)},
	}
	f := NewFactory(client, time.Minute, time.Minute)
	src, err := f.Create(testSource())
	require.NoError(t, err)

	ads, errs := src.Fetch(context.Background(), 10, 0)
	got, complete, failure := drain(t, ads, errs)

	require.NoError(t, failure)
	require.NotNil(t, complete)
	assert.Len(t, got, 3)
	assert.Equal(t, int64(35), complete.NewCursor)
	assert.False(t, complete.Truncated)

	req := client.request()
	assert.Equal(t, "EnteredCurrentStatus >= 10", req.Constraint)
	assert.Equal(t, "schedd1.example.org", req.Host)
	assert.Equal(t, "collector.example.org", req.Pool)
}

func TestFetch_StartdConstraint(t *testing.T) {
	client := &stubHistoryClient{}
	f := NewFactory(client, time.Minute, time.Minute)
	src, err := f.Create(domain.Source{Name: "n1", Kind: domain.KindStartd, Host: "n1.example.org"})
	require.NoError(t, err)

	ads, errs := src.Fetch(context.Background(), 42, 0)
	_, complete, failure := drain(t, ads, errs)

	require.NoError(t, failure)
	require.NotNil(t, complete)
	assert.Equal(t, "LastHeardFrom >= 42", client.request().Constraint)
	// Empty pull keeps the cursor where it was.
	assert.Equal(t, int64(42), complete.NewCursor)
}

func TestFetch_TruncatesAtMaxRecords(t *testing.T) {
	client := &stubHistoryClient{
		ads: []*domain.ClassAd{historyAd(20), historyAd(25), historyAd(30), historyAd(35)},
	}
	f := NewFactory(client, time.Minute, time.Minute)
	src, err := f.Create(testSource())
	require.NoError(t, err)

	ads, errs := src.Fetch(context.Background(), 10, 2)
	got, complete, failure := drain(t, ads, errs)

	require.NoError(t, failure)
	require.NotNil(t, complete)
	assert.Len(t, got, 2)
	assert.True(t, complete.Truncated)

	// The cursor reflects only forwarded ads, so the next pull resumes
	// at the cut.
	assert.Equal(t, int64(25), complete.NewCursor)
	assert.Equal(t, 2, client.request().Limit)
}

func TestFetch_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		errIn   error
		wantErr error
	}{
		{"tagged unreachable", domain.ErrSourceUnreachable, domain.ErrSourceUnreachable},
		{"tagged protocol", domain.ErrSourceProtocol, domain.ErrSourceProtocol},
		{"deadline", context.DeadlineExceeded, domain.ErrSourceTimeout},
		{"untagged", errors.New("socket closed"), domain.ErrSourceUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubHistoryClient{err: tt.errIn}
			f := NewFactory(client, time.Minute, time.Minute)
			src, err := f.Create(testSource())
			require.NoError(t, err)

			ads, errs := src.Fetch(context.Background(), 10, 0)
			_, complete, failure := drain(t, ads, errs)

			assert.Nil(t, complete)
			assert.ErrorIs(t, failure, tt.wantErr)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	// A client that never produces anything trips the per-kind timeout.
	client := &hangingClient{}
	f := NewFactory(client, 20*time.Millisecond, 20*time.Millisecond)
	src, err := f.Create(testSource())
	require.NoError(t, err)

	ads, errs := src.Fetch(context.Background(), 10, 0)
	_, complete, failure := drain(t, ads, errs)

	assert.Nil(t, complete)
	assert.ErrorIs(t, failure, domain.ErrSourceTimeout)
}

// hangingClient never produces anything; only the adapter's timeout
// can end the pull.
type hangingClient struct{}

func (c *hangingClient) QueryHistory(_ context.Context, _ driven.HistoryRequest) (<-chan *domain.ClassAd, <-chan error) {
	return make(chan *domain.ClassAd), make(chan error)
}
