package condor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
	"github.com/gridops/condor-spider/internal/logger"
)

// Ensure the client satisfies the port.
var _ driven.HistoryClient = (*CommandClient)(nil)

// CommandClient queries daemon history through the pool's standard
// query tools (condor_history for schedds, condor_status for startds),
// streaming their JSON output into ClassAds. The tools speak the wire
// protocol; this client only owns invocation and decoding.
type CommandClient struct {
	// HistoryBinary and StatusBinary override the tool names, mainly
	// for tests. Empty means the standard names resolved via PATH.
	HistoryBinary string
	StatusBinary  string
}

// NewCommandClient returns a client using the standard tool names.
func NewCommandClient() *CommandClient {
	return &CommandClient{}
}

// QueryHistory runs the query tool for req and streams decoded ads.
// Both channels close when the tool exits; a failure arrives on the
// error channel after any ads already decoded.
func (c *CommandClient) QueryHistory(ctx context.Context, req driven.HistoryRequest) (<-chan *domain.ClassAd, <-chan error) {
	out := make(chan *domain.ClassAd)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		name, args := c.command(req)
		logger.Debug("running %s %s", name, strings.Join(args, " "))

		cmd := exec.CommandContext(ctx, name, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- fmt.Errorf("%w: %v", domain.ErrSourceUnreachable, err)
			return
		}
		var stderr strings.Builder
		cmd.Stderr = &stderr

		if err := cmd.Start(); err != nil {
			errs <- fmt.Errorf("%w: start %s: %v", domain.ErrSourceUnreachable, name, err)
			return
		}

		// The tools emit one JSON array of ad objects. Decode it
		// incrementally so large histories stream instead of buffering.
		dec := json.NewDecoder(stdout)
		dec.UseNumber()

		decodeErr := streamAds(ctx, dec, out)
		if decodeErr != nil {
			// Drain so Wait cannot block on a full pipe.
			io.Copy(io.Discard, stdout)
		}

		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			errs <- ctx.Err()
			return
		}
		if waitErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = waitErr.Error()
			}
			errs <- fmt.Errorf("%w: %s: %s", domain.ErrSourceUnreachable, name, msg)
			return
		}
		if decodeErr != nil {
			errs <- fmt.Errorf("%w: decode %s output: %v", domain.ErrSourceProtocol, name, decodeErr)
			return
		}
	}()

	return out, errs
}

// command builds the tool invocation for one request.
func (c *CommandClient) command(req driven.HistoryRequest) (string, []string) {
	var name string
	var args []string

	if req.Kind == domain.KindStartd {
		name = c.StatusBinary
		if name == "" {
			name = "condor_status"
		}
		args = append(args, "-startd")
	} else {
		name = c.HistoryBinary
		if name == "" {
			name = "condor_history"
		}
		args = append(args, "-name", req.Host)
	}

	if req.Kind == domain.KindStartd && req.Host != "" {
		args = append(args, "-direct", req.Host)
	}
	if req.Pool != "" {
		args = append(args, "-pool", req.Pool)
	}
	if req.Constraint != "" {
		args = append(args, "-constraint", req.Constraint)
	}
	if req.Limit > 0 && req.Kind != domain.KindStartd {
		args = append(args, "-limit", strconv.Itoa(req.Limit))
	}
	args = append(args, "-json")
	return name, args
}

// streamAds decodes the array elements one by one onto out.
func streamAds(ctx context.Context, dec *json.Decoder, out chan<- *domain.ClassAd) error {
	tok, err := dec.Token()
	if err != nil {
		// No output at all means zero matching ads.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected JSON array, got %v", tok)
	}

	for dec.More() {
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		select {
		case out <- adFromJSON(raw):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err = dec.Token() // closing bracket
	return err
}

// adFromJSON converts one decoded ad object into a ClassAd with tagged
// values. Attribute order in JSON objects is lost, so names are sorted
// for determinism.
func adFromJSON(raw map[string]any) *domain.ClassAd {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	ad := domain.NewClassAd()
	for _, name := range names {
		ad.Set(name, valueFromJSON(raw[name]))
	}
	return ad
}

func valueFromJSON(v any) domain.Value {
	switch tv := v.(type) {
	case nil:
		return domain.UndefinedValue()
	case bool:
		return domain.BoolValue(tv)
	case string:
		return domain.StringValue(tv)
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return domain.IntValue(i)
		}
		if f, err := tv.Float64(); err == nil {
			return domain.RealValue(f)
		}
		return domain.ExprValue(tv.String())
	default:
		// Nested structures are unevaluated expressions as far as the
		// pipeline is concerned; keep the raw rendering.
		data, err := json.Marshal(tv)
		if err != nil {
			return domain.UndefinedValue()
		}
		return domain.ExprValue(string(data))
	}
}
