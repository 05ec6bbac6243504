// Package probe infers a column schema from the head of a CSV stream.
//
// Typed inference runs in a separate worker process (see ServeWorker) under a
// wall-clock deadline, so a parse that hangs on pathological input cannot
// stall the caller. With inference disabled only the header line is split
// and every column is a string.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"csvingest/internal/config"
	"csvingest/internal/isolate"
	pcsv "csvingest/internal/parser/csv"
	"csvingest/internal/schema"
)

const (
	// DefaultTimeout bounds the first inference attempt.
	DefaultTimeout = 4 * time.Second
	// DefaultMaxTimeout bounds the single retry.
	DefaultMaxTimeout = 60 * time.Second
)

// Inferrer turns a Sample into a SchemaMap.
type Inferrer struct {
	// Runner executes the worker. Required when inference is enabled.
	Runner isolate.Runner
	// Timeout bounds the first attempt; MaxTimeout bounds the one retry made
	// after a timeout. A MaxTimeout not above Timeout disables the retry.
	Timeout    time.Duration
	MaxTimeout time.Duration
	Logger     logrus.FieldLogger
}

// Infer returns the schema for s. Errors match ErrInferenceTimeout or
// ErrInferenceFailure, or are the context's error.
func (in *Inferrer) Infer(ctx context.Context, s Sample, f config.FormatConfig) (*schema.SchemaMap, error) {
	lg := in.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	lg = lg.WithField("step", "infer")

	if !f.InferDatatypes {
		line := s.Bytes
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		names, err := pcsv.ParseHeader(line, f)
		if err != nil {
			return nil, failure(KindHeader, err)
		}
		sm, err := schema.Strings(names)
		if err != nil {
			return nil, failure(KindSchema, err)
		}
		lg.WithField("columns", sm.Len()).Debug("header read, inference disabled")
		return sm, nil
	}

	if in.Runner == nil {
		return nil, &InferenceError{Kind: KindWorker, Message: "no worker runner configured"}
	}
	timeout, maxTimeout := in.Timeout, in.MaxTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxTimeout
	}
	timeouts := []time.Duration{timeout}
	if maxTimeout > timeout {
		timeouts = append(timeouts, maxTimeout)
	}

	req := request{ID: uuid.NewString(), Sample: s, Format: f}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "probe: encode worker request")
	}
	lg = lg.WithField("request", req.ID)

	start := time.Now()
	raw, err := isolate.Supervise(ctx, in.Runner, body, timeouts, lg)
	switch {
	case errors.Is(err, isolate.ErrTimeout):
		return nil, &TimeoutError{Timeout: timeout, MaxTimeout: timeouts[len(timeouts)-1]}
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, failure(KindWorker, err)
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, failure(KindProtocol, err)
	}
	if resp.ID != req.ID {
		return nil, &InferenceError{Kind: KindProtocol, Message: "response for request " + resp.ID + ", want " + req.ID}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	sm, err := schema.New(resp.Fields)
	if err != nil {
		return nil, failure(KindSchema, err)
	}
	lg.WithFields(logrus.Fields{"columns": sm.Len(), "elapsed": time.Since(start).Round(time.Millisecond).String()}).Debug("schema inferred")
	return sm, nil
}

// LocalRunner serves requests with ServeWorker on a goroutine of this
// process. It cannot stop a hung inference; use it where no worker binary is
// available.
func LocalRunner(lg logrus.FieldLogger) isolate.Runner {
	return isolate.Func(func(_ context.Context, req []byte) ([]byte, error) {
		var out bytes.Buffer
		if err := ServeWorker(bytes.NewReader(req), &out, lg); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
}
