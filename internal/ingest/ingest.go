// Package ingest turns one CSV stream into schema-typed records.
//
// A Streamer samples the head of the stream, infers the schema exactly once,
// then reads the whole stream (or, for large .csv objects, its record-aligned
// chunks) through the CSV engine. Records are produced lazily through a
// range-over-func sequence and nothing is buffered beyond one engine batch and
// one chunk.
package ingest

import (
	"context"
	"io"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"csvingest/internal/config"
	"csvingest/internal/metrics"
	pcsv "csvingest/internal/parser/csv"
	"csvingest/internal/probe"
	"csvingest/internal/schema"
	"csvingest/internal/scratch"
)

// ErrStreamerUsed is returned when Stream is ranged over a second time.
var ErrStreamerUsed = errors.New("ingest: streamer already used")

// Options control chunking and metrics labelling.
type Options struct {
	// Chunking enables splitting large streams into chunks.
	Chunking bool
	// ChunkThreshold is the descriptor size from which a stream is split.
	// Zero means MaxChunkSize.
	ChunkThreshold int64
	// MaxChunkSize bounds a chunk; zero means csv.DefaultMaxChunkSize.
	MaxChunkSize int64
	// Scratch holds chunk files. When nil chunks are kept in memory.
	Scratch *scratch.Space
	// Job is the metrics job label.
	Job string
}

// Streamer reads a single stream. It is not safe to call Stream
// concurrently, but State and Schema may be called from any goroutine.
type Streamer struct {
	Format config.FormatConfig
	// Inferrer runs schema inference. When nil, streams that need inference
	// fail with a worker InferenceError.
	Inferrer *probe.Inferrer
	Options  Options
	Logger   logrus.FieldLogger

	mu     sync.Mutex
	state  State
	schema *schema.SchemaMap
	used   bool
}

// New returns a Streamer for f.
func New(f config.FormatConfig, in *probe.Inferrer, opt Options, lg logrus.FieldLogger) *Streamer {
	return &Streamer{Format: f, Inferrer: in, Options: opt, Logger: lg}
}

// State reports where the Streamer is.
func (s *Streamer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Schema returns the inferred schema, or nil before inference succeeded.
func (s *Streamer) Schema() *schema.SchemaMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// Stream yields the records of r in input order. r must be positioned at
// offset 0. Inference errors end the sequence before any record; a failure
// while reading ends it after the records already yielded. Either way the
// Streamer is left Failed. The sequence can be ranged over once.
func (s *Streamer) Stream(ctx context.Context, r io.Reader, fd config.FileDescriptor) iter.Seq2[schema.Record, error] {
	return func(yield func(schema.Record, error) bool) {
		if !s.begin() {
			yield(nil, ErrStreamerUsed)
			return
		}
		lg := s.logger().WithField("file", fd.ID)
		job := s.Options.Job

		s.setState(State{Phase: Inferring})
		start := time.Now()
		sm, replay, err := s.infer(ctx, r)
		metrics.RecordStep(job, "infer", metrics.StatusOf(err, errors.Is(err, probe.ErrInferenceTimeout)), time.Since(start))
		if err != nil {
			s.fail(lg.WithField("step", "infer"), err)
			yield(nil, err)
			return
		}
		s.mu.Lock()
		s.schema = sm
		s.mu.Unlock()
		lg.WithField("schema", sm.String()).Debug("schema ready")

		s.setState(State{Phase: Streaming})
		start = time.Now()
		res := s.read(ctx, replay, fd, sm, lg, yield)
		metrics.RecordStep(job, "stream", metrics.StatusOf(res.err, false), time.Since(start))
		metrics.RecordRecords(job, fd.ID, res.records)

		fields := logrus.Fields{
			"step":    "stream",
			"records": res.records,
			"chunks":  res.chunks,
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
		}
		switch {
		case res.err != nil:
			s.fail(lg.WithFields(fields), res.err)
			yield(nil, res.err)
		case res.stopped:
			s.setState(State{Phase: Done})
			lg.WithFields(fields).Debug("consumer stopped early")
		default:
			s.setState(State{Phase: Done})
			lg.WithFields(fields).Info("stream ingested")
		}
	}
}

func (s *Streamer) infer(ctx context.Context, r io.Reader) (*schema.SchemaMap, io.Reader, error) {
	sample, replay, err := probe.ReadSample(r, s.Format)
	if err != nil {
		return nil, nil, err
	}
	in := s.Inferrer
	if in == nil {
		// Without a runner only header-only inference can succeed.
		in = &probe.Inferrer{Logger: s.Logger}
	}
	sm, err := in.Infer(ctx, sample, s.Format)
	if err != nil {
		return nil, nil, err
	}
	return sm, replay, nil
}

type result struct {
	records int64
	chunks  int
	stopped bool
	err     error
}

func (s *Streamer) read(ctx context.Context, r io.Reader, fd config.FileDescriptor, sm *schema.SchemaMap, lg logrus.FieldLogger, yield func(schema.Record, error) bool) result {
	prepared, err := pcsv.Prepare(r, s.Format)
	if err != nil {
		return result{err: &pcsv.StreamingError{File: fd.ID, Err: err}}
	}
	if !s.shouldChunk(fd) {
		return s.readChunk(ctx, prepared, fd, sm, 0, yield)
	}

	store := pcsv.NewMemoryStore()
	if s.Options.Scratch != nil {
		if store, err = pcsv.NewFileStore(s.Options.Scratch); err != nil {
			return result{err: err}
		}
	}
	lg.WithField("size", fd.Size).Debug("large file, reading by chunks")

	var res result
	sp := pcsv.NewSplitter(prepared, pcsv.SplitterOptions{
		MaxChunkSize: s.maxChunkSize(),
		Store:        store,
		FileID:       fd.ID,
		Logger:       s.Logger,
	})
	for chunk, err := range sp.Chunks() {
		if err != nil {
			res.err = err
			return res
		}
		res.chunks++
		s.setState(State{Phase: Streaming, Chunk: chunk.Index})
		metrics.RecordChunk(s.Options.Job, fd.ID, chunk.Index, chunk.Size)

		part := s.readChunk(ctx, chunk, fd, sm, chunk.Index, yield)
		res.records += part.records
		if part.err != nil || part.stopped {
			res.err, res.stopped = part.err, part.stopped
			return res
		}
	}
	return res
}

func (s *Streamer) readChunk(ctx context.Context, r io.Reader, fd config.FileDescriptor, sm *schema.SchemaMap, index int, yield func(schema.Record, error) bool) result {
	var res result
	opt := pcsv.StreamOptions{FileID: fd.ID, Chunk: index, Logger: s.Logger}
	for rec, err := range pcsv.ReadRecords(ctx, r, s.Format, sm, opt) {
		if err != nil {
			res.err = err
			return res
		}
		if !yield(rec, nil) {
			res.stopped = true
			return res
		}
		res.records++
	}
	return res
}

// shouldChunk applies the split condition: chunking enabled, a .csv object at
// or above the threshold, and no quoted newlines.
func (s *Streamer) shouldChunk(fd config.FileDescriptor) bool {
	if !s.Options.Chunking || s.Format.NewlinesInValues {
		return false
	}
	threshold := s.Options.ChunkThreshold
	if threshold <= 0 {
		threshold = s.maxChunkSize()
	}
	return fd.Size >= threshold && strings.HasSuffix(fd.ID, ".csv")
}

func (s *Streamer) maxChunkSize() int64 {
	if s.Options.MaxChunkSize > 0 {
		return s.Options.MaxChunkSize
	}
	return pcsv.DefaultMaxChunkSize
}

func (s *Streamer) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return false
	}
	s.used = true
	return true
}

func (s *Streamer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Streamer) fail(lg logrus.FieldLogger, err error) {
	s.mu.Lock()
	prev := s.state
	s.state = State{Phase: Failed, Chunk: prev.Chunk}
	s.mu.Unlock()
	lg.WithError(err).WithField("state", prev.String()).Error("ingest failed")
}

func (s *Streamer) logger() logrus.FieldLogger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}
