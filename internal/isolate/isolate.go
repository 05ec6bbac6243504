// Package isolate runs a blocking call in a separate OS process under a
// wall-clock deadline. A worker that misses its deadline is killed, never
// awaited, and never reused.
//
// The exchange is a single request/response: the request bytes are written to
// the worker's stdin, which is then closed, and the response is whatever the
// worker writes to stdout before exiting. Workers log to stderr.
package isolate

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrTimeout is returned by Supervise when every attempt ran out of time.
var ErrTimeout = errors.New("isolate: worker did not answer in time")

// Runner performs one isolated request/response exchange. Run must return
// promptly once ctx is done.
type Runner interface {
	Run(ctx context.Context, req []byte) ([]byte, error)
}

// DefaultWaitDelay bounds how long a killed worker's pipes are drained.
const DefaultWaitDelay = 2 * time.Second

// stderrTail is how much worker stderr is kept for crash reports.
const stderrTail = 4 << 10

// ProcessRunner starts Path with Args for every request. The worker runs in
// its own process group so that a kill also takes down anything it spawned.
type ProcessRunner struct {
	Path string
	Args []string
	// Env, when non-nil, replaces the inherited environment.
	Env []string
	// Stderr receives the worker's log output; nil means os.Stderr.
	Stderr io.Writer
	// WaitDelay defaults to DefaultWaitDelay.
	WaitDelay time.Duration
}

// Run implements Runner.
func (p ProcessRunner) Run(ctx context.Context, req []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	if p.Env != nil {
		cmd.Env = p.Env
	}
	configureKill(cmd)
	cmd.WaitDelay = p.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	sink := p.Stderr
	if sink == nil {
		sink = os.Stderr
	}
	tail := &headBuffer{max: stderrTail}
	cmd.Stderr = io.MultiWriter(sink, tail)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "isolate: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "isolate: stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "isolate: start %s", p.Path)
	}

	var out bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		_, err := stdin.Write(req)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&out, stdout)
		return err
	})
	ioErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		return nil, errors.Wrapf(waitErr, "isolate: worker failed: %s", bytes.TrimSpace(tail.Bytes()))
	}
	if ioErr != nil {
		return nil, errors.Wrap(ioErr, "isolate: exchange with worker")
	}
	return out.Bytes(), nil
}

// Func runs a call on a goroutine of this process. A call that outlives its
// context is abandoned rather than stopped, so Func only suits calls that
// cannot hang for good, such as in tests.
type Func func(ctx context.Context, req []byte) ([]byte, error)

// Run implements Runner.
func (f Func) Run(ctx context.Context, req []byte) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := f(ctx, req)
		done <- result{b, err}
	}()
	select {
	case r := <-done:
		return r.b, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Supervise runs req on r once per timeout, moving to the next timeout only
// when the previous attempt ran out of time. Any other failure is returned
// at once. When every attempt times out the error matches ErrTimeout.
func Supervise(ctx context.Context, r Runner, req []byte, timeouts []time.Duration, lg logrus.FieldLogger) ([]byte, error) {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	if len(timeouts) == 0 {
		return nil, errors.New("isolate: no timeout given")
	}
	for i, d := range timeouts {
		start := time.Now()
		actx, cancel := context.WithTimeout(ctx, d)
		resp, err := r.Run(actx, req)
		timedOut := errors.Is(actx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !timedOut {
			return nil, err
		}
		fields := logrus.Fields{"attempt": i + 1, "timeout": d.String(), "elapsed": time.Since(start).Round(time.Millisecond).String()}
		if i+1 < len(timeouts) {
			lg.WithFields(fields).Warn("isolated call timed out, retrying with a longer deadline")
			continue
		}
		lg.WithFields(fields).Error("isolated call timed out")
	}
	return nil, errors.Wrapf(ErrTimeout, "after %d attempts", len(timeouts))
}

// headBuffer keeps the first max bytes written to it.
type headBuffer struct {
	buf bytes.Buffer
	max int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.max - h.buf.Len(); room > 0 {
		if len(p) > room {
			h.buf.Write(p[:room])
		} else {
			h.buf.Write(p)
		}
	}
	return len(p), nil
}

func (h *headBuffer) Bytes() []byte { return h.buf.Bytes() }
