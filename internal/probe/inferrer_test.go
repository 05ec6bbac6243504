package probe

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvingest/internal/config"
	"csvingest/internal/isolate"
	"csvingest/internal/schema"
)

const workerEnv = "PROBE_TEST_WORKER"

// TestMain doubles as the inference worker when workerEnv is set, the same
// way the csvingest binary re-executes itself.
func TestMain(m *testing.M) {
	switch os.Getenv(workerEnv) {
	case "":
		os.Exit(m.Run())
	case "slow":
		time.Sleep(time.Hour)
	}
	if err := ServeWorker(os.Stdin, os.Stdout, logrus.New()); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

func workerRunner(mode string) isolate.ProcessRunner {
	return isolate.ProcessRunner{
		Path:      os.Args[0],
		Args:      []string{"-test.run=^$"},
		Env:       append(os.Environ(), workerEnv+"="+mode),
		Stderr:    io.Discard,
		WaitDelay: 500 * time.Millisecond,
	}
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestInferrer_Process(t *testing.T) {
	in := &Inferrer{Runner: workerRunner("serve"), Logger: quietLogger()}
	sm, err := in.Infer(context.Background(), Sample{Bytes: []byte("id,name,score\n1,Alice,9.5\n2,Bob,10\n")}, config.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, "{id:integer, name:string, score:float}", sm.String())
}

func TestInferrer_ProcessPropagatesFailure(t *testing.T) {
	in := &Inferrer{Runner: workerRunner("serve"), Logger: quietLogger()}
	_, err := in.Infer(context.Background(), Sample{Bytes: []byte("a,b\n1,2,3\n")}, config.DefaultFormat())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInferenceFailure)

	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, KindParse, ie.Kind)
	assert.Contains(t, ie.Message, "wrong number of fields")
}

func TestInferrer_SlowWorkerTimesOut(t *testing.T) {
	logger, hook := test.NewNullLogger()
	in := &Inferrer{
		Runner:     workerRunner("slow"),
		Timeout:    100 * time.Millisecond,
		MaxTimeout: 300 * time.Millisecond,
		Logger:     logger,
	}
	start := time.Now()
	sm, err := in.Infer(context.Background(), Sample{Bytes: []byte("a\n1\n")}, config.DefaultFormat())
	assert.Nil(t, sm)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInferenceTimeout)
	assert.NotErrorIs(t, err, ErrInferenceFailure)
	assert.Less(t, time.Since(start), 10*time.Second)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 300*time.Millisecond, te.MaxTimeout)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "first timeout should be logged before the retry")
}

func TestInferrer_InferenceDisabled(t *testing.T) {
	f := config.DefaultFormat()
	f.InferDatatypes = false
	// No runner: the worker must not be needed.
	in := &Inferrer{Logger: quietLogger()}

	sm, err := in.Infer(context.Background(), Sample{Bytes: []byte(" id ,score,when\n1,9.5,2024-01-01\n"), Truncated: true}, f)
	require.NoError(t, err)
	for _, fld := range sm.Fields() {
		assert.Equal(t, schema.TypeString, fld.Type, fld.Name)
	}
	assert.Equal(t, []string{"id", "score", "when"}, sm.Names())
}

func TestInferrer_InferenceDisabledDuplicateHeader(t *testing.T) {
	f := config.DefaultFormat()
	f.InferDatatypes = false
	_, err := (&Inferrer{}).Infer(context.Background(), Sample{Bytes: []byte("a,a")}, f)
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestInferrer_LocalRunner(t *testing.T) {
	in := &Inferrer{Runner: LocalRunner(quietLogger()), Logger: quietLogger()}
	sm, err := in.Infer(context.Background(), Sample{Bytes: []byte("ok,day\ntrue,2024-02-29\n")}, config.DefaultFormat())
	require.NoError(t, err)
	assert.Equal(t, "{ok:boolean, day:date}", sm.String())
}

func TestInferrer_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		run  isolate.Func
		kind string
	}{
		{
			name: "garbage",
			run:  func(context.Context, []byte) ([]byte, error) { return []byte("not json"), nil },
			kind: KindProtocol,
		},
		{
			name: "foreign id",
			run:  func(context.Context, []byte) ([]byte, error) { return []byte(`{"id":"other"}`), nil },
			kind: KindProtocol,
		},
		{
			name: "runner error",
			run:  func(context.Context, []byte) ([]byte, error) { return nil, errors.New("exec: not found") },
			kind: KindWorker,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Inferrer{Runner: tt.run, Logger: quietLogger()}).Infer(context.Background(), Sample{Bytes: []byte("a\n1\n")}, config.DefaultFormat())
			var ie *InferenceError
			require.True(t, errors.As(err, &ie), "got %v", err)
			assert.Equal(t, tt.kind, ie.Kind)
		})
	}

	_, err := (&Inferrer{}).Infer(context.Background(), Sample{Bytes: []byte("a\n")}, config.DefaultFormat())
	assert.ErrorIs(t, err, ErrInferenceFailure)
}

func TestInferrer_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Inferrer{Runner: workerRunner("slow"), Logger: quietLogger()}).Infer(ctx, Sample{Bytes: []byte("a\n1\n")}, config.DefaultFormat())
	assert.ErrorIs(t, err, context.Canceled)
}
