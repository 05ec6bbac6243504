package probe

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInferenceTimeout is matched by *TimeoutError.
	ErrInferenceTimeout = errors.New("probe: schema inference timed out")

	// ErrInferenceFailure is matched by *InferenceError.
	ErrInferenceFailure = errors.New("probe: schema inference failed")
)

// TimeoutError reports that no inference attempt finished within its deadline.
// Callers should surface it to an operator rather than retry automatically.
type TimeoutError struct {
	Timeout    time.Duration
	MaxTimeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("probe: schema inference did not finish within %s (escalated to %s)", e.Timeout, e.MaxTimeout)
}

// Is makes errors.Is(err, ErrInferenceTimeout) hold.
func (e *TimeoutError) Is(target error) bool { return target == ErrInferenceTimeout }

// Failure kinds reported by InferenceError.
const (
	KindDecode   = "decode"   // sample is not valid in the configured encoding
	KindParse    = "parse"    // malformed CSV structure
	KindSchema   = "schema"   // header cannot form a schema (duplicate names)
	KindHeader   = "header"   // header line could not be split
	KindProtocol = "protocol" // worker answered with something unreadable
	KindWorker   = "worker"   // worker could not be started or crashed
)

// InferenceError carries a failure raised while inferring, including one
// raised inside the worker process, with its original kind and message.
type InferenceError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("probe: schema inference failed (%s): %s", e.Kind, e.Message)
}

// Is makes errors.Is(err, ErrInferenceFailure) hold.
func (e *InferenceError) Is(target error) bool { return target == ErrInferenceFailure }

func failure(kind string, err error) *InferenceError {
	return &InferenceError{Kind: kind, Message: err.Error()}
}
