package ingest

import "strconv"

// Phase is the coarse position of a Streamer in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Inferring
	Streaming
	Done
	// Failed is terminal; the Streamer cannot be reused.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Inferring:
		return "inferring"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// State is a snapshot of a Streamer. Chunk is the 1-based chunk being read
// while Streaming a split stream, 0 otherwise.
type State struct {
	Phase Phase
	Chunk int
}

func (s State) String() string {
	if s.Phase == Streaming && s.Chunk > 0 {
		return "streaming(chunk " + strconv.Itoa(s.Chunk) + ")"
	}
	return s.Phase.String()
}
