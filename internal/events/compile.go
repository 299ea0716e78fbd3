package events

import "time"

// CompileStart is emitted before the first stage of a compilation runs.
type CompileStart struct {
	Entry string
}

// CompileFinish is emitted once a compilation returns. Err is nil on success.
type CompileFinish struct {
	Entry       string
	Commands    int
	Submissions int
	Err         error
	Duration    time.Duration
}

// StageStart is emitted when a compiler stage begins.
// Stage is one of "check", "primgraph", "syncgraph", "partition" and "promote".
type StageStart struct {
	Stage string
}

// StageFinish is emitted when a compiler stage returns.
type StageFinish struct {
	Stage    string
	Err      error
	Duration time.Duration
}
