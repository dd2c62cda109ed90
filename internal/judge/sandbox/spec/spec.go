// Package spec defines the run request handed to the engine.
package spec

// RunSpec describes one process execution.
type RunSpec struct {
	// Cmd is the argv; Cmd[0] is resolved through PATH when it has no slash.
	Cmd []string
	// WorkDir is the host directory used as the process working directory.
	WorkDir string
	// Env is appended to a minimal base environment.
	Env []string
	// Stdin is written to the process and then closed.
	Stdin string
	// TimeoutMs is the wall-clock budget. Zero means no limit.
	TimeoutMs int64
	// Label tags log lines and metrics, e.g. "compile" or "test-3".
	Label string
}
