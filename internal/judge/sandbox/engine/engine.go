package engine

import (
	"context"
	"os"
	"time"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

const (
	defaultOutputLimitBytes int64 = 16 << 20
	defaultWaitDelay              = 250 * time.Millisecond
)

// Engine executes one process described by a RunSpec.
//
// Ordinary failures of the program (nonzero exit, signal, deadline, missing
// executable) are reported through the classification. An error is returned
// only when the host cannot run processes at all or the caller's context ends.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RawExecutionResult, error)
}

// Config controls engine behavior.
type Config struct {
	// OutputLimitBytes caps stdout and stderr separately. Excess is discarded.
	OutputLimitBytes int64
	// WaitDelay bounds pipe draining after the main process has exited or been killed.
	WaitDelay time.Duration
	// BaseEnv replaces the default environment (PATH, LANG, HOME).
	BaseEnv []string
}

// NewEngine creates a process engine. Process trees are killed as a group on Linux.
func NewEngine(cfg Config) Engine {
	if cfg.OutputLimitBytes <= 0 {
		cfg.OutputLimitBytes = defaultOutputLimitBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	if cfg.BaseEnv == nil {
		cfg.BaseEnv = defaultEnv()
	}
	return &processEngine{cfg: cfg}
}

func defaultEnv() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{"PATH=" + path, "LANG=C.UTF-8", "LC_ALL=C.UTF-8"}
}
