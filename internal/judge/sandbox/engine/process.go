package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

type processEngine struct {
	cfg Config
}

func (e *processEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RawExecutionResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RawExecutionResult{}, err
	}

	stdout := newCappedBuffer(e.cfg.OutputLimitBytes)
	stderr := newCappedBuffer(e.cfg.OutputLimitBytes)

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = append(append([]string{"HOME=" + runSpec.WorkDir}, e.cfg.BaseEnv...), runSpec.Env...)
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = buildSysProcAttr()
	cmd.WaitDelay = e.cfg.WaitDelay

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if isLaunchFailure(err) {
			return result.RawExecutionResult{
				Classification: result.ClassRuntimeError,
				Stderr:         decode([]byte(err.Error())),
				ExitCode:       -1,
			}, nil
		}
		return result.RawExecutionResult{}, appErr.Wrapf(err, appErr.JudgeSystemError, "start process failed")
	}

	var timedOut atomic.Bool
	var canceled atomic.Bool
	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		var deadline <-chan time.Time
		if runSpec.TimeoutMs > 0 {
			timer := time.NewTimer(time.Duration(runSpec.TimeoutMs) * time.Millisecond)
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-ctx.Done():
			canceled.Store(true)
			killProcessTree(cmd)
		case <-deadline:
			timedOut.Store(true)
			killProcessTree(cmd)
		case <-done:
		}
	}()

	var elapsed int64
	waitErr := waitProcess(cmd, func() {
		elapsed = time.Since(start).Milliseconds()
		close(done)
		<-watcherDone
		// Kill anything the program left behind in its group.
		killProcessTree(cmd)
	})

	res := result.RawExecutionResult{
		Stdout:    decode(stdout.Bytes()),
		Stderr:    decode(stderr.Bytes()),
		ElapsedMs: elapsed,
		ExitCode:  -1,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	if timedOut.Load() {
		res.Classification = result.ClassTimeout
		res.ElapsedMs = runSpec.TimeoutMs
		return res, nil
	}
	if canceled.Load() {
		res.Classification = result.ClassRuntimeError
		return res, appErr.Wrapf(ctx.Err(), appErr.Timeout, "run %s canceled", runSpec.Label)
	}

	state := cmd.ProcessState
	if state == nil {
		return res, appErr.Wrapf(waitErr, appErr.JudgeSystemError, "wait process failed")
	}
	if waitErr != nil && errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Debug(ctx, "process left output pipes open", zap.String("label", runSpec.Label))
	}

	res.ExitCode = state.ExitCode()
	if sig := signalName(state); sig != "" {
		res.Signal = sig
		if res.Stderr != "" && !strings.HasSuffix(res.Stderr, "\n") {
			res.Stderr += "\n"
		}
		res.Stderr += "process terminated by signal " + sig
	}
	if state.Success() {
		res.Classification = result.ClassSuccess
	} else {
		res.Classification = result.ClassRuntimeError
	}
	return res, nil
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return appErr.ValidationError("cmd", "required")
	}
	if runSpec.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if runSpec.TimeoutMs < 0 {
		return appErr.ValidationError("timeout_ms", "must not be negative")
	}
	info, err := os.Stat(runSpec.WorkDir)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "stat work dir failed")
	}
	if !info.IsDir() {
		return appErr.Newf(appErr.JudgeSystemError, "work dir %s is not a directory", runSpec.WorkDir)
	}
	return nil
}

// isLaunchFailure separates a bad program (missing, not executable) from a sick host.
func isLaunchFailure(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}
