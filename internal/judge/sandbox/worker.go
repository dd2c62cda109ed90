package sandbox

import (
	"context"
	"fmt"
	"math"

	"codejudge/internal/judge/sandbox/compare"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/language"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// LanguageRegistry resolves a language ID or alias to its adapter.
type LanguageRegistry interface {
	Get(id string) (language.Adapter, error)
}

// Worker judges one request at a time per call. It holds no per-request
// state, so one Worker may serve concurrent Execute calls.
type Worker struct {
	eng            engine.Engine
	languages      LanguageRegistry
	workspaces     *workspace.Manager
	metrics        observer.MetricsRecorder
	statusReporter StatusReporter
}

// NewWorker creates a worker with required dependencies.
func NewWorker(eng engine.Engine, languages LanguageRegistry, workspaces *workspace.Manager) *Worker {
	return &Worker{
		eng:        eng,
		languages:  languages,
		workspaces: workspaces,
		metrics:    observer.NoopMetricsRecorder{},
	}
}

// SetStatusReporter injects a status reporter for intermediate updates.
func (w *Worker) SetStatusReporter(reporter StatusReporter) {
	w.statusReporter = reporter
}

// SetMetricsRecorder injects run and verdict metrics hooks.
func (w *Worker) SetMetricsRecorder(metrics observer.MetricsRecorder) {
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	w.metrics = metrics
}

// Execute judges one request.
//
// Toolchain, compile and program failures are reported in the result. The
// returned error is reserved for invalid requests, host faults and context
// cancellation.
func (w *Worker) Execute(ctx context.Context, req ExecutionRequest) (result.JudgeResult, error) {
	if w.eng == nil || w.languages == nil || w.workspaces == nil {
		return result.JudgeResult{}, appErr.New(appErr.JudgeSystemError).WithMessage("worker dependencies are not initialized")
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return result.JudgeResult{}, err
	}
	comparator, err := compare.Lookup(req.Comparator)
	if err != nil {
		return result.JudgeResult{}, err
	}

	totalTests := len(req.TestCases)
	w.reportStatus(ctx, req, result.StateCompiling, totalTests, 0, "")

	adapter, err := w.languages.Get(req.Language)
	if err != nil {
		if appErr.Is(err, appErr.LanguageNotSupported) {
			return w.finishCompileError(ctx, req, err), nil
		}
		return result.JudgeResult{}, appErr.Wrapf(err, appErr.JudgeSystemError, "resolve language failed")
	}
	lang := adapter.Language()

	ws, err := w.workspaces.Acquire(ctx, lang.ID)
	if err != nil {
		return result.JudgeResult{}, err
	}
	defer func() {
		_ = ws.Release()
	}()

	unit, err := adapter.Prepare(ctx, ws, req.Code)
	if err != nil {
		return w.compileFailure(ctx, req, err)
	}
	defer func() {
		if err := adapter.Cleanup(unit); err != nil {
			logger.Warn(ctx, "adapter cleanup failed", zap.String("language", lang.ID), zap.Error(err))
		}
	}()

	cmd, err := adapter.BuildCommand(ctx, unit)
	if err != nil {
		return w.compileFailure(ctx, req, err)
	}

	timeLimitMs := scaleLimit(req.TimeLimitMs, lang.TimeMultiplier)
	w.reportStatus(ctx, req, result.StateRunningTests, totalTests, 0, "")

	var res result.JudgeResult
	if req.AdHoc() {
		res, err = w.runAdHoc(ctx, ws, lang.ID, cmd, req.Stdin(), timeLimitMs)
	} else {
		res, err = w.runTests(ctx, ws, req, lang.ID, cmd, comparator, timeLimitMs)
	}
	if err != nil {
		return result.JudgeResult{}, err
	}

	w.metrics.ObserveVerdict(ctx, lang.ID, string(res.Status), len(res.Tests))
	w.reportStatus(ctx, req, result.StateFinished, totalTests, len(res.Tests), res.Status)
	logger.Info(ctx, "judge finished",
		zap.String("language", lang.ID),
		zap.String("status", string(res.Status)),
		zap.Int("passed", res.PassedCount),
		zap.Int("tests", totalTests),
		zap.Int64("runtime_ms", res.RuntimeMs),
	)
	return res, nil
}

func (w *Worker) runAdHoc(ctx context.Context, ws *workspace.Workspace, languageID string, cmd language.Command, stdin string, timeLimitMs int64) (result.JudgeResult, error) {
	raw, err := w.runOnce(ctx, ws, 0, languageID, cmd, stdin, timeLimitMs)
	if err != nil {
		return result.JudgeResult{}, err
	}
	return result.JudgeResult{
		Status:       result.StatusFromClassification(raw.Classification),
		Stdout:       raw.Stdout,
		Stderr:       raw.Stderr,
		RuntimeMs:    raw.ElapsedMs,
		MaxRuntimeMs: raw.ElapsedMs,
		AdHoc:        true,
	}, nil
}

func (w *Worker) runTests(
	ctx context.Context,
	ws *workspace.Workspace,
	req ExecutionRequest,
	languageID string,
	cmd language.Command,
	comparator compare.Comparator,
	timeLimitMs int64,
) (result.JudgeResult, error) {
	tests := make([]result.TestVerdict, 0, len(req.TestCases))
	passed := 0
	for i, tc := range req.TestCases {
		raw, err := w.runOnce(ctx, ws, i+1, languageID, cmd, tc.Input, timeLimitMs)
		if err != nil {
			return result.JudgeResult{}, err
		}
		verdict := result.TestVerdict{
			Input:          tc.Input,
			Expected:       tc.ExpectedOutput,
			Actual:         raw.Stdout,
			RuntimeMs:      raw.ElapsedMs,
			Classification: raw.Classification,
			Stderr:         raw.Stderr,
		}
		verdict.Passed = raw.Classification == result.ClassSuccess && comparator.Compare(raw.Stdout, tc.ExpectedOutput)
		if verdict.Passed {
			passed++
		}
		tests = append(tests, verdict)
		w.reportStatus(ctx, req, result.StateRunningTests, len(req.TestCases), len(tests), "")
	}

	w.reportStatus(ctx, req, result.StateAggregating, len(req.TestCases), len(tests), "")
	mean, worst := result.Runtimes(tests)
	return result.JudgeResult{
		Status:       result.Aggregate(tests),
		RuntimeMs:    mean,
		MaxRuntimeMs: worst,
		PassedCount:  passed,
		Tests:        tests,
	}, nil
}

// runOnce executes cmd in a fresh scratch directory that is removed afterwards.
func (w *Worker) runOnce(ctx context.Context, ws *workspace.Workspace, ordinal int, languageID string, cmd language.Command, stdin string, timeLimitMs int64) (result.RawExecutionResult, error) {
	dir, release, err := ws.AcquireTestDir(ordinal)
	if err != nil {
		return result.RawExecutionResult{}, err
	}
	defer release()

	raw, err := w.eng.Run(ctx, spec.RunSpec{
		Cmd:       cmd.Argv,
		WorkDir:   dir,
		Env:       cmd.Env,
		Stdin:     stdin,
		TimeoutMs: timeLimitMs,
		Label:     fmt.Sprintf("test-%d", ordinal),
	})
	if err != nil {
		return result.RawExecutionResult{}, err
	}
	w.metrics.ObserveRun(ctx, languageID, string(raw.Classification), raw.ElapsedMs)
	return raw, nil
}

// compileFailure turns adapter compile errors into a verdict and passes
// everything else through as a host fault.
func (w *Worker) compileFailure(ctx context.Context, req ExecutionRequest, err error) (result.JudgeResult, error) {
	if appErr.Is(err, appErr.CompilationError) {
		return w.finishCompileError(ctx, req, err), nil
	}
	return result.JudgeResult{}, err
}

func (w *Worker) finishCompileError(ctx context.Context, req ExecutionRequest, err error) result.JudgeResult {
	res := result.JudgeResult{
		Status: result.StatusCompileError,
		Stderr: err.Error(),
		AdHoc:  req.AdHoc(),
	}
	if !res.AdHoc {
		res.Tests = []result.TestVerdict{}
	}
	w.metrics.ObserveVerdict(ctx, req.Language, string(res.Status), 0)
	w.reportStatus(ctx, req, result.StateFinished, len(req.TestCases), 0, res.Status)
	logger.Info(ctx, "judge finished with compile error", zap.String("language", req.Language), zap.String("reason", err.Error()))
	return res
}

func (w *Worker) reportStatus(ctx context.Context, req ExecutionRequest, state result.JudgeState, totalTests, doneTests int, status result.Status) {
	logger.Debug(ctx, "judge state",
		zap.String("state", string(state)),
		zap.Int("done", doneTests),
		zap.Int("total", totalTests),
	)
	if w.statusReporter == nil {
		return
	}
	if err := w.statusReporter.ReportStatus(ctx, StatusUpdate{
		RequestID:  req.RequestID,
		State:      state,
		Language:   req.Language,
		TotalTests: totalTests,
		DoneTests:  doneTests,
		Status:     status,
	}); err != nil {
		logger.Warn(ctx, "report status failed", zap.Error(err))
	}
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return 0
	}
	if multiplier <= 0 {
		return value
	}
	return int64(math.Ceil(float64(value) * multiplier))
}
