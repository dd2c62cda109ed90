package language

import (
	"context"
	"fmt"
	"strings"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

type templateVars struct {
	src        string
	bin        string
	out        string
	class      string
	extraFlags []string
}

// expandCommand substitutes placeholders and splits the result with shell
// quoting rules. Substituted paths are quoted so they stay one argument.
func expandCommand(tpl string, vars templateVars) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	replacer := strings.NewReplacer(
		"{src}", quoteArg(vars.src),
		"{bin}", quoteArg(vars.bin),
		"{out}", quoteArg(vars.out),
		"{class}", quoteArg(vars.class),
		"{extraFlags}", strings.Join(vars.extraFlags, " "),
	)
	fields, err := shlex.Split(replacer.Replace(tpl))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

func quoteArg(s string) string {
	if s == "" {
		return s
	}
	if !strings.ContainsAny(s, " \t\n'\"\\#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// requireTool checks that a toolchain binary exists. Paths are left to the engine.
func (b *base) requireTool(name string) error {
	if strings.ContainsRune(name, '/') {
		return nil
	}
	if _, err := b.opts.LookPath(name); err != nil {
		return appErr.Newf(appErr.CompilationError, "toolchain not found: %s", name)
	}
	return nil
}

// compile runs the compile template for unit and maps the outcome to a
// CompilationError. Only host faults are returned as other errors.
func (b *base) compile(ctx context.Context, unit *Unit) error {
	argv, err := expandCommand(b.lang.CompileCmdTpl, b.vars(unit))
	if err != nil {
		return err
	}
	if err := b.requireTool(argv[0]); err != nil {
		return err
	}

	runRes, err := b.eng.Run(ctx, spec.RunSpec{
		Cmd:       argv,
		WorkDir:   unit.Workspace.RootDir,
		Env:       b.lang.Env,
		TimeoutMs: b.opts.CompileTimeout.Milliseconds(),
		Label:     "compile",
	})
	if err != nil {
		return err
	}
	unit.CompileMs = runRes.ElapsedMs
	ok := runRes.Classification == result.ClassSuccess
	b.opts.Metrics.ObserveCompile(ctx, b.lang.ID, ok, runRes.ElapsedMs)
	if ok {
		logger.Debug(ctx, "compile finished", zap.String("language", b.lang.ID), zap.Int64("time_ms", runRes.ElapsedMs))
		return nil
	}

	logger.Info(ctx, "compile failed",
		zap.String("language", b.lang.ID),
		zap.String("classification", string(runRes.Classification)),
		zap.Int("exit_code", runRes.ExitCode),
	)
	return appErr.New(appErr.CompilationError).WithMessage(compileMessage(runRes, b.opts.CompileTimeout.Milliseconds()))
}

func compileMessage(res result.RawExecutionResult, timeoutMs int64) string {
	if res.Classification == result.ClassTimeout {
		return fmt.Sprintf("compilation timed out after %dms", timeoutMs)
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(res.Stdout)
	}
	if msg == "" {
		msg = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
	}
	return msg
}
