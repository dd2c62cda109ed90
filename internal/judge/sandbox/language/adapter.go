// Package language turns source code into a runnable command for each supported language.
package language

import (
	"context"
	"os"
	"os/exec"
	"time"

	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
)

const defaultCompileTimeout = 10 * time.Second

// Adapter prepares, builds and cleans up one language's programs.
//
// Prepare never executes user code. BuildCommand compiles when the language
// needs it; compiler failures and missing toolchains are returned as
// CompilationError so callers can report them as a verdict.
type Adapter interface {
	Language() profile.LanguageSpec
	Prepare(ctx context.Context, ws *workspace.Workspace, code string) (*Unit, error)
	BuildCommand(ctx context.Context, unit *Unit) (Command, error)
	Cleanup(unit *Unit) error
}

// Unit is a prepared program inside a workspace.
type Unit struct {
	Language   profile.LanguageSpec
	Workspace  *workspace.Workspace
	SourcePath string
	// ClassName is set for class-based languages.
	ClassName string
	// CompileMs is the wall time of the build step, zero for interpreted languages.
	CompileMs int64

	cmd   *Command
	built bool
}

// Command is the argv and environment used to start the program.
type Command struct {
	Argv    []string
	WorkDir string
	Env     []string
}

// Options holds dependencies shared by all adapters.
type Options struct {
	// CompileTimeout caps each build step.
	CompileTimeout time.Duration
	// LookPath resolves toolchain binaries. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
	Metrics  observer.MetricsRecorder
}

func (o Options) withDefaults() Options {
	if o.CompileTimeout <= 0 {
		o.CompileTimeout = defaultCompileTimeout
	}
	if o.LookPath == nil {
		o.LookPath = exec.LookPath
	}
	if o.Metrics == nil {
		o.Metrics = observer.NoopMetricsRecorder{}
	}
	return o
}

// New creates the adapter matching lang.Kind.
func New(lang profile.LanguageSpec, eng engine.Engine, opts Options) (Adapter, error) {
	if err := validateSpec(lang); err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("engine is required")
	}
	b := base{lang: lang, eng: eng, opts: opts.withDefaults()}
	switch lang.Kind {
	case profile.KindInterpreted:
		return &interpretedAdapter{base: b}, nil
	case profile.KindClass:
		return &classAdapter{base: b}, nil
	case profile.KindNative:
		return &nativeAdapter{base: b}, nil
	default:
		return nil, appErr.Newf(appErr.InvalidParams, "unknown language kind %q for %s", lang.Kind, lang.ID)
	}
}

func validateSpec(lang profile.LanguageSpec) error {
	if lang.ID == "" {
		return appErr.ValidationError("language.id", "required")
	}
	if lang.RunCmdTpl == "" {
		return appErr.ValidationError("language.runCmd", "required for "+lang.ID)
	}
	if lang.CompileEnabled() && lang.CompileCmdTpl == "" {
		return appErr.ValidationError("language.compileCmd", "required for "+lang.ID)
	}
	if lang.Kind != profile.KindClass && lang.SourceFile == "" {
		return appErr.ValidationError("language.sourceFile", "required for "+lang.ID)
	}
	if lang.Kind == profile.KindNative && lang.BinaryFile == "" {
		return appErr.ValidationError("language.binaryFile", "required for "+lang.ID)
	}
	return nil
}

// base carries what every adapter variant shares.
type base struct {
	lang profile.LanguageSpec
	eng  engine.Engine
	opts Options
}

func (b *base) Language() profile.LanguageSpec {
	return b.lang
}

func (b *base) writeSource(ws *workspace.Workspace, name, code string) (*Unit, error) {
	if ws == nil {
		return nil, appErr.New(appErr.WorkspaceError).WithMessage("workspace is required")
	}
	path, err := ws.WriteFile(name, []byte(code))
	if err != nil {
		return nil, err
	}
	return &Unit{Language: b.lang, Workspace: ws, SourcePath: path}, nil
}

// Cleanup removes the source and build artifacts. The workspace itself is
// released by its owner.
func (b *base) Cleanup(unit *Unit) error {
	if unit == nil || unit.Workspace == nil {
		return nil
	}
	if err := os.RemoveAll(unit.SourcePath); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "remove source failed")
	}
	entries, err := os.ReadDir(unit.Workspace.BuildDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return appErr.Wrapf(err, appErr.WorkspaceError, "read build dir failed")
	}
	for _, entry := range entries {
		if err := os.RemoveAll(unit.Workspace.BinaryPath(entry.Name())); err != nil {
			return appErr.Wrapf(err, appErr.WorkspaceError, "remove build artifact failed")
		}
	}
	unit.cmd = nil
	unit.built = false
	return nil
}

func (b *base) runCommand(unit *Unit) (Command, error) {
	argv, err := expandCommand(b.lang.RunCmdTpl, b.vars(unit))
	if err != nil {
		return Command{}, err
	}
	if err := b.requireTool(argv[0]); err != nil {
		return Command{}, err
	}
	cmd := Command{Argv: argv, WorkDir: unit.Workspace.RootDir, Env: b.lang.Env}
	unit.cmd = &cmd
	unit.built = true
	return cmd, nil
}

func (b *base) vars(unit *Unit) templateVars {
	vars := templateVars{
		src:        unit.SourcePath,
		out:        unit.Workspace.BuildDir,
		class:      unit.ClassName,
		extraFlags: b.lang.ExtraFlags,
	}
	if b.lang.BinaryFile != "" {
		vars.bin = unit.Workspace.BinaryPath(b.lang.BinaryFile)
	}
	return vars
}
