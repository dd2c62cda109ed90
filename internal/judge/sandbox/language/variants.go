package language

import (
	"context"
	"regexp"

	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
)

// interpretedAdapter writes one source file and hands it to an interpreter.
type interpretedAdapter struct {
	base
}

func (a *interpretedAdapter) Prepare(ctx context.Context, ws *workspace.Workspace, code string) (*Unit, error) {
	return a.writeSource(ws, a.lang.SourceFile, code)
}

func (a *interpretedAdapter) BuildCommand(ctx context.Context, unit *Unit) (Command, error) {
	if unit == nil {
		return Command{}, appErr.New(appErr.JudgeSystemError).WithMessage("unit is required")
	}
	if unit.built {
		return *unit.cmd, nil
	}
	return a.runCommand(unit)
}

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	publicClass  = regexp.MustCompile(`\bpublic\s+(?:(?:final|abstract|strictfp)\s+)*class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
)

// PublicClassName returns the first public top-level class declared in src.
func PublicClassName(src string) (string, bool) {
	stripped := lineComment.ReplaceAllString(blockComment.ReplaceAllString(src, ""), "")
	m := publicClass.FindStringSubmatch(stripped)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// classAdapter compiles a single public class and runs it on a VM.
// The source file is named after the class.
type classAdapter struct {
	base
}

func (a *classAdapter) Prepare(ctx context.Context, ws *workspace.Workspace, code string) (*Unit, error) {
	className, ok := PublicClassName(code)
	if !ok {
		return nil, appErr.New(appErr.CompilationError).WithMessage("no public class found in source")
	}
	unit, err := a.writeSource(ws, className+".java", code)
	if err != nil {
		return nil, err
	}
	unit.ClassName = className
	return unit, nil
}

func (a *classAdapter) BuildCommand(ctx context.Context, unit *Unit) (Command, error) {
	return buildCompiled(ctx, &a.base, unit)
}

// nativeAdapter compiles to a binary in the build dir.
type nativeAdapter struct {
	base
}

func (a *nativeAdapter) Prepare(ctx context.Context, ws *workspace.Workspace, code string) (*Unit, error) {
	return a.writeSource(ws, a.lang.SourceFile, code)
}

func (a *nativeAdapter) BuildCommand(ctx context.Context, unit *Unit) (Command, error) {
	return buildCompiled(ctx, &a.base, unit)
}

// buildCompiled compiles unit once and caches the resulting command.
func buildCompiled(ctx context.Context, b *base, unit *Unit) (Command, error) {
	if unit == nil {
		return Command{}, appErr.New(appErr.JudgeSystemError).WithMessage("unit is required")
	}
	if unit.built {
		return *unit.cmd, nil
	}
	if err := b.compile(ctx, unit); err != nil {
		return Command{}, err
	}
	return b.runCommand(unit)
}
