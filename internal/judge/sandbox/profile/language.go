// Package profile defines language profiles used by the sandbox.
package profile

// Kind selects the adapter strategy for a language.
type Kind string

const (
	// KindInterpreted writes one source file and hands it to an interpreter.
	KindInterpreted Kind = "interpreted"
	// KindClass compiles a single public class and runs it on a VM.
	KindClass Kind = "class"
	// KindNative compiles to a native binary.
	KindNative Kind = "native"
)

// LanguageSpec defines how to compile and run a language.
//
// Command templates are split with shell quoting rules after expanding
// {src}, {bin}, {out}, {class} and {extraFlags}.
type LanguageSpec struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Aliases        []string `yaml:"aliases" json:"aliases,omitempty"`
	Kind           Kind     `yaml:"kind" json:"kind"`
	SourceFile     string   `yaml:"sourceFile" json:"-"`
	BinaryFile     string   `yaml:"binaryFile" json:"-"`
	CompileCmdTpl  string   `yaml:"compileCmd" json:"compile_cmd,omitempty"`
	RunCmdTpl      string   `yaml:"runCmd" json:"run_cmd"`
	ExtraFlags     []string `yaml:"extraFlags" json:"-"`
	Env            []string `yaml:"env" json:"-"`
	TimeMultiplier float64  `yaml:"timeMultiplier" json:"time_multiplier,omitempty"`
}

// CompileEnabled reports whether the language needs a build step.
func (s LanguageSpec) CompileEnabled() bool {
	return s.Kind == KindClass || s.Kind == KindNative
}

// DefaultLanguages returns the built-in language table.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:         "python",
			Name:       "Python 3",
			Aliases:    []string{"py", "python3"},
			Kind:       KindInterpreted,
			SourceFile: "main.py",
			RunCmdTpl:  "python3 -u {src}",
			Env:        []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"},
		},
		{
			ID:         "javascript",
			Name:       "JavaScript (Node.js)",
			Aliases:    []string{"js", "node"},
			Kind:       KindInterpreted,
			SourceFile: "main.js",
			RunCmdTpl:  "node {src}",
		},
		{
			ID:            "java",
			Name:          "Java",
			Kind:          KindClass,
			CompileCmdTpl: "javac -encoding UTF-8 -d {out} {src}",
			RunCmdTpl:     "java -Xss64m -cp {out} {class}",
		},
		{
			ID:            "cpp",
			Name:          "C++17 (g++)",
			Aliases:       []string{"c++", "cc"},
			Kind:          KindNative,
			SourceFile:    "main.cpp",
			BinaryFile:    "main",
			CompileCmdTpl: "g++ -O2 -std=c++17 -pipe -o {bin} {src} {extraFlags}",
			RunCmdTpl:     "{bin}",
		},
		{
			ID:            "c",
			Name:          "C11 (gcc)",
			Kind:          KindNative,
			SourceFile:    "main.c",
			BinaryFile:    "main",
			CompileCmdTpl: "gcc -O2 -std=c11 -pipe -o {bin} {src} {extraFlags} -lm",
			RunCmdTpl:     "{bin}",
		},
	}
}
