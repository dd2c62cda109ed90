package workspace

import "path/filepath"

const (
	buildDirName = "build"
	testsDirName = "tests"
)

// Layout describes the directory tree of one request workspace.
//
//	<root>/<lang>-<id>/           request root
//	<root>/<lang>-<id>/<source>   submitted source
//	<root>/<lang>-<id>/build/     compiler output (binary or classes)
//	<root>/<lang>-<id>/tests/N/   scratch working dir of test N
type Layout struct {
	RootDir  string
	BuildDir string
	TestsDir string
}

func newLayout(root string) Layout {
	return Layout{
		RootDir:  root,
		BuildDir: filepath.Join(root, buildDirName),
		TestsDir: filepath.Join(root, testsDirName),
	}
}

// SourcePath returns the path of a source file inside the request root.
func (l Layout) SourcePath(name string) string {
	return filepath.Join(l.RootDir, name)
}

// BinaryPath returns the path of a build artifact.
func (l Layout) BinaryPath(name string) string {
	return filepath.Join(l.BuildDir, name)
}
