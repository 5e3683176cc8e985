package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// File permission constants
const (
	DirPermission  = 0755
	FilePermission = 0600
)

// OutputDirName is the subdirectory of the work root scanned for files to
// return to the caller.
const OutputDirName = "output"

// FileSystem defines an interface for the file system operations the
// engine needs for staging and teardown
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// workspace is the ephemeral per-invocation directory tree: a uniquely
// named work root, an output subdirectory, and the staged script.
type workspace struct {
	root       string
	outputDir  string
	scriptPath string
}

// stageWorkspace allocates a fresh workspace and writes the staged script
// (language prelude followed by the verbatim submitted code). The output
// directory is created eagerly so the child can write to it from its first
// line.
func (e *Engine) stageWorkspace(lang *languageSpec, code string) (*workspace, error) {
	root := filepath.Join(e.workRoot(), "sandbox-"+uuid.NewString())
	if err := e.fs.MkdirAll(root, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}

	ws := &workspace{
		root:       root,
		outputDir:  filepath.Join(root, OutputDirName),
		scriptPath: filepath.Join(root, "script"+lang.extension),
	}

	if err := e.fs.MkdirAll(ws.outputDir, DirPermission); err != nil {
		ws.teardown(e.fs, e.logger)
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	script := lang.prelude(ws.outputDir) + code
	if err := e.fs.WriteFile(ws.scriptPath, []byte(script), FilePermission); err != nil {
		ws.teardown(e.fs, e.logger)
		return nil, fmt.Errorf("failed to write script: %w", err)
	}

	return ws, nil
}

// teardown recursively deletes the work root. Best-effort: errors are
// logged, never surfaced and never retried.
func (ws *workspace) teardown(fs FileSystem, log *zap.Logger) {
	if err := fs.RemoveAll(ws.root); err != nil {
		log.Warn("workspace cleanup failed", zap.String("work_root", ws.root), zap.Error(err))
	}
}
