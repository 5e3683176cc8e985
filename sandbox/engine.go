package sandbox

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExecuteRequest represents the parameters for one code execution
type ExecuteRequest struct {
	Language   string
	Code       string
	TimeoutSec int
}

// OutputFile is a single file collected from the output directory
type OutputFile struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64
	Size int64  `json:"size"`
}

// ExecuteResult represents the result of one code execution
type ExecuteResult struct {
	Stdout   string       `json:"stdout"`
	Stderr   string       `json:"stderr"`
	ExitCode int          `json:"exitCode"`
	Files    []OutputFile `json:"files"`
}

// Executor defines the interface for code execution
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// ExitCodeTimeout is the reserved exit code reported when the process
// group was killed because the wall-clock timeout expired.
const ExitCodeTimeout = 124

// Config holds configuration for the execution engine
type Config struct {
	DefaultTimeoutSec int
	MaxTimeoutSec     int
	DrainTimeout      time.Duration
	MaxOutputBytes    int
	MaxFileBytes      int64
	WorkRoot          string // parent dir for workspaces, os.TempDir() if empty
	Commands          map[string]string
	ExtraEnv          map[string]map[string]string
}

// Engine implements Executor by running code in a disposable subprocess.
// Each invocation owns a private workspace directory and a child process
// group; no state is shared across invocations.
type Engine struct {
	logger   *zap.Logger
	config   *Config
	launcher Launcher
	fs       FileSystem
}

// EngineOption defines a functional option for Engine
type EngineOption func(*Engine)

// WithLauncher sets the process Launcher for Engine
func WithLauncher(launcher Launcher) EngineOption {
	return func(e *Engine) {
		e.launcher = launcher
	}
}

// WithFileSystem sets the FileSystem for Engine
func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *Engine) {
		e.fs = fs
	}
}

// NewEngine creates a new Engine with default implementations and optional interfaces
func NewEngine(logger *zap.Logger, config *Config, opts ...EngineOption) *Engine {
	engine := &Engine{
		logger:   logger,
		config:   config,
		launcher: &GroupLauncher{},  // Default implementation
		fs:       &RealFileSystem{}, // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// SupportedLanguages returns the names of the supported languages, sorted.
func (e *Engine) SupportedLanguages() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether language belongs to the engine's fixed language set.
func (e *Engine) Supports(language string) bool {
	_, ok := languages[language]
	return ok
}

// Execute runs the submitted code in a fresh workspace and subprocess.
//
// An error is returned only for invalid input (unsupported language, empty
// code), before any filesystem or process resource is allocated. Every
// runtime fault after that point is reported inside the ExecuteResult:
// staging and launch failures as exit code 1 with a message in stderr,
// timeouts as exit code 124.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	lang, ok := languages[req.Language]
	if !ok {
		return ExecuteResult{}, fmt.Errorf("unsupported language: %s", req.Language)
	}
	if strings.TrimSpace(req.Code) == "" {
		return ExecuteResult{}, fmt.Errorf("empty code")
	}

	timeoutSec := e.clampTimeout(req.TimeoutSec)
	log := e.logger.With(
		zap.String("execution_id", uuid.NewString()),
		zap.String("language", req.Language),
		zap.Int("timeout_sec", timeoutSec),
	)

	ws, err := e.stageWorkspace(lang, req.Code)
	if err != nil {
		log.Error("workspace staging failed", zap.Error(err))
		return failureResult(fmt.Sprintf("failed to stage execution: %v", err)), nil
	}
	// Unconditional best-effort cleanup. Errors are logged, never surfaced.
	defer ws.teardown(e.fs, log)

	spec := LaunchSpec{
		Path:           e.command(lang),
		Args:           []string{ws.scriptPath},
		Dir:            ws.root,
		Env:            e.childEnv(lang, ws),
		MaxOutputBytes: e.config.MaxOutputBytes,
	}

	start := time.Now()
	proc, err := e.launcher.Launch(spec)
	if err != nil {
		log.Error("launch failed", zap.Error(err))
		res := failureResult(fmt.Sprintf("failed to launch %s: %v", spec.Path, err))
		res.Files = collectOutputs(ws.outputDir, e.config.MaxFileBytes, log)
		return res, nil
	}

	res := e.supervise(ctx, proc, timeoutSec, log)
	res.Files = collectOutputs(ws.outputDir, e.config.MaxFileBytes, log)

	log.Info("execution finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Int("stdout_len", len(res.Stdout)),
		zap.Int("stderr_len", len(res.Stderr)),
		zap.Int("file_count", len(res.Files)),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// supervise blocks until the child exits or the timeout expires. On expiry
// the entire process group is killed and a bounded drain window collects
// whatever partial output was already buffered.
func (e *Engine) supervise(ctx context.Context, proc Process, timeoutSec int, log *zap.Logger) ExecuteResult {
	timer := time.NewTimer(time.Duration(timeoutSec) * time.Second)
	defer timer.Stop()

	select {
	case <-proc.Done():
		stdout, stderr := proc.Output()
		exitCode, waitErr := proc.Result()
		if waitErr != nil && exitCode < 0 {
			log.Error("wait failed", zap.Error(waitErr))
			return failureResult(fmt.Sprintf("execution failed: %v", waitErr))
		}
		return ExecuteResult{
			Stdout:   sanitize(stdout, e.config.MaxOutputBytes),
			Stderr:   sanitize(stderr, e.config.MaxOutputBytes),
			ExitCode: exitCode,
			Files:    []OutputFile{},
		}

	case <-ctx.Done():
		e.killAndDrain(proc, log)
		stdout, stderr := proc.Output()
		return ExecuteResult{
			Stdout:   sanitize(stdout, e.config.MaxOutputBytes),
			Stderr:   prependMessage("Execution canceled", stderr, e.config.MaxOutputBytes),
			ExitCode: 1,
			Files:    []OutputFile{},
		}

	case <-timer.C:
		e.killAndDrain(proc, log)
		stdout, stderr := proc.Output()
		log.Warn("execution timed out")
		msg := fmt.Sprintf("Execution timed out after %d seconds", timeoutSec)
		return ExecuteResult{
			Stdout:   sanitize(stdout, e.config.MaxOutputBytes),
			Stderr:   prependMessage(msg, stderr, e.config.MaxOutputBytes),
			ExitCode: ExitCodeTimeout,
			Files:    []OutputFile{},
		}
	}
}

// killAndDrain force-kills the process group, then waits a bounded drain
// window for the pipes to flush. If descendants keep the pipes open past
// the window, whatever was captured so far is used instead of blocking.
func (e *Engine) killAndDrain(proc Process, log *zap.Logger) {
	if err := proc.TerminateGroup(); err != nil {
		log.Warn("process group kill failed", zap.Error(err))
	}
	select {
	case <-proc.Done():
	case <-time.After(e.config.DrainTimeout):
		log.Warn("drain window elapsed before process exit")
	}
}

func (e *Engine) clampTimeout(sec int) int {
	switch {
	case sec == 0:
		return e.config.DefaultTimeoutSec
	case sec < 1:
		return 1
	case sec > e.config.MaxTimeoutSec:
		return e.config.MaxTimeoutSec
	default:
		return sec
	}
}

// command resolves the interpreter binary for a language, preferring the
// configured override. Never derived from request text.
func (e *Engine) command(lang *languageSpec) string {
	if cmd, ok := e.config.Commands[lang.name]; ok && cmd != "" {
		return cmd
	}
	return lang.defaultCommand
}

// childEnv builds the explicit allow-list environment for the child. The
// host's ambient environment is never inherited.
func (e *Engine) childEnv(lang *languageSpec, ws *workspace) []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + ws.root,
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
		outputDirEnv + "=" + ws.outputDir,
	}

	extra := e.config.ExtraEnv[lang.name]
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func (e *Engine) workRoot() string {
	if e.config.WorkRoot != "" {
		return e.config.WorkRoot
	}
	return os.TempDir()
}

// failureResult reports a local fault (staging or launch) as a synthetic
// execution failure rather than an error.
func failureResult(msg string) ExecuteResult {
	return ExecuteResult{
		Stdout:   "",
		Stderr:   msg,
		ExitCode: 1,
		Files:    []OutputFile{},
	}
}

// sanitize truncates raw output to the byte cap and replaces invalid
// UTF-8 sequences. Decoding is permissive, never fatal.
func sanitize(raw []byte, maxBytes int) string {
	if len(raw) > maxBytes {
		raw = raw[:maxBytes]
	}
	return strings.ToValidUTF8(string(raw), "�")
}

// prependMessage synthesizes stderr for kill paths: the message first,
// then any partial output captured before the kill.
func prependMessage(msg string, partial []byte, maxBytes int) string {
	s := msg
	if p := sanitize(partial, maxBytes); p != "" {
		s += "\n" + p
	}
	if len(s) > maxBytes {
		s = s[:maxBytes]
	}
	return s
}
