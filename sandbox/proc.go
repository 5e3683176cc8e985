package sandbox

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
)

// LaunchSpec describes one child process: interpreter path, arguments,
// working directory, and the full explicit environment.
type LaunchSpec struct {
	Path           string
	Args           []string
	Dir            string
	Env            []string
	MaxOutputBytes int
}

// Launcher starts child processes in their own isolation unit so that the
// whole subtree can be terminated through a single handle. The termination
// strategy is swappable per platform and mockable in tests.
type Launcher interface {
	Launch(spec LaunchSpec) (Process, error)
}

// Process is a handle to a running child and its process group.
type Process interface {
	// Done is closed once the process has exited and its output pipes
	// have been drained.
	Done() <-chan struct{}
	// Result returns the exit code and wait error. Valid after Done.
	Result() (exitCode int, err error)
	// Output returns a snapshot of captured stdout and stderr. Safe to
	// call at any time, including while the process is running.
	Output() (stdout, stderr []byte)
	// TerminateGroup force-kills the entire process group. Untrusted
	// code is never asked to shut down cooperatively.
	TerminateGroup() error
}

// GroupLauncher implements Launcher using a real subprocess started as the
// leader of a new process group
type GroupLauncher struct{}

// Launch starts the command with Setpgid so the child and any descendants
// it spawns share a group id equal to the child's pid.
func (GroupLauncher) Launch(spec LaunchSpec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...) //nolint:gosec // Interpreter path comes from the language table, not request text
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &groupProcess{
		stdout: newCapBuffer(spec.MaxOutputBytes),
		stderr: newCapBuffer(spec.MaxOutputBytes),
		done:   make(chan struct{}),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	p.cmd = cmd
	p.pgid = cmd.Process.Pid

	go p.wait()
	return p, nil
}

type groupProcess struct {
	cmd    *exec.Cmd
	pgid   int
	stdout *capBuffer
	stderr *capBuffer

	done     chan struct{}
	exitCode int
	waitErr  error
}

func (p *groupProcess) wait() {
	err := p.cmd.Wait()

	p.exitCode = 0
	if err != nil {
		p.waitErr = err
		if exitError, ok := err.(*exec.ExitError); ok {
			p.exitCode = exitError.ExitCode()
			p.waitErr = nil
		} else {
			p.exitCode = -1
		}
	}

	close(p.done)
}

func (p *groupProcess) Done() <-chan struct{} {
	return p.done
}

func (p *groupProcess) Result() (int, error) {
	return p.exitCode, p.waitErr
}

func (p *groupProcess) Output() ([]byte, []byte) {
	return p.stdout.Bytes(), p.stderr.Bytes()
}

// TerminateGroup sends SIGKILL to the whole group. If the group kill fails
// (the leader may already have exited), fall back to killing the direct
// child handle.
func (p *groupProcess) TerminateGroup() error {
	if err := syscall.Kill(-p.pgid, syscall.SIGKILL); err != nil {
		if killErr := p.cmd.Process.Kill(); killErr != nil {
			return fmt.Errorf("group kill: %w (direct kill: %v)", err, killErr)
		}
	}
	return nil
}

// capBuffer is a concurrency-safe writer that keeps at most max bytes and
// silently discards the rest, so hostile output volumes cannot exhaust
// memory and the pipes keep draining.
type capBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func newCapBuffer(max int) *capBuffer {
	return &capBuffer{max: max}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if remaining := b.max - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	// Report the full length so the pipe copier never stalls.
	return len(p), nil
}

func (b *capBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
