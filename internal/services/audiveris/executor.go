package audiveris

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"omrpipe/internal/outcome"
)

// killGrace bounds how long Wait keeps draining pipes after the group is killed.
const killGrace = 2 * time.Second

// Request is one engine invocation.
type Request struct {
	Binary      string
	Args        []string
	Env         []string
	Timeout     time.Duration
	OutputLimit int
}

// Execution is what the executor observed about a run.
type Execution struct {
	Started  bool
	StartErr error
	TimedOut bool
	Canceled bool
	ExitCode int
	Signal   string
	Stdout   outcome.Stream
	Stderr   outcome.Stream
	Elapsed  time.Duration
}

// Executor abstracts process execution for testability.
type Executor interface {
	Run(ctx context.Context, req Request) Execution
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, req Request) Execution {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stdout := newBoundedBuffer(req.OutputLimit)
	stderr := newBoundedBuffer(req.OutputLimit)

	cmd := exec.CommandContext(runCtx, req.Binary, req.Args...) //nolint:gosec
	cmd.Env = req.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid targets the whole process group, including JVM children.
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = killGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Execution{StartErr: err, ExitCode: -1, Elapsed: time.Since(start)}
	}
	// Wait reports exec.ErrWaitDelay when a grandchild held the pipes open; the
	// exit status below is still authoritative.
	_ = cmd.Wait()
	exe := Execution{
		Started: true,
		Elapsed: time.Since(start),
		Stdout:  stdout.Stream(),
		Stderr:  stderr.Stream(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		exe.TimedOut = true
	} else if ctx.Err() != nil {
		exe.Canceled = true
	}

	exe.ExitCode, exe.Signal = exitStatus(cmd.ProcessState)
	return exe
}

func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return -1, status.Signal().String()
	}
	return state.ExitCode(), ""
}

// boundedBuffer keeps the first limit bytes written and counts the rest.
type boundedBuffer struct {
	mu    sync.Mutex
	limit int
	head  []byte
	total int64
}

func newBoundedBuffer(limit int) *boundedBuffer {
	if limit < 0 {
		limit = 0
	}
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total += int64(len(p))
	if room := b.limit - len(b.head); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		b.head = append(b.head, p[:room]...)
	}
	return len(p), nil
}

func (b *boundedBuffer) Stream() outcome.Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return outcome.Stream{Head: string(b.head), Total: b.total}
}
