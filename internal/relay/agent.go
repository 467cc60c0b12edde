// Package relay connects a WebSocket client to an agent process that speaks
// line-delimited JSON on stdin and stdout. Browser-control requests from
// either side are answered locally instead of being forwarded.
package relay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxLineSize = 16 << 20

var (
	ErrAgentNotRunning = errors.New("agent is not running")
	ErrRestartLimited  = errors.New("agent restart rate limit exceeded")
)

// Agent supervises the agent process. Its stdout lines are delivered on
// Lines across restarts.
type Agent struct {
	command []string
	env     []string
	limiter *rate.Limiter
	logger  *zap.Logger

	lines    chan []byte
	quit     chan struct{}
	quitOnce sync.Once

	mu   sync.Mutex
	proc *process
}

type process struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	done    chan struct{}
	writeMu sync.Mutex
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithEnv adds KEY=value pairs to the agent's environment.
func WithEnv(kv ...string) AgentOption {
	return func(a *Agent) { a.env = append(a.env, kv...) }
}

// WithRestartLimit bounds how often Restart may replace the process.
func WithRestartLimit(limiter *rate.Limiter) AgentOption {
	return func(a *Agent) { a.limiter = limiter }
}

// WithLogger sets the agent's logger.
func WithLogger(logger *zap.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAgent creates a supervisor for command. The process is not started
// until Start.
func NewAgent(command []string, opts ...AgentOption) *Agent {
	a := &Agent{
		command: append([]string(nil), command...),
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
		logger:  zap.NewNop(),
		lines:   make(chan []byte, 256),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("agent")
	return a
}

// Lines delivers the agent's stdout, one JSON line per element.
func (a *Agent) Lines() <-chan []byte { return a.lines }

// Running reports whether a process is alive.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.proc != nil
}

// Start launches the process if it is not already running.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.proc != nil {
		return nil
	}
	select {
	case <-a.quit:
		return ErrAgentNotRunning
	default:
	}
	if len(a.command) == 0 {
		return errors.New("agent command is empty")
	}

	cmd := exec.Command(a.command[0], a.command[1:]...)
	cmd.Env = append(os.Environ(), a.env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open agent stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open agent stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start agent %q: %w", a.command[0], err)
	}

	p := &process{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	a.proc = p
	log := a.logger.With(zap.Int("pid", cmd.Process.Pid))
	log.Info("Agent started.", zap.Strings("command", a.command))

	var g errgroup.Group
	g.Go(func() error { return a.pumpStdout(stdout) })
	g.Go(func() error { return pumpStderr(stderr, log) })
	go func() {
		if err := g.Wait(); err != nil {
			log.Warn("Agent output pump failed.", zap.Error(err))
		}
		// Wait only after both pipes are drained.
		err := cmd.Wait()
		log.Info("Agent exited.", zap.Int("exit_code", cmd.ProcessState.ExitCode()), zap.NamedError("reason", err))
		a.mu.Lock()
		if a.proc == p {
			a.proc = nil
		}
		a.mu.Unlock()
		close(p.done)
	}()
	return nil
}

func (a *Agent) pumpStdout(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		if len(line) == 0 {
			continue
		}
		select {
		case a.lines <- line:
		case <-a.quit:
			_, _ = io.Copy(io.Discard, r)
			return nil
		}
	}
	return sc.Err()
}

func pumpStderr(r io.Reader, log *zap.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		log.Info("Agent stderr.", zap.String("line", sc.Text()))
	}
	return sc.Err()
}

// Send writes one line to the agent's stdin.
func (a *Agent) Send(line []byte) error {
	a.mu.Lock()
	p := a.proc
	a.mu.Unlock()
	if p == nil {
		return ErrAgentNotRunning
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')
	if _, err := p.stdin.Write(buf); err != nil {
		return fmt.Errorf("failed to write to agent: %w", err)
	}
	return nil
}

// Stop kills the process and waits for it to exit.
func (a *Agent) Stop() {
	a.mu.Lock()
	p := a.proc
	a.mu.Unlock()
	if p == nil {
		return
	}
	_ = p.stdin.Close()
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		a.logger.Warn("Failed to kill agent.", zap.Error(err))
	}
	<-p.done
}

// Restart replaces the process, subject to the restart limit.
func (a *Agent) Restart() error {
	if !a.limiter.Allow() {
		return ErrRestartLimited
	}
	a.Stop()
	return a.Start()
}

// Close stops the process for good.
func (a *Agent) Close() {
	a.quitOnce.Do(func() { close(a.quit) })
	a.Stop()
}
