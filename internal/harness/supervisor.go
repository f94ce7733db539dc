package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a server instance.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	defaultStopGrace = 2 * time.Second

	// how long to wait for a process to disappear after SIGKILL
	killWait = 5 * time.Second

	// how long to wait for the output readers once the process group is gone
	readerWait = time.Second
)

// ProcessConfig describes the server process to launch.
type ProcessConfig struct {
	Command string
	Args    []string
	Dir     string

	// Env is added to the current environment. HOST and PORT are always set by the supervisor.
	Env map[string]string

	// Host defaults to 127.0.0.1. Port 0 means pick a free port.
	Host string
	Port int

	// OutputLimit bounds the bytes kept per stream.
	OutputLimit int
	StopGrace   time.Duration
}

// Supervisor launches server processes and guarantees they are terminated.
type Supervisor struct {
	logger *slog.Logger
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logger}
}

// Start reserves the port, spawns the process and returns as soon as it is running.
// It does not wait for the server to accept connections, see Prober.WaitUntilReady.
//
// The port is released just before the child binds it, so another process can take it in between.
// The server retries its bind (LISTEN_RETRIES) to cover that window.
func (s *Supervisor) Start(ctx context.Context, cfg ProcessConfig) (*ServerHandle, error) {
	if cfg.Command == "" {
		return nil, NewLaunchError("no server command configured", nil)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}

	port, err := reservePort(cfg.Host, cfg.Port)
	if err != nil {
		return nil, NewLaunchError(fmt.Sprintf("cannot bind %s", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))), err)
	}

	if err := ctx.Err(); err != nil {
		return nil, NewLaunchError("start cancelled", err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = childEnv(cfg.Env, cfg.Host, port)
	setProcessGroup(cmd)

	h := &ServerHandle{
		baseURL: "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		port:    port,
		stdout:  NewOutputBuffer(cfg.OutputLimit),
		stderr:  NewOutputBuffer(cfg.OutputLimit),
		done:    make(chan struct{}),
		grace:   cfg.StopGrace,
		logger:  s.logger,
	}

	// the pipes are plain files so Wait returns when the process exits, even if
	// a grandchild still holds the write end
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, NewLaunchError("failed to create stdout pipe", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, NewLaunchError("failed to create stderr pipe", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			f.Close()
		}
		return nil, NewLaunchError(fmt.Sprintf("failed to start %s", cfg.Command), err)
	}
	stdoutW.Close()
	stderrW.Close()

	h.cmd = cmd
	h.pid = cmd.Process.Pid

	h.readers.Add(2)
	go h.capture(h.stdout, stdoutR)
	go h.capture(h.stderr, stderrR)
	go h.wait()

	s.logger.Debug("server process started",
		slog.String("command", cfg.Command),
		slog.Int("pid", h.pid),
		slog.String("url", h.baseURL),
	)
	return h, nil
}

// reservePort checks that host:port can be bound and returns the port. Port 0 asks the OS for a free one.
func reservePort(host string, port int) (int, error) {
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func childEnv(overrides map[string]string, host string, port int) []string {
	env := os.Environ()

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	// later entries win in exec
	return append(env, "HOST="+host, "PORT="+strconv.Itoa(port))
}

// ServerHandle is a running server process owned by the Supervisor.
type ServerHandle struct {
	cmd     *exec.Cmd
	pid     int
	baseURL string
	port    int

	stdout *OutputBuffer
	stderr *OutputBuffer

	state    atomic.Int32
	stopping atomic.Bool

	// closed when the process has exited; exitErr and exitCode are set before
	done     chan struct{}
	exitErr  error
	exitCode int

	readers  sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
	grace    time.Duration
	logger   *slog.Logger
}

func (h *ServerHandle) capture(buf *OutputBuffer, r *os.File) {
	defer h.readers.Done()
	defer r.Close()
	if _, err := buf.ReadFrom(r); err != nil && !errors.Is(err, os.ErrClosed) {
		h.logger.Debug("output reader failed, discarding the rest", slog.String("error", err.Error()))
		// keep the pipe open until the child exits, a closed read end kills it with SIGPIPE
		_, _ = io.Copy(io.Discard, r)
	}
}

func (h *ServerHandle) wait() {
	err := h.cmd.Wait()
	h.exitErr = err
	h.exitCode = h.cmd.ProcessState.ExitCode()

	if !h.stopping.Load() {
		h.state.Store(int32(StateFailed))
		h.logger.Debug("server process exited",
			slog.Int("pid", h.pid),
			slog.Int("exit_code", h.exitCode),
		)
	}
	close(h.done)
}

func (h *ServerHandle) PID() int        { return h.pid }
func (h *ServerHandle) Port() int       { return h.port }
func (h *ServerHandle) BaseURL() string { return h.baseURL }

// Done is closed when the process has exited.
func (h *ServerHandle) Done() <-chan struct{} { return h.done }

func (h *ServerHandle) State() State { return State(h.state.Load()) }

// MarkReady records a successful readiness probe. It has no effect once the process failed or stopped.
func (h *ServerHandle) MarkReady() {
	h.state.CompareAndSwap(int32(StateStarting), int32(StateReady))
}

// ExitCode returns the exit code once the process has exited.
func (h *ServerHandle) ExitCode() (int, bool) {
	select {
	case <-h.done:
		return h.exitCode, true
	default:
		return 0, false
	}
}

// Output returns the captured stdout and stderr. Once the process has exited it
// waits briefly for the readers to drain the pipes.
func (h *ServerHandle) Output() (string, string) {
	select {
	case <-h.done:
		h.waitReaders()
	default:
	}
	return h.stdout.String(), h.stderr.String()
}

// Stop terminates the process group: SIGTERM, then SIGKILL after the grace period.
// It is safe to call on a nil handle, on an exited process and more than once.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.stopOnce.Do(func() {
		h.stopErr = h.stop(ctx)
	})
	return h.stopErr
}

func (h *ServerHandle) stop(ctx context.Context) error {
	h.stopping.Store(true)
	defer h.state.Store(int32(StateStopped))

	select {
	case <-h.done:
		// the leader is gone but go run style launchers can leave children behind
		_ = kill(h.cmd.Process)
		h.waitReaders()
		return nil
	default:
	}

	if err := terminate(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Debug("failed to signal server process", slog.Int("pid", h.pid), slog.String("error", err.Error()))
	}

	grace := time.NewTimer(h.grace)
	defer grace.Stop()

	select {
	case <-h.done:
	case <-grace.C:
		h.logger.Warn("server did not exit after SIGTERM, killing", slog.Int("pid", h.pid))
	case <-ctx.Done():
	}

	// the group may outlive the leader, so kill unconditionally
	if err := kill(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Debug("failed to kill server process", slog.Int("pid", h.pid), slog.String("error", err.Error()))
	}

	select {
	case <-h.done:
	case <-time.After(killWait):
		return fmt.Errorf("server process %d did not exit after kill", h.pid)
	}

	h.waitReaders()
	h.logger.Debug("server process stopped", slog.Int("pid", h.pid), slog.Int("exit_code", h.exitCode))
	return nil
}

func (h *ServerHandle) waitReaders() {
	done := make(chan struct{})
	go func() {
		h.readers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(readerWait):
	}
}
