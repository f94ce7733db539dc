package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/information-sharing-networks/wiki-harness/internal/config"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/server"
)

// HostConfig describes a server hosted in the harness process.
type HostConfig struct {
	// Env is the server configuration, exactly as a child process would receive it.
	// HOST and PORT are set by StartInProcess.
	Env map[string]string

	Host string
	Port int

	OutputLimit int

	// EchoLogs copies server logs to stderr as well as the capture buffer
	EchoLogs bool

	StopTimeout time.Duration
}

// HostHandle is a server running in a goroutine of the current process.
type HostHandle struct {
	baseURL string
	logs    *OutputBuffer

	cancel      context.CancelFunc
	done        chan struct{}
	serveErr    error
	stopTimeout time.Duration

	stopOnce sync.Once
	stopErr  error
}

// StartInProcess loads the server configuration from cfg.Env, opens (and migrates) the database
// and starts serving in the background.
func StartInProcess(ctx context.Context, cfg HostConfig) (*HostHandle, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}

	port, err := reservePort(cfg.Host, cfg.Port)
	if err != nil {
		return nil, NewLaunchError(fmt.Sprintf("cannot bind %s", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))), err)
	}

	env := make(map[string]string, len(cfg.Env)+2)
	for k, v := range cfg.Env {
		env[k] = v
	}
	env["HOST"] = cfg.Host
	env["PORT"] = strconv.Itoa(port)

	serverCfg, err := config.LoadServerConfig(environList(env))
	if err != nil {
		return nil, NewLaunchError("invalid server configuration", err)
	}

	logs := NewOutputBuffer(cfg.OutputLimit)
	var w io.Writer = logs
	if cfg.EchoLogs {
		w = io.MultiWriter(logs, os.Stderr)
	}
	level := logger.ParseLogLevel(serverCfg.LogLevel)
	if serverCfg.SuppressLogging {
		level = logger.LevelNone
	}
	serverLogger := logger.NewLogger(w, level, serverCfg.Environment)

	db, err := server.OpenDatabase(ctx, serverCfg, serverLogger)
	if err != nil {
		return nil, withOutput(NewLaunchError("server database setup failed", err), logs.String(), "")
	}

	srv := server.NewServer(db, serverCfg, serverLogger)

	serverCtx, cancel := context.WithCancel(context.Background())
	h := &HostHandle{
		baseURL:     "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		logs:        logs,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopTimeout: cfg.StopTimeout,
	}

	go func() {
		defer close(h.done)
		defer srv.DatabaseShutdown()
		if err := srv.Start(serverCtx); err != nil {
			h.serveErr = err
			serverLogger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()

	return h, nil
}

func (h *HostHandle) BaseURL() string { return h.baseURL }

// Done is closed when the server goroutine has returned.
func (h *HostHandle) Done() <-chan struct{} { return h.done }

// Output returns the captured server logs. In-process servers have no separate stderr.
func (h *HostHandle) Output() (string, string) {
	return h.logs.String(), ""
}

// Stop shuts the server down and closes its database. Safe to call more than once and on nil.
func (h *HostHandle) Stop(ctx context.Context) error {
	if h == nil {
		return nil
	}
	h.stopOnce.Do(func() {
		h.cancel()

		timer := time.NewTimer(h.stopTimeout)
		defer timer.Stop()

		select {
		case <-h.done:
			h.stopErr = h.serveErr
		case <-timer.C:
			h.stopErr = fmt.Errorf("in-process server did not stop within %s", h.stopTimeout)
		case <-ctx.Done():
			h.stopErr = ctx.Err()
		}
	})
	return h.stopErr
}

// externalHandle is a server the harness did not start and will not stop.
type externalHandle struct {
	baseURL string
}

func (e *externalHandle) BaseURL() string                { return e.baseURL }
func (e *externalHandle) Done() <-chan struct{}          { return nil }
func (e *externalHandle) Output() (string, string)       { return "", "" }
func (e *externalHandle) Stop(ctx context.Context) error { return nil }

func environList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// External returns an Instance for a server the harness did not start. Stop does nothing.
func External(baseURL string) Instance {
	return &externalHandle{baseURL: baseURL}
}
