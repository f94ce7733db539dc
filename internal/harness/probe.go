package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Target is something the Prober can poll.
type Target interface {
	BaseURL() string

	// Done is closed when the server has exited. A nil channel means the exit cannot be observed.
	Done() <-chan struct{}
}

// Prober polls a liveness endpoint until the server answers.
//
// The interval is fixed: start-up time is dominated by one-time initialisation,
// and a fixed bound keeps the worst case predictable.
type Prober struct {
	client  *http.Client
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a prober for path (e.g /health). timeout bounds each request.
func NewProber(path string, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		client: &http.Client{
			// a fresh connection per probe, so a half-started server cannot leave a stale one behind
			Transport: &http.Transport{DisableKeepAlives: true},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		path:    path,
		timeout: timeout,
		logger:  logger,
	}
}

// Probe makes a single liveness request. Anything other than a 2xx response within the timeout is a ProbeFailure.
func (p *Prober) Probe(ctx context.Context, baseURL string) error {
	url := baseURL + p.path

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapProbeFailure(url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return WrapProbeFailure(url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return WrapProbeFailure(url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// WaitUntilReady probes target up to maxAttempts times, sleeping interval between attempts.
// It returns true on the first 2xx response and false when the attempts are used up,
// the target has exited or ctx is cancelled.
func (p *Prober) WaitUntilReady(ctx context.Context, target Target, maxAttempts int, interval time.Duration) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if exited(target) {
			p.logger.Debug("server exited before becoming ready", slog.Int("attempt", attempt))
			return false
		}

		err := p.Probe(ctx, target.BaseURL())
		if err == nil {
			p.logger.Debug("server ready", slog.String("url", target.BaseURL()), slog.Int("attempt", attempt))
			return true
		}
		p.logger.Debug("readiness probe failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error", err.Error()),
		)

		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-target.Done():
			timer.Stop()
			p.logger.Debug("server exited before becoming ready", slog.Int("attempt", attempt))
			return false
		case <-timer.C:
		}
	}
	return false
}

func exited(target Target) bool {
	select {
	case <-target.Done():
		return true
	default:
		return false
	}
}
