package harness

// errors.go defines the failures the harness reports.
//
// Launch, startup, reset and auth failures are fatal to the run (or to the tests that need them).
// Probe failures are absorbed by the readiness loop and only surface as a startup timeout.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a HarnessError.
type ErrorKind string

const (
	// KindLaunch is used when the server could not be started (spawn failure, unusable port, bad config)
	KindLaunch ErrorKind = "launch"

	// KindStartupTimeout is used when the server started but never answered the liveness probe
	KindStartupTimeout ErrorKind = "startup_timeout"

	// KindResetSeed is used when wiping or seeding the database failed
	KindResetSeed ErrorKind = "reset_seed"

	// KindAuthBootstrap is used when neither login nor register produced a token
	KindAuthBootstrap ErrorKind = "auth_bootstrap"

	// KindProbe is a single failed readiness probe
	KindProbe ErrorKind = "probe"
)

// HarnessError is a structured error from the harness package.
type HarnessError struct {
	kind ErrorKind

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error

	// captured child output, included for launch and startup failures
	stdout string
	stderr string
}

func (e *HarnessError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.kind))
	b.WriteString(": ")
	b.WriteString(e.message)
	if e.wrapped != nil {
		fmt.Fprintf(&b, ": %v", e.wrapped)
	}
	if e.stdout != "" || e.stderr != "" {
		b.WriteString("\n")
		b.WriteString(e.Diagnostics())
	}
	return b.String()
}

func (e *HarnessError) Kind() ErrorKind { return e.kind }
func (e *HarnessError) Unwrap() error   { return e.wrapped }

// Diagnostics returns the captured output of the server, or an empty string.
func (e *HarnessError) Diagnostics() string {
	if e.stdout == "" && e.stderr == "" {
		return ""
	}
	return fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", e.stdout, e.stderr)
}

// IsKind reports whether err is (or wraps) a HarnessError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.kind == kind
	}
	return false
}

// NewLaunchError creates an error for a server that could not be started.
func NewLaunchError(msg string, err error) error {
	return &HarnessError{kind: KindLaunch, message: msg, wrapped: err}
}

// NewStartupTimeoutError creates an error for a server that never became ready.
// stdout and stderr are the output captured from the server.
func NewStartupTimeoutError(msg, stdout, stderr string) error {
	return &HarnessError{kind: KindStartupTimeout, message: msg, stdout: stdout, stderr: stderr}
}

// WrapResetSeedError wraps a wipe or seed failure. stmt names the failing statement or request.
func WrapResetSeedError(stmt string, err error) error {
	return &HarnessError{kind: KindResetSeed, message: "reset failed at " + stmt, wrapped: err}
}

// NewAuthBootstrapError creates an error for a test identity that could not be established.
func NewAuthBootstrapError(username string, err error) error {
	return &HarnessError{kind: KindAuthBootstrap, message: fmt.Sprintf("could not obtain a token for %q", username), wrapped: err}
}

// WrapProbeFailure wraps a failed liveness request.
func WrapProbeFailure(url string, err error) error {
	return &HarnessError{kind: KindProbe, message: "probe " + url, wrapped: err}
}

// withOutput attaches captured server output to a harness error.
func withOutput(err error, stdout, stderr string) error {
	var he *HarnessError
	if !errors.As(err, &he) {
		return err
	}
	cp := *he
	cp.stdout = stdout
	cp.stderr = stderr
	return &cp
}
