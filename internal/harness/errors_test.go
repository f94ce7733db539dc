package harness

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHarnessErrors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name    string
		err     error
		kind    ErrorKind
		wantMsg string
	}{
		{"launch", NewLaunchError("cannot bind 127.0.0.1:80", cause), KindLaunch, "launch: cannot bind 127.0.0.1:80: connection refused"},
		{"startup", NewStartupTimeoutError("not ready", "out", "err"), KindStartupTimeout, "startup_timeout: not ready\nSTDOUT:\nout\nSTDERR:\nerr"},
		{"reset", WrapResetSeedError(`DELETE FROM "users"`, cause), KindResetSeed, `reset_seed: reset failed at DELETE FROM "users": connection refused`},
		{"auth", NewAuthBootstrapError("admin", cause), KindAuthBootstrap, `auth_bootstrap: could not obtain a token for "admin": connection refused`},
		{"probe", WrapProbeFailure("http://x/health", cause), KindProbe, "probe: probe http://x/health: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, IsKind(tt.err, tt.kind))
			assert.True(t, IsKind(fmt.Errorf("setup: %w", tt.err), tt.kind))
		})
	}

	assert.ErrorIs(t, NewLaunchError("x", cause), cause)
	assert.False(t, IsKind(cause, KindLaunch))
	assert.False(t, IsKind(nil, KindLaunch))
}

func TestWithOutput(t *testing.T) {
	err := withOutput(NewLaunchError("database setup failed", nil), "migrating\n", "")

	var he *HarnessError
	assert.True(t, errors.As(err, &he))
	assert.Equal(t, KindLaunch, he.Kind())
	assert.Contains(t, he.Diagnostics(), "migrating")

	plain := errors.New("plain")
	assert.Equal(t, plain, withOutput(plain, "a", "b"))
}
