package harness

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// BuildServerBinary compiles pkg (e.g ./cmd/wiki-server) from moduleRoot into outDir and returns the binary path.
func BuildServerBinary(ctx context.Context, moduleRoot, pkg, outDir string) (string, error) {
	bin := filepath.Join(outDir, filepath.Base(pkg))
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	cmd := exec.CommandContext(ctx, "go", "build", "-o", bin, pkg)
	cmd.Dir = moduleRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", NewLaunchError(fmt.Sprintf("go build %s failed", pkg), fmt.Errorf("%w\n%s", err, out))
	}
	return bin, nil
}
