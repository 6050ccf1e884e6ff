//go:build integration

package testutil

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	cliImage       = "alpine:3.20"
	cliPath        = "/syncpipe"
	cliExitTimeout = 2 * time.Minute
)

// BuildBinary cross-compiles the package in the working directory for linux.
func BuildBinary(t *testing.T) string {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "syncpipe")
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOOS=linux", "GOARCH="+runtime.GOARCH)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build binary: %v\n%s", err, out)
	}

	return bin
}

// CLIRun describes one invocation of a binary inside a throwaway container.
type CLIRun struct {
	Network string
	Binary  string
	Env     map[string]string
	Args    []string
}

// RunCLI waits for the container to exit and returns its exit code with stdout and stderr combined.
func RunCLI(t *testing.T, ctx context.Context, run CLIRun) (int, string) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      cliImage,
			Entrypoint: []string{cliPath},
			Cmd:        run.Args,
			Env:        run.Env,
			Networks:   []string{run.Network},
			Files: []testcontainers.ContainerFile{{
				HostFilePath:      run.Binary,
				ContainerFilePath: cliPath,
				FileMode:          0o755,
			}},
			WaitingFor: wait.ForExit().WithExitTimeout(cliExitTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start cli container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	logs, err := container.Logs(ctx)
	if err != nil {
		t.Fatalf("read cli logs: %v", err)
	}
	defer logs.Close()

	out, err := io.ReadAll(logs)
	if err != nil {
		t.Fatalf("read cli logs: %v", err)
	}

	state, err := container.State(ctx)
	if err != nil {
		t.Fatalf("read cli state: %v", err)
	}

	return state.ExitCode, string(out)
}
