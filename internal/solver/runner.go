package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// ErrSolveTimeout marks a run that exceeded the wall-clock budget. The
// child process is killed before the error is returned.
var ErrSolveTimeout = errors.New("solve timed out")

// Runner executes one plate-solve attempt against an input image, writing
// solver output under outputDir. It returns the child's stderr so a failed
// solve can surface the solver's own diagnostics verbatim.
type Runner interface {
	Run(ctx context.Context, inputPath, outputDir string) (stderr string, err error)
}

// FieldRunner invokes the astrometry.net solve-field binary. A non-zero
// exit is not an error by itself: the output artifact, not the exit code,
// decides success.
type FieldRunner struct {
	binPath  string
	cpuLimit time.Duration
}

func NewFieldRunner(binPath string, cpuLimit time.Duration) *FieldRunner {
	return &FieldRunner{binPath: binPath, cpuLimit: cpuLimit}
}

// BinPath returns the configured solver binary path.
func (r *FieldRunner) BinPath() string {
	return r.binPath
}

func (r *FieldRunner) Run(ctx context.Context, inputPath, outputDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cpuLimit)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binPath,
		inputPath,
		"--out", filepath.Join(outputDir, "output"),
		"--overwrite",
		"--no-plots",
		"--no-verify",
		"--cpulimit", strconv.Itoa(int(r.cpuLimit.Seconds())),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Force a SIGKILL if the child ignores the interrupt after cancellation.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return stderr.String(), ErrSolveTimeout
		}
		return stderr.String(), fmt.Errorf("solve cancelled: %w", ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Normal exit with non-zero code. The caller checks for the
			// output artifact; stderr is the diagnostic of record.
			return stderr.String(), nil
		}
		// Spawn failure: binary missing, permissions, etc.
		return stderr.String(), fmt.Errorf("running solver: %w", err)
	}

	return stderr.String(), nil
}

// Compile-time check that FieldRunner implements Runner.
var _ Runner = (*FieldRunner)(nil)
