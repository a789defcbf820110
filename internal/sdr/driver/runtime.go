package driver

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrRuntimeNotFound is returned when a required SDR runtime binary is not
// installed.
var ErrRuntimeNotFound = errors.New("runtime not found")

// FindRuntime resolves the path of an SDR runtime binary.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: `%s` not in PATH", ErrRuntimeNotFound, runtime)
		}
		return "", fmt.Errorf("locating `%s`: %w", runtime, err)
	}

	return binPath, nil
}
