//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

// EnsureSingleInstance fails with ErrAlreadyRunning when another process runs this executable.
func EnsureSingleInstance() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return ensureSingleInstance(ps.Processes, os.Getpid(), filepath.Base(executable))
}

func ensureSingleInstance(processes func() ([]ps.Process, error), self int, executable string) error {
	processList, err := processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if !strings.EqualFold(process.Executable(), executable) {
			continue
		}

		return fmt.Errorf("%s (pid %d): %w", executable, process.Pid(), ErrAlreadyRunning)
	}

	return nil
}
