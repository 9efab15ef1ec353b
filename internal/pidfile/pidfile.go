// Package pidfile keeps two installers from running on the same machine at
// once. Loop devices and mount points are not safe to share between runs.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"chrinstaller/internal/config"
	"chrinstaller/internal/errors"
)

// Path returns the lock file under workRoot.
func Path(workRoot string) string {
	return filepath.Join(workRoot, config.AppName+".pid")
}

// processAlive is replaced in tests.
var processAlive = func(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Sending signal 0 to a process on Unix-like systems checks for its existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// Read returns the pid stored at path.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in pidfile: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether the pid recorded at path belongs to a live process.
func IsRunning(path string) (bool, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return pid != os.Getpid() && processAlive(pid), nil
}

// Acquire records the current pid at path. A file left by a dead process
// or holding garbage is taken over. The returned func removes the file.
func Acquire(path string) (func(), error) {
	const op = "pidfile.Acquire"
	running, err := IsRunning(path)
	if err == nil && running {
		pid, _ := Read(path)
		return nil, errors.New(errors.KindConfig, op, "app.already_running", fmt.Errorf("pid %d holds %s", pid, path), pid)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.E(op, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return nil, errors.E(op, fmt.Errorf("write pidfile: %w", err))
	}
	return func() { _ = os.Remove(path) }, nil
}
