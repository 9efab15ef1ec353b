package waiter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

var (
	// stat is a variable to allow mocking of os.Stat in tests
	stat = os.Stat
	// pollInterval is how often ForDevice checks for the node
	pollInterval = 100 * time.Millisecond
)

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

// Spin runs fn behind a spinner showing msg and marks the line with a
// check or a cross once fn returns.
func Spin(msg string, fn func() error) error {
	s := newSpinner(msg)
	s.Start()
	err := fn()
	if err != nil {
		s.FinalMSG = color.RedString("✖ %s\n", msg)
	} else {
		s.FinalMSG = color.GreenString("✔ %s\n", strings.TrimSpace(msg))
	}
	s.Stop()
	return err
}

// ForDevice polls until the block device node at path appears, the
// timeout is reached or ctx is cancelled. Partition nodes of a fresh loop
// device show up asynchronously through udev.
func ForDevice(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := stat(path); err == nil {
		return nil
	}
	s := newSpinner(fmt.Sprintf("Waiting for %s to appear...", path))
	s.Start()
	defer s.Stop()

	timeoutChan := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.FinalMSG = color.RedString("✖ Cancelled waiting for %s\n", path)
			return ctx.Err()
		case <-timeoutChan:
			s.FinalMSG = color.RedString("✖ Timed out waiting for %s\n", path)
			return fmt.Errorf("timed out waiting for device %s", path)
		case <-ticker.C:
			if _, err := stat(path); err == nil {
				s.FinalMSG = color.GreenString("✔ %s is available.\n", path)
				return nil
			}
		}
	}
}
