package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"chrinstaller/internal/log"
)

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	// Stdout receives standard output when set; otherwise it is returned.
	Stdout io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external tools. The installer talks to losetup, mount,
// lsblk, ip and the download/extract tools only through this interface.
type Runner interface {
	Run(ctx context.Context, c Command) ([]byte, error)
	LookPath(name string) (string, error)
}

// Exec runs commands on the host.
type Exec struct{}

func (Exec) Run(ctx context.Context, c Command) ([]byte, error) {
	log.Command(c.Name, c.Args...)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("command failed: %s: %w\n%s", c, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
