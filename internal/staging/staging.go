// Package staging writes the first-boot script into the raw image before
// it goes to disk. Every failure here is degradable: the caller warns and
// carries on with the write.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chrinstaller/internal/autorun"
	"chrinstaller/internal/config"
	"chrinstaller/internal/errors"
	"chrinstaller/internal/image"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/release"
	"chrinstaller/internal/runner"
	"chrinstaller/internal/waiter"
)

// Request describes one staging run.
type Request struct {
	Image    string
	Family   release.Family
	Settings autorun.Settings
}

// Editor mounts the writable partition of an image and drops the
// autorun script into it.
type Editor struct {
	Runner runner.Runner
	// MountRoot holds temporary mount points, os.TempDir() when empty.
	MountRoot   string
	WaitTimeout time.Duration

	CheckLayout func(path string, fam release.Family) error
	WaitDevice  func(ctx context.Context, path string, timeout time.Duration) error
}

// NewEditor returns an Editor wired to the real layout check and device wait.
func NewEditor(r runner.Runner) *Editor {
	return &Editor{
		Runner:      r,
		WaitTimeout: 5 * time.Second,
		CheckLayout: image.CheckLayout,
		WaitDevice:  waiter.ForDevice,
	}
}

func degraded(op, key string, err error, args ...any) error {
	return errors.New(errors.KindDegradable, op, key, err, args...)
}

// Stage renders the script and writes it to rw/autorun.scr on the
// family's writable partition. The loop device and mount are released on
// every return path.
func (e *Editor) Stage(ctx context.Context, req Request) error {
	const op = "staging.Stage"

	script, err := autorun.Render(req.Settings)
	if err != nil {
		return degraded(op, "staging.render_failed", err)
	}

	if e.CheckLayout != nil {
		if err := e.CheckLayout(req.Image, req.Family); err != nil {
			return errors.E(op, err)
		}
	}

	att, err := Attach(ctx, e.Runner, req.Image)
	if err != nil {
		return degraded(op, "staging.loop_failed", err)
	}
	defer func() {
		if rerr := att.Release(ctx); rerr != nil {
			log.Warn("%s", messages.T("staging.release_failed", rerr))
		}
	}()

	part := att.PartitionPath(req.Family.WritablePartition())
	if e.WaitDevice != nil {
		if err := e.WaitDevice(ctx, part, e.WaitTimeout); err != nil {
			return degraded(op, "staging.mount_failed", err, part)
		}
	}
	root := e.MountRoot
	if root == "" {
		root = os.TempDir()
	}
	if err := att.Mount(ctx, part, root); err != nil {
		return degraded(op, "staging.mount_failed", err, part)
	}

	target := filepath.Join(att.MountPoint, config.AutorunPath)
	if err := writeScript(target, script); err != nil {
		return degraded(op, "staging.write_failed", err)
	}
	log.Info("%s", messages.T("staging.done", config.AutorunPath))
	return nil
}

func writeScript(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
