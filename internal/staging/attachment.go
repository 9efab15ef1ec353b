package staging

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"chrinstaller/internal/runner"
)

// Attachment owns a loop device bound to an image file and, optionally,
// a mount of one of its partitions. Release undoes both.
type Attachment struct {
	runner     runner.Runner
	Device     string
	MountPoint string
	mounted    bool
}

// Attach binds image to the first free loop device with partition scanning.
func Attach(ctx context.Context, r runner.Runner, image string) (*Attachment, error) {
	out, err := r.Run(ctx, runner.Command{Name: "losetup", Args: []string{"-fP", "--show", image}})
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", image, err)
	}
	dev := strings.TrimSpace(string(out))
	if !strings.HasPrefix(dev, "/dev/loop") {
		return nil, fmt.Errorf("attach %s: unexpected losetup output %q", image, dev)
	}
	return &Attachment{runner: r, Device: dev}, nil
}

// PartitionPath returns the device node of partition idx.
func (a *Attachment) PartitionPath(idx int) string {
	return fmt.Sprintf("%sp%d", a.Device, idx)
}

// Mount mounts partition on a fresh directory under root.
func (a *Attachment) Mount(ctx context.Context, partition, root string) error {
	dir, err := os.MkdirTemp(root, "chrinstaller-mnt-")
	if err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}
	if _, err := a.runner.Run(ctx, runner.Command{Name: "mount", Args: []string{partition, dir}}); err != nil {
		_ = os.Remove(dir)
		return fmt.Errorf("mount %s: %w", partition, err)
	}
	a.MountPoint = dir
	a.mounted = true
	return nil
}

// Release unmounts, removes the mount point and detaches the loop device.
// It keeps going after a failed step; the loop device is detached even
// when unmounting fails. The mount point is only removed once unmounted.
func (a *Attachment) Release(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if a.mounted {
		if _, err := a.runner.Run(ctx, runner.Command{Name: "umount", Args: []string{a.MountPoint}}); err != nil {
			errs = append(errs, fmt.Errorf("unmount %s: %w", a.MountPoint, err))
		} else {
			a.mounted = false
			if err := os.Remove(a.MountPoint); err != nil {
				errs = append(errs, fmt.Errorf("remove mount point: %w", err))
			}
		}
	}
	if a.Device != "" {
		if _, err := a.runner.Run(ctx, runner.Command{Name: "losetup", Args: []string{"-d", a.Device}}); err != nil {
			errs = append(errs, fmt.Errorf("detach %s: %w", a.Device, err))
		} else {
			a.Device = ""
		}
	}
	return stderrors.Join(errs...)
}
