// Package disk performs the one destructive step: copying the raw image
// over the target device after an explicit confirmation, then rebooting.
package disk

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/prompt"
	"chrinstaller/internal/waiter"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// BlockSize is the copy buffer size.
const BlockSize = 4 << 20

// Device is an open target device.
type Device interface {
	io.Writer
	Sync() error
	Close() error
}

// Confirmer asks a yes/no question.
type Confirmer interface {
	Confirm(label string, def bool) (bool, error)
}

// OpenDevice opens the target for synchronous writes.
var OpenDevice = func(path string) (Device, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_SYNC, 0)
}

// Reboot restarts the machine through sysrq, falling back to reboot(2).
// It only returns if both fail.
var Reboot = func() error {
	unix.Sync()
	_ = os.WriteFile("/proc/sys/kernel/sysrq", []byte("1"), 0644)
	if err := os.WriteFile("/proc/sysrq-trigger", []byte("b"), 0200); err == nil {
		// sysrq b does not return; still running means it was ignored.
		time.Sleep(3 * time.Second)
	}
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

// Writer gates and performs the device write.
type Writer struct {
	Confirmer Confirmer
	// ConfirmDefault is the answer taken for an empty response.
	ConfirmDefault bool
}

// ConfirmAndWrite shows the data-loss warning, asks for confirmation and
// on yes copies image onto device and reboots. A declined or cancelled
// gate returns a KindAborted error and writes nothing.
func (w *Writer) ConfirmAndWrite(ctx context.Context, device, image string) error {
	const op = "disk.ConfirmAndWrite"

	log.Info("%s", messages.T("write.target", device))
	log.Warn("%s", messages.T("write.warning", device))
	ok, err := w.Confirmer.Confirm(messages.T("write.confirm"), w.ConfirmDefault)
	if stderrors.Is(err, prompt.ErrCancelled) {
		return errors.New(errors.KindAborted, op, "write.aborted", err)
	}
	if err != nil {
		return errors.E(op, err)
	}
	if !ok {
		return errors.New(errors.KindAborted, op, "write.aborted", fmt.Errorf("operator declined"))
	}

	var written int64
	err = waiter.Spin(messages.T("write.writing", image, device), func() error {
		n, err := Copy(ctx, device, image)
		written = n
		return err
	})
	if err != nil {
		return errors.New(errors.KindTransient, op, "write.failed", err, device)
	}
	log.Info("%s", messages.T("write.done", humanize.IBytes(uint64(written)), device))

	log.Title("%s", messages.T("write.rebooting"))
	if err := Reboot(); err != nil {
		return errors.New(errors.KindTransient, op, "write.reboot_failed", err)
	}
	return nil
}

// Copy writes the whole image to device in BlockSize chunks and syncs it.
// The device is opened exactly once.
func Copy(ctx context.Context, device, image string) (int64, error) {
	src, err := os.Open(image)
	if err != nil {
		return 0, fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	dst, err := OpenDevice(device)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", device, err)
	}

	buf := make([]byte, BlockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			dst.Close()
			return total, err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				dst.Close()
				return total, fmt.Errorf("write %s at offset %d: %w", device, total, werr)
			}
			total += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			dst.Close()
			return total, fmt.Errorf("read image: %w", rerr)
		}
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return total, fmt.Errorf("sync %s: %w", device, err)
	}
	return total, dst.Close()
}
