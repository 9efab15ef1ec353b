package probe

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"chrinstaller/internal/runner"
	"chrinstaller/internal/util"

	"github.com/dustin/go-humanize"
)

// Disk is a whole block device that can receive the image.
type Disk struct {
	Name  string
	Path  string
	Size  uint64
	Model string
}

// HumanSize renders Size in binary units.
func (d Disk) HumanSize() string {
	if d.Size == 0 {
		return "-"
	}
	return humanize.IBytes(d.Size)
}

// excludedPrefixes names virtual and removable devices that never take the image.
var excludedPrefixes = []string{"loop", "ram", "sr", "zram", "dm-", "md", "nbd", "fd"}

func excluded(name string) bool {
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Disks lists candidate disks in enumeration order. The second return
// value is true when lsblk was unusable and /sys/block was scanned.
func (p *Prober) Disks(ctx context.Context) ([]Disk, bool) {
	if _, err := p.Runner.LookPath("lsblk"); err == nil {
		out, err := p.Runner.Run(ctx, runner.Command{Name: "lsblk", Args: []string{"-dn", "-o", "NAME,TYPE,SIZE,MODEL"}})
		if err == nil {
			return parseLsblk(string(out)), false
		}
	}
	return p.sysBlockDisks(), true
}

func parseLsblk(out string) []Disk {
	var disks []Disk
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, typ := fields[0], fields[1]
		if typ != "disk" || excluded(name) {
			continue
		}
		d := Disk{Name: name, Path: "/dev/" + name}
		if len(fields) > 2 {
			if n, err := util.ParseSize(fields[2]); err == nil {
				d.Size = n
			}
		}
		if len(fields) > 3 {
			d.Model = strings.Join(fields[3:], " ")
		}
		disks = append(disks, d)
	}
	return disks
}

func (p *Prober) sysBlockDisks() []Disk {
	root := filepath.Join(p.SysRoot, "sys", "block")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var disks []Disk
	for _, e := range entries {
		name := e.Name()
		if excluded(name) {
			continue
		}
		// Only devices backed by hardware have a device link.
		if _, err := os.Stat(filepath.Join(root, name, "device")); err != nil {
			continue
		}
		d := Disk{Name: name, Path: "/dev/" + name}
		if data, err := os.ReadFile(filepath.Join(root, name, "size")); err == nil {
			if sectors, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); err == nil {
				d.Size = sectors * 512
			}
		}
		if d.Size == 0 {
			continue
		}
		if data, err := os.ReadFile(filepath.Join(root, name, "device", "model")); err == nil {
			d.Model = strings.TrimSpace(string(data))
		}
		disks = append(disks, d)
	}
	return disks
}
