package image

import (
	"fmt"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/release"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// Partition is one used slot of a partition table. Index is 1-based, as
// in /dev/loopNpX.
type Partition struct {
	Index int
	Start int64
	Size  int64
}

// Layout describes the partition table of a raw image.
type Layout struct {
	Table      string
	Partitions []Partition
}

// Has reports whether partition idx is present and non-empty.
func (l *Layout) Has(idx int) bool {
	for _, p := range l.Partitions {
		if p.Index == idx {
			return true
		}
	}
	return false
}

// Inspect reads the partition table of the raw image at path.
var Inspect = func(path string) (*Layout, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("read partition table: %w", err)
	}

	l := &Layout{}
	switch t := table.(type) {
	case *gpt.Table:
		l.Table = "gpt"
		for i, p := range t.Partitions {
			if p != nil && p.Size > 0 && p.Type != gpt.Unused {
				l.Partitions = append(l.Partitions, Partition{Index: i + 1, Start: p.GetStart(), Size: p.GetSize()})
			}
		}
	case *mbr.Table:
		l.Table = "mbr"
		for i, p := range t.Partitions {
			if p != nil && p.Size > 0 && p.Type != mbr.Empty {
				l.Partitions = append(l.Partitions, Partition{Index: i + 1, Start: p.GetStart(), Size: p.GetSize()})
			}
		}
	default:
		return nil, fmt.Errorf("unsupported partition table %s", table.Type())
	}
	return l, nil
}

// CheckLayout verifies that the image exposes the writable partition the
// family expects. A mismatch is degradable: the image can still be
// written, only first-boot configuration is skipped.
func CheckLayout(path string, fam release.Family) error {
	const op = "image.CheckLayout"
	idx := fam.WritablePartition()
	l, err := Inspect(path)
	if err != nil {
		return errors.New(errors.KindDegradable, op, "staging.layout_mismatch", err, idx)
	}
	if !l.Has(idx) {
		return errors.New(errors.KindDegradable, op, "staging.layout_mismatch",
			fmt.Errorf("%s table has %d partitions, want partition %d", l.Table, len(l.Partitions), idx), idx)
	}
	return nil
}
