package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chrinstaller/internal/autorun"
	ierrors "chrinstaller/internal/errors"
	"chrinstaller/internal/release"
	"chrinstaller/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings() autorun.Settings {
	return autorun.Settings{
		Password: "Ab12Cd34",
		Address:  "192.168.1.50/24",
		Gateway:  "192.168.1.1",
		DNS:      []string{"1.1.1.1"},
	}
}

type loopSystem struct {
	attachErr error
	mountErr  error
	umountErr error
	// rwIsFile leaves a regular file named rw on the mounted partition.
	rwIsFile bool
	// script holds rw/autorun.scr as seen at unmount time.
	script string
}

// fake simulates losetup, mount and umount. Unmounting empties the mount
// point the way a real unmount would.
func (s *loopSystem) fake() *runner.Fake {
	return &runner.Fake{Handler: func(c runner.Command) ([]byte, error) {
		switch c.Name {
		case "losetup":
			if c.Args[0] == "-d" {
				return nil, nil
			}
			if s.attachErr != nil {
				return nil, s.attachErr
			}
			return []byte("/dev/loop7\n"), nil
		case "mount":
			if s.mountErr != nil {
				return nil, s.mountErr
			}
			if s.rwIsFile {
				return nil, os.WriteFile(filepath.Join(c.Args[1], "rw"), nil, 0644)
			}
			return nil, nil
		case "umount":
			if s.umountErr != nil {
				return nil, s.umountErr
			}
			dir := c.Args[0]
			if b, err := os.ReadFile(filepath.Join(dir, "rw", "autorun.scr")); err == nil {
				s.script = string(b)
			}
			return nil, os.RemoveAll(filepath.Join(dir, "rw"))
		}
		return nil, errors.New("unexpected " + c.String())
	}}
}

func newTestEditor(t *testing.T, f *runner.Fake) *Editor {
	e := NewEditor(f)
	e.MountRoot = t.TempDir()
	e.CheckLayout = func(string, release.Family) error { return nil }
	e.WaitDevice = func(context.Context, string, time.Duration) error { return nil }
	return e
}

func TestStage_WritesScriptAndReleases(t *testing.T) {
	tests := []struct {
		family   release.Family
		wantPart string
	}{
		{release.Family7, "/dev/loop7p2"},
		{release.Family6, "/dev/loop7p1"},
	}
	for _, tt := range tests {
		t.Run(tt.wantPart, func(t *testing.T) {
			sys := &loopSystem{}
			f := sys.fake()
			e := newTestEditor(t, f)

			err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: tt.family, Settings: settings()})
			require.NoError(t, err)

			calls := f.Calls()
			require.Len(t, calls, 4)
			assert.Equal(t, "losetup -fP --show /work/chr.img", calls[0])
			assert.Contains(t, calls[1], "mount "+tt.wantPart+" ")
			assert.Contains(t, calls[2], "umount ")
			assert.Equal(t, "losetup -d /dev/loop7", calls[3])
			assert.Contains(t, sys.script, "/ip route add gateway=192.168.1.1\n")

			entries, err := os.ReadDir(e.MountRoot)
			require.NoError(t, err)
			assert.Empty(t, entries, "mount point must be removed")
		})
	}
}

func TestStage_MountFailureStillDetaches(t *testing.T) {
	sys := &loopSystem{mountErr: errors.New("wrong fs type")}
	f := sys.fake()
	e := newTestEditor(t, f)

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: settings()})
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))

	assert.Equal(t, []string{"losetup -d /dev/loop7"}, f.CallsTo("losetup -d"))
	assert.Empty(t, f.CallsTo("umount"), "nothing was mounted")
	entries, _ := os.ReadDir(e.MountRoot)
	assert.Empty(t, entries)
}

func TestStage_WriteFailureStillReleases(t *testing.T) {
	sys := &loopSystem{rwIsFile: true}
	f := sys.fake()
	e := newTestEditor(t, f)

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: settings()})
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))
	var se *ierrors.Error
	require.True(t, ierrors.As(err, &se))
	assert.Equal(t, "staging.write_failed", se.Key)

	assert.Len(t, f.CallsTo("umount"), 1)
	assert.Equal(t, []string{"losetup -d /dev/loop7"}, f.CallsTo("losetup -d"))
	assert.Empty(t, sys.script)
	entries, err := os.ReadDir(e.MountRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "mount point must be removed")
}

func TestStage_AttachFailureNeverMounts(t *testing.T) {
	sys := &loopSystem{attachErr: errors.New("no free loop devices")}
	f := sys.fake()
	e := newTestEditor(t, f)

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: settings()})
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))
	assert.Equal(t, []string{"losetup -fP --show /work/chr.img"}, f.Calls())
}

func TestStage_WaitFailureDetaches(t *testing.T) {
	sys := &loopSystem{}
	f := sys.fake()
	e := newTestEditor(t, f)
	e.WaitDevice = func(context.Context, string, time.Duration) error { return errors.New("timed out") }

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: settings()})
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))
	assert.Empty(t, f.CallsTo("mount"))
	assert.Len(t, f.CallsTo("losetup -d"), 1)
}

func TestStage_InvalidSettingsTouchNothing(t *testing.T) {
	f := (&loopSystem{}).fake()
	e := newTestEditor(t, f)
	s := settings()
	s.Gateway = "not-an-ip"

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: s})
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))
	assert.Empty(t, f.Calls())
}

func TestStage_LayoutMismatchTouchesNothing(t *testing.T) {
	f := (&loopSystem{}).fake()
	e := newTestEditor(t, f)
	e.CheckLayout = func(string, release.Family) error {
		return ierrors.New(ierrors.KindDegradable, "image.CheckLayout", "staging.layout_mismatch", errors.New("1 partition"), 2)
	}

	err := e.Stage(context.Background(), Request{Image: "/work/chr.img", Family: release.Family7, Settings: settings()})
	assert.True(t, ierrors.Is(err, ierrors.KindDegradable))
	assert.Empty(t, f.Calls())
}

func TestRelease_UnmountFailureKeepsMountPointButDetaches(t *testing.T) {
	sys := &loopSystem{umountErr: errors.New("target is busy")}
	f := sys.fake()
	root := t.TempDir()

	att, err := Attach(context.Background(), f, "/work/chr.img")
	require.NoError(t, err)
	require.NoError(t, att.Mount(context.Background(), att.PartitionPath(2), root))

	err = att.Release(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target is busy")
	assert.DirExists(t, att.MountPoint)
	assert.Len(t, f.CallsTo("losetup -d"), 1)
}
