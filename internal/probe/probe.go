// Package probe inspects the live system: CPU architecture, firmware boot
// mode, candidate disks and the current network setup. It never changes
// anything; what it finds only seeds prompt defaults.
package probe

import (
	"context"
	"fmt"
	"path/filepath"

	"chrinstaller/internal/runner"
	"chrinstaller/internal/util"

	"golang.org/x/sys/unix"
)

// Arch is the normalized machine architecture.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchAArch64 Arch = "aarch64"
)

// NormalizeArch maps uname machine names onto the two supported
// architectures. Anything else is returned unchanged.
func NormalizeArch(machine string) Arch {
	switch machine {
	case "x86_64", "amd64", "i686", "i386":
		return ArchX86_64
	case "aarch64", "arm64":
		return ArchAArch64
	}
	return Arch(machine)
}

// Supported reports whether a CHR image exists for a.
func (a Arch) Supported() bool {
	return a == ArchX86_64 || a == ArchAArch64
}

// BootMode is the firmware the live system was booted with.
type BootMode string

const (
	BootBIOS BootMode = "bios"
	BootUEFI BootMode = "uefi"
)

// Environment is the result of a probe.
type Environment struct {
	Machine string
	Arch    Arch
	Boot    BootMode
	Disks   []Disk
	// LegacyListing is set when disks came from /sys/block instead of lsblk.
	LegacyListing bool
	Network       Network
}

// DefaultDisk returns the device path of the first candidate disk, or "".
func (e *Environment) DefaultDisk() string {
	if len(e.Disks) == 0 {
		return ""
	}
	return e.Disks[0].Path
}

// Prober gathers an Environment. SysRoot and ResolvConf are overridable
// so tests can point them at a fixture tree.
type Prober struct {
	Runner     runner.Runner
	SysRoot    string
	ResolvConf string
}

// New returns a Prober for the running system.
func New(r runner.Runner) *Prober {
	return &Prober{Runner: r, SysRoot: "/", ResolvConf: "/etc/resolv.conf"}
}

// Uname returns the machine field of uname(2).
var Uname = func() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(u.Machine[:]), nil
}

// Probe inspects the system. Only a failing uname is an error; missing
// disks, routes or resolvers yield empty values.
func (p *Prober) Probe(ctx context.Context) (*Environment, error) {
	machine, err := Uname()
	if err != nil {
		return nil, err
	}
	env := &Environment{
		Machine: machine,
		Arch:    NormalizeArch(machine),
		Boot:    p.BootMode(),
	}
	env.Disks, env.LegacyListing = p.Disks(ctx)
	env.Network = p.Network(ctx)
	return env, nil
}

// BootMode reports UEFI when the firmware exposes /sys/firmware/efi.
func (p *Prober) BootMode() BootMode {
	if util.DirExists(filepath.Join(p.SysRoot, "sys", "firmware", "efi")) {
		return BootUEFI
	}
	return BootBIOS
}
