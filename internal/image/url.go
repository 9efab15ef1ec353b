package image

import (
	"fmt"
	"strings"

	"chrinstaller/internal/probe"
	"chrinstaller/internal/release"
)

// Spec identifies one CHR image build.
type Spec struct {
	Version string
	Family  release.Family
	Arch    probe.Arch
	Boot    probe.BootMode
	// ReleaseBase is the mirror root, e.g. https://download.mikrotik.com/routeros
	ReleaseBase string
}

// URL returns the download location of the image described by s.
// aarch64 builds carry an -arm64 suffix; v7 x86 machines booted without
// UEFI need the -legacy-bios variant.
func URL(s Spec) string {
	dir := s.Version
	name := "chr-" + s.Version
	if s.Arch == probe.ArchAArch64 {
		dir += "-arm64"
		name += "-arm64"
	}
	if s.Arch == probe.ArchX86_64 && s.Family == release.Family7 && s.Boot == probe.BootBIOS {
		name += "-legacy-bios"
	}
	return fmt.Sprintf("%s/%s/%s.img.zip", strings.TrimRight(s.ReleaseBase, "/"), dir, name)
}

// FileName is the archive name at the end of URL(s).
func FileName(s Spec) string {
	u := URL(s)
	return u[strings.LastIndex(u, "/")+1:]
}
