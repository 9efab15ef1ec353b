package log

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	buf := new(bytes.Buffer)
	originalOutput := color.Output
	originalNoColor := color.NoColor
	color.Output = buf
	color.NoColor = true
	t.Cleanup(func() {
		color.Output = originalOutput
		color.NoColor = originalNoColor
	})
	fn()
	return buf.String()
}

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"title", func() { Title("CHR installer %s", "dev") }, "==> CHR installer dev\n"},
		{"step", func() { Step("Phase %d", 1) }, "\n==> Phase 1\n"},
		{"info", func() { Info("found %s", "/dev/sda") }, "  -> found /dev/sda\n"},
		{"warn", func() { Warn("no route") }, "  -> WARNING: no route\n"},
		{"error", func() { Error("failed") }, "ERROR: failed\n"},
		{"detail", func() { Detail("cause") }, "       cause\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capture(t, tt.fn))
		})
	}
}

func TestCommand_OnlyWhenVerbose(t *testing.T) {
	t.Cleanup(func() { Verbose = false })

	Verbose = false
	assert.Empty(t, capture(t, func() { Command("losetup", "-d", "/dev/loop0") }))

	Verbose = true
	assert.Equal(t, "  -> Running: losetup -d /dev/loop0\n",
		capture(t, func() { Command("losetup", "-d", "/dev/loop0") }))
}
