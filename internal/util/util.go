package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize converts a size string like "10G", "931.5G", "512M" or "2048"
// into bytes. Single letter suffixes are binary units, the way lsblk
// prints them.
var ParseSize = func(sizeStr string) (uint64, error) {
	s := strings.TrimSpace(sizeStr)
	if s == "" {
		return 0, fmt.Errorf("invalid size format '%s'", sizeStr)
	}
	last := strings.ToUpper(s[len(s)-1:])
	if strings.Contains("KMGTPE", last) {
		s += "iB"
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format '%s': %w", sizeStr, err)
	}
	return n, nil
}

// DirExists checks if path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9].
var RandomAlphanumeric = func(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String(), nil
}
