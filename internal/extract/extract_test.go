package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ierrors "chrinstaller/internal/errors"
	"chrinstaller/internal/runner"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

var payload = bytes.Repeat([]byte("RouterOS"), 4096)

func writeZip(t *testing.T, path string, members map[string][]byte, order []string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(members[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestNative(t *testing.T) {
	dir := t.TempDir()

	zipPath := filepath.Join(dir, "chr-7.19.4.img.zip")
	writeZip(t, zipPath, map[string][]byte{
		"README.txt":     []byte("notes"),
		"chr-7.19.4.img": payload,
	}, []string{"README.txt", "chr-7.19.4.img"})

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	gzPath := filepath.Join(dir, "chr.img.gz")
	require.NoError(t, os.WriteFile(gzPath, gz.Bytes(), 0644))

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	require.NoError(t, err)
	_, err = xw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	// The name lies on purpose: detection goes by content.
	xzPath := filepath.Join(dir, "chr.img.zip.download")
	require.NoError(t, os.WriteFile(xzPath, xzBuf.Bytes(), 0644))

	for _, archive := range []string{zipPath, gzPath, xzPath} {
		t.Run(filepath.Base(archive), func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "chr.img")
			require.NoError(t, Native{}.Extract(context.Background(), archive, dest))
			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestNative_Rejects(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "chr.img.zip")
	require.NoError(t, os.WriteFile(plain, []byte("<html>not found</html>"), 0644))
	assert.Error(t, Native{}.Extract(context.Background(), plain, filepath.Join(dir, "out")))

	empty := filepath.Join(dir, "empty.zip")
	writeZip(t, empty, nil, nil)
	assert.Error(t, Native{}.Extract(context.Background(), empty, filepath.Join(dir, "out")))

	assert.Error(t, Native{}.Extract(context.Background(), filepath.Join(dir, "missing.zip"), filepath.Join(dir, "out")))
}

func TestNative_Cancelled(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "chr.img.zip")
	writeZip(t, archive, map[string][]byte{"chr.img": payload}, []string{"chr.img"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Native{}.Extract(ctx, archive, filepath.Join(dir, "chr.img"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain_ToolExtractors(t *testing.T) {
	tests := []struct {
		name     string
		missing  map[string]bool
		wantCall string
	}{
		{"unzip first", nil, "unzip -p /tmp/chr.img.zip"},
		{"gunzip fallback", map[string]bool{"unzip": true}, "gunzip -c /tmp/chr.img.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &runner.Fake{
				Missing: tt.missing,
				Handler: func(runner.Command) ([]byte, error) { return []byte("raw image"), nil },
			}
			chain, err := NewChain([]string{"unzip", "gunzip"}, fake)
			require.NoError(t, err)

			dest := filepath.Join(t.TempDir(), "chr.img")
			require.NoError(t, chain.Extract(context.Background(), "/tmp/chr.img.zip", dest))

			assert.Equal(t, []string{tt.wantCall}, fake.Calls())
			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, "raw image", string(got))
		})
	}
}

func TestChain_Errors(t *testing.T) {
	fake := &runner.Fake{Missing: map[string]bool{"unzip": true, "gunzip": true}}
	chain, err := NewChain([]string{"unzip", "gunzip"}, fake)
	require.NoError(t, err)

	err = chain.Extract(context.Background(), "/tmp/chr.img.zip", filepath.Join(t.TempDir(), "chr.img"))
	assert.True(t, ierrors.Is(err, ierrors.KindCapability))

	fake = &runner.Fake{Handler: func(runner.Command) ([]byte, error) { return nil, errors.New("bad CRC") }}
	chain, err = NewChain([]string{"unzip"}, fake)
	require.NoError(t, err)
	err = chain.Extract(context.Background(), "/tmp/chr.img.zip", filepath.Join(t.TempDir(), "chr.img"))
	assert.True(t, ierrors.Is(err, ierrors.KindTransient))

	_, err = NewChain([]string{"7z"}, fake)
	assert.True(t, ierrors.Is(err, ierrors.KindConfig))
}
