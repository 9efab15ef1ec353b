// Package extract turns the downloaded archive into the raw disk image.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/runner"
	"chrinstaller/internal/waiter"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

// Extractor decompresses a single-image archive to dest.
type Extractor interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, archive, dest string) error
}

func toFile(dest string, fn func(w io.Writer) error) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := fn(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Unzip streams the archive's member through `unzip -p`.
type Unzip struct{ Runner runner.Runner }

func (u Unzip) Name() string { return "unzip" }

func (u Unzip) Available() bool {
	_, err := u.Runner.LookPath("unzip")
	return err == nil
}

func (u Unzip) Extract(ctx context.Context, archive, dest string) error {
	return toFile(dest, func(w io.Writer) error {
		_, err := u.Runner.Run(ctx, runner.Command{Name: "unzip", Args: []string{"-p", archive}, Stdout: w})
		return err
	})
}

// Gunzip uses `gunzip -c`, which also reads single-member zip archives.
type Gunzip struct{ Runner runner.Runner }

func (g Gunzip) Name() string { return "gunzip" }

func (g Gunzip) Available() bool {
	_, err := g.Runner.LookPath("gunzip")
	return err == nil
}

func (g Gunzip) Extract(ctx context.Context, archive, dest string) error {
	return toFile(dest, func(w io.Writer) error {
		_, err := g.Runner.Run(ctx, runner.Command{Name: "gunzip", Args: []string{"-c", archive}, Stdout: w})
		return err
	})
}

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Native decompresses zip, gzip and xz in process. The format is taken
// from the archive's magic bytes, not its name.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) Available() bool { return true }

func (Native) Extract(ctx context.Context, archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return fmt.Errorf("read header of %s: %w", archive, err)
	}

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return extractZip(ctx, archive, dest)
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		return copyTo(ctx, dest, zr)
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("open xz stream: %w", err)
		}
		return copyTo(ctx, dest, xr)
	}
	return fmt.Errorf("unrecognized archive format for %s", filepath.Base(archive))
}

// extractZip writes the first .img member, or the only member, to dest.
func extractZip(ctx context.Context, archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(f.Name, ".img") {
			member = f
			break
		}
		if member == nil {
			member = f
		}
	}
	if member == nil {
		return fmt.Errorf("zip archive %s is empty", filepath.Base(archive))
	}
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open %s in zip: %w", member.Name, err)
	}
	defer rc.Close()
	return copyTo(ctx, dest, rc)
}

func copyTo(ctx context.Context, dest string, r io.Reader) error {
	return toFile(dest, func(w io.Writer) error {
		_, err := io.Copy(w, ctxReader{ctx: ctx, r: r})
		return err
	})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// NewExtractor is a factory function that returns the extractor registered under name.
func NewExtractor(name string, r runner.Runner) (Extractor, error) {
	switch name {
	case "unzip":
		return Unzip{Runner: r}, nil
	case "gunzip":
		return Gunzip{Runner: r}, nil
	case "native":
		return Native{}, nil
	default:
		return nil, errors.New(errors.KindConfig, "extract.NewExtractor", "extract.unknown_provider",
			fmt.Errorf("no extractor available named %q", name), name)
	}
}

// Chain uses the first available extractor in order.
type Chain struct {
	Extractors []Extractor
}

// NewChain builds a chain from extractor names.
func NewChain(names []string, r runner.Runner) (*Chain, error) {
	c := &Chain{}
	for _, n := range names {
		e, err := NewExtractor(n, r)
		if err != nil {
			return nil, err
		}
		c.Extractors = append(c.Extractors, e)
	}
	return c, nil
}

// Extract decompresses archive to dest with the first available extractor.
func (c *Chain) Extract(ctx context.Context, archive, dest string) error {
	const op = "extract.Extract"
	var tried []string
	for _, e := range c.Extractors {
		if !e.Available() {
			tried = append(tried, e.Name())
			continue
		}
		err := waiter.Spin(messages.T("acquire.extracting", filepath.Base(archive)), func() error {
			return e.Extract(ctx, archive, dest)
		})
		if err != nil {
			return errors.New(errors.KindTransient, op, "extract.failed", fmt.Errorf("%s: %w", e.Name(), err), archive)
		}
		return nil
	}
	list := strings.Join(tried, ", ")
	return errors.New(errors.KindCapability, op, "extract.no_tool",
		fmt.Errorf("no extractor available (tried %s)", list), list)
}
