// Package image locates, downloads and unpacks CHR images, and checks the
// partition layout of the result.
package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Downloader stores a remote file locally.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Extractor unpacks an archive into a raw image.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) error
}

// Artifact is a downloaded image inside its per-run work directory.
type Artifact struct {
	RunID   string
	Dir     string
	URL     string
	Archive string
	Image   string
	Size    int64
}

// HumanSize renders the raw image size.
func (a *Artifact) HumanSize() string {
	return humanize.IBytes(uint64(a.Size))
}

// LeftoverError reports a failed acquisition together with the work
// directory that still holds partial files.
type LeftoverError struct {
	Dir string
	Err error
}

func (e *LeftoverError) Error() string {
	return fmt.Sprintf("%v (files left in %s)", e.Err, e.Dir)
}

func (e *LeftoverError) Unwrap() error { return e.Err }

// Acquirer fetches images into a fresh directory under WorkRoot.
type Acquirer struct {
	Downloader Downloader
	Extractor  Extractor
	WorkRoot   string
}

// NewRunID names per-run work directories.
var NewRunID = func() string {
	return uuid.NewString()
}

// Acquire downloads and unpacks the image described by s. On failure the
// work directory is kept and reported through a *LeftoverError.
func (a *Acquirer) Acquire(ctx context.Context, s Spec) (*Artifact, error) {
	const op = "image.Acquire"
	runID := NewRunID()
	dir := filepath.Join(a.WorkRoot, "chrinstaller-"+runID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.E(op, fmt.Errorf("failed to create work directory: %w", err))
	}

	art := &Artifact{RunID: runID, Dir: dir, URL: URL(s)}
	art.Archive = filepath.Join(dir, FileName(s))
	art.Image = filepath.Join(dir, strings.TrimSuffix(FileName(s), ".zip"))
	log.Info("%s", messages.T("acquire.url", art.URL))

	if err := a.Downloader.Download(ctx, art.URL, art.Archive); err != nil {
		return nil, errors.E(op, &LeftoverError{Dir: dir, Err: err})
	}
	if err := a.Extractor.Extract(ctx, art.Archive, art.Image); err != nil {
		return nil, errors.E(op, &LeftoverError{Dir: dir, Err: err})
	}
	info, err := os.Stat(art.Image)
	if err != nil {
		return nil, errors.E(op, &LeftoverError{Dir: dir, Err: err})
	}
	art.Size = info.Size()
	if art.Size == 0 {
		return nil, errors.New(errors.KindTransient, op, "extract.failed",
			&LeftoverError{Dir: dir, Err: fmt.Errorf("extracted image is empty")}, art.Archive)
	}
	// The archive is no longer needed once the raw image exists.
	_ = os.Remove(art.Archive)
	log.Info("%s", messages.T("acquire.done", art.Image, art.HumanSize()))
	return art, nil
}
