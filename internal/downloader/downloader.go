// Package downloader fetches release artifacts and version feeds through
// an ordered chain of providers: external tools first, the built-in HTTP
// client on request.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/runner"
	"chrinstaller/internal/waiter"
)

// Provider downloads with one tool.
type Provider interface {
	Name() string
	Available() bool
	// Download stores the body of url at dest.
	Download(ctx context.Context, url, dest string) error
	// Fetch returns the body of url.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Curl shells out to curl.
type Curl struct{ Runner runner.Runner }

func (c Curl) Name() string { return "curl" }

func (c Curl) Available() bool {
	_, err := c.Runner.LookPath("curl")
	return err == nil
}

func (c Curl) Download(ctx context.Context, url, dest string) error {
	_, err := c.Runner.Run(ctx, runner.Command{Name: "curl", Args: []string{"-fsSL", "-o", dest, url}})
	return err
}

func (c Curl) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.Runner.Run(ctx, runner.Command{Name: "curl", Args: []string{"-fsSL", url}})
}

// Wget shells out to wget.
type Wget struct{ Runner runner.Runner }

func (w Wget) Name() string { return "wget" }

func (w Wget) Available() bool {
	_, err := w.Runner.LookPath("wget")
	return err == nil
}

func (w Wget) Download(ctx context.Context, url, dest string) error {
	_, err := w.Runner.Run(ctx, runner.Command{Name: "wget", Args: []string{"-q", "-O", dest, url}})
	return err
}

func (w Wget) Fetch(ctx context.Context, url string) ([]byte, error) {
	return w.Runner.Run(ctx, runner.Command{Name: "wget", Args: []string{"-q", "-O", "-", url}})
}

// HTTP uses the Go HTTP client and needs no external tool.
type HTTP struct{ Client *http.Client }

func (h HTTP) Name() string { return "http" }

func (h HTTP) Available() bool { return true }

func (h HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h HTTP) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file from %s: %s", url, resp.Status)
	}
	return resp, nil
}

func (h HTTP) Download(ctx context.Context, url, dest string) error {
	return DownloadFile(ctx, h.client(), dest, url)
}

func (h HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := h.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// DownloadFile downloads a file from a URL to a local path.
func DownloadFile(ctx context.Context, client *http.Client, filepath string, url string) error {
	resp, err := HTTP{Client: client}.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return out.Close()
}

// NewProvider returns the provider registered under name.
func NewProvider(name string, r runner.Runner) (Provider, error) {
	switch name {
	case "curl":
		return Curl{Runner: r}, nil
	case "wget":
		return Wget{Runner: r}, nil
	case "http":
		return HTTP{}, nil
	}
	return nil, errors.New(errors.KindConfig, "downloader.NewProvider", "download.unknown_provider",
		fmt.Errorf("unknown download provider %q", name), name)
}

// Chain uses the first available provider in order.
type Chain struct {
	Providers []Provider
}

// NewChain builds a chain from provider names.
func NewChain(names []string, r runner.Runner) (*Chain, error) {
	c := &Chain{}
	for _, n := range names {
		p, err := NewProvider(n, r)
		if err != nil {
			return nil, err
		}
		c.Providers = append(c.Providers, p)
	}
	return c, nil
}

func (c *Chain) pick(op string) (Provider, error) {
	var tried []string
	for _, p := range c.Providers {
		if p.Available() {
			return p, nil
		}
		tried = append(tried, p.Name())
	}
	list := strings.Join(tried, ", ")
	return nil, errors.New(errors.KindCapability, op, "download.no_tool",
		fmt.Errorf("no download provider available (tried %s)", list), list)
}

// Download stores url at dest, showing a spinner while it runs.
func (c *Chain) Download(ctx context.Context, url, dest string) error {
	const op = "downloader.Download"
	p, err := c.pick(op)
	if err != nil {
		return err
	}
	err = waiter.Spin(messages.T("acquire.downloading", url), func() error {
		return p.Download(ctx, url, dest)
	})
	if err != nil {
		return errors.New(errors.KindTransient, op, "download.failed", fmt.Errorf("%s: %w", p.Name(), err), url)
	}
	return nil
}

// Fetch returns the body of url.
func (c *Chain) Fetch(ctx context.Context, url string) ([]byte, error) {
	const op = "downloader.Fetch"
	p, err := c.pick(op)
	if err != nil {
		return nil, err
	}
	body, err := p.Fetch(ctx, url)
	if err != nil {
		return nil, errors.New(errors.KindTransient, op, "download.failed", fmt.Errorf("%s: %w", p.Name(), err), url)
	}
	return body, nil
}
