package release

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	ierrors "chrinstaller/internal/errors"
	"chrinstaller/internal/probe"
	"chrinstaller/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	bodies map[string]string
	err    error
	urls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("404")
	}
	return []byte(body), nil
}

const feedBase = "https://upgrade.example.com/routeros"

func newFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{
		feedBase + "/NEWESTa7.stable":   "7.19.4 1749539034\n",
		feedBase + "/NEWESTa7.testing":  "7.20beta2 1750000000",
		feedBase + "/NEWEST6.long-term": "6.49.15 1700000000",
		feedBase + "/NEWEST6.stable":    "6.49.18 1710000000",
	}}
}

func TestWritablePartition(t *testing.T) {
	assert.Equal(t, 2, Family7.WritablePartition())
	assert.Equal(t, 1, Family6.WritablePartition())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		version string
		want    Family
		wantErr bool
	}{
		{"7.19.4", Family7, false},
		{"7.20beta2", Family7, false},
		{"6.49.15", Family6, false},
		{"9.0.0", 0, true},
		{"", 0, true},
		{"stable", 0, true},
		{"7.21rc1", Family7, false},
		{"7", 0, true},
		{"7.", 0, true},
		{"7.19.6/../x", 0, true},
		{"7.19 6", 0, true},
		{" 7.19.4", 0, true},
		{"70.1", 0, true},
		{"7.20beta", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := Classify(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierrors.Is(err, ierrors.KindConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Explicit(t *testing.T) {
	r := &Resolver{Fetcher: newFetcher(), FeedBase: feedBase}

	rel, err := r.Resolve(context.Background(), "6.49.15", probe.ArchX86_64)
	require.NoError(t, err)
	assert.Equal(t, Release{Version: "6.49.15", Family: Family6}, rel)

	_, err = r.Resolve(context.Background(), "9.0.0", probe.ArchX86_64)
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.KindConfig))
	var e *ierrors.Error
	require.True(t, ierrors.As(err, &e))
	assert.Equal(t, "version.unsupported", e.Key)

	_, err = r.Resolve(context.Background(), "6.49.15", probe.ArchAArch64)
	assert.True(t, ierrors.Is(err, ierrors.KindConfig), "v6 on aarch64 is a configuration error")
}

func TestResolve_UnsupportedArch(t *testing.T) {
	r := &Resolver{Fetcher: newFetcher(), FeedBase: feedBase}
	_, err := r.Resolve(context.Background(), "7.19.4", probe.Arch("mips"))
	require.Error(t, err)
	assert.True(t, ierrors.Is(err, ierrors.KindConfig))
}

func TestResolve_Channel(t *testing.T) {
	tests := []struct {
		channel Channel
		want    Release
	}{
		{ChannelV7Stable, Release{"7.19.4", Family7, ChannelV7Stable}},
		{ChannelV7Testing, Release{"7.20beta2", Family7, ChannelV7Testing}},
		{ChannelV6LongTerm, Release{"6.49.15", Family6, ChannelV6LongTerm}},
		{ChannelV6Stable, Release{"6.49.18", Family6, ChannelV6Stable}},
	}
	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			r := &Resolver{Fetcher: newFetcher(), FeedBase: feedBase + "/", Channel: tt.channel}
			got, err := r.Resolve(context.Background(), "", probe.ArchX86_64)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnattendedDefaultsToV7Stable(t *testing.T) {
	f := newFetcher()
	r := &Resolver{Fetcher: f, FeedBase: feedBase, Unattended: true}
	got, err := r.Resolve(context.Background(), "", probe.ArchAArch64)
	require.NoError(t, err)
	assert.Equal(t, "7.19.4", got.Version)
	assert.Equal(t, []string{feedBase + "/NEWESTa7.stable"}, f.urls)
}

func TestResolve_MenuX86(t *testing.T) {
	out := &bytes.Buffer{}
	r := &Resolver{
		Fetcher:  newFetcher(),
		FeedBase: feedBase,
		Chooser:  prompt.New(strings.NewReader("3\n"), out),
	}
	got, err := r.Resolve(context.Background(), "", probe.ArchX86_64)
	require.NoError(t, err)
	assert.Equal(t, Release{"6.49.15", Family6, ChannelV6LongTerm}, got)
	assert.Contains(t, out.String(), "4) RouterOS v6 stable")
}

func TestResolve_MenuAArch64RepromptsForV6(t *testing.T) {
	out := &bytes.Buffer{}
	r := &Resolver{
		Fetcher:  newFetcher(),
		FeedBase: feedBase,
		Chooser:  prompt.New(strings.NewReader("3\n4\n2\n"), out),
	}
	got, err := r.Resolve(context.Background(), "", probe.ArchAArch64)
	require.NoError(t, err)
	assert.Equal(t, ChannelV7Testing, got.Channel)

	text := out.String()
	assert.NotContains(t, text, "3) ")
	assert.Equal(t, 2, strings.Count(text, "RouterOS v6 is not built for aarch64"))
}

func TestResolve_MenuCancelled(t *testing.T) {
	r := &Resolver{
		Fetcher:  newFetcher(),
		FeedBase: feedBase,
		Chooser:  prompt.New(strings.NewReader(""), &bytes.Buffer{}),
	}
	_, err := r.Resolve(context.Background(), "", probe.ArchX86_64)
	assert.ErrorIs(t, err, prompt.ErrCancelled)
}

func TestResolve_FeedErrors(t *testing.T) {
	r := &Resolver{Fetcher: &fakeFetcher{bodies: map[string]string{feedBase + "/NEWESTa7.stable": "  \n"}}, FeedBase: feedBase, Channel: ChannelV7Stable}
	_, err := r.Resolve(context.Background(), "", probe.ArchX86_64)
	assert.True(t, ierrors.Is(err, ierrors.KindTransient))

	fetchErr := ierrors.New(ierrors.KindCapability, "downloader.Fetch", "download.no_tool", errors.New("no tool"))
	r.Fetcher = &fakeFetcher{err: fetchErr}
	_, err = r.Resolve(context.Background(), "", probe.ArchX86_64)
	assert.True(t, ierrors.Is(err, ierrors.KindCapability), "fetcher classification is preserved")
}

func TestParseChannel(t *testing.T) {
	for _, c := range Channels() {
		got, err := ParseChannel(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseChannel("v8-stable")
	assert.Error(t, err)
}
