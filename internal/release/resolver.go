package release

import (
	"context"
	"fmt"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/probe"
)

// Fetcher returns the body of a small remote document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Chooser presents a numbered menu.
type Chooser interface {
	Menu(title string, options []string, label string, accept func(choice int) error) (int, error)
}

// Release is a resolved version.
type Release struct {
	Version string
	Family  Family
	// Channel is empty for explicit versions.
	Channel Channel
}

// Resolver turns operator intent into a Release.
type Resolver struct {
	Fetcher  Fetcher
	Chooser  Chooser
	FeedBase string
	// Channel skips the menu when set.
	Channel Channel
	// Unattended picks the first menu entry instead of asking.
	Unattended bool
}

// Resolve returns the release to install. An explicit version wins, then
// the configured channel, then the menu.
func (r *Resolver) Resolve(ctx context.Context, explicit string, arch probe.Arch) (Release, error) {
	const op = "release.Resolve"
	if !arch.Supported() {
		return Release{}, errors.New(errors.KindConfig, op, "version.unsupported_arch",
			fmt.Errorf("unsupported architecture %q", arch), string(arch))
	}

	if explicit != "" {
		fam, err := Classify(explicit)
		if err != nil {
			return Release{}, errors.E(op, err)
		}
		if err := checkArch(fam, arch); err != nil {
			return Release{}, err
		}
		return Release{Version: explicit, Family: fam}, nil
	}

	channel := r.Channel
	if channel == "" {
		if r.Unattended {
			channel = ChannelV7Stable
		} else {
			c, err := r.choose(arch)
			if err != nil {
				return Release{}, errors.E(op, err)
			}
			channel = c
		}
	}
	ci, ok := lookup(channel)
	if !ok {
		return Release{}, errors.New(errors.KindConfig, op, "version.unknown_channel",
			fmt.Errorf("unknown channel %q", channel), string(channel))
	}
	if err := checkArch(ci.family, arch); err != nil {
		return Release{}, err
	}

	version, err := r.fetchLatest(ctx, channel)
	if err != nil {
		return Release{}, err
	}
	fam, err := Classify(version)
	if err != nil {
		return Release{}, errors.E(op, err)
	}
	return Release{Version: version, Family: fam, Channel: channel}, nil
}

func checkArch(fam Family, arch probe.Arch) error {
	if fam == Family6 && arch == probe.ArchAArch64 {
		return errors.New(errors.KindConfig, "release.checkArch", "version.v6_arch",
			fmt.Errorf("RouterOS v6 is not built for %s", arch), string(arch))
	}
	return nil
}

// choose runs the version menu. aarch64 only lists v7 entries but still
// explains why 3 and 4 are refused.
func (r *Resolver) choose(arch probe.Arch) (Channel, error) {
	offered := channels
	if arch == probe.ArchAArch64 {
		offered = channels[:2]
	}
	labels := make([]string, 0, len(offered))
	for _, ci := range offered {
		labels = append(labels, messages.T(ci.label))
	}
	accept := func(choice int) error {
		if choice >= 1 && choice <= len(offered) {
			return nil
		}
		if choice <= len(channels) && channels[choice-1].family == Family6 {
			return fmt.Errorf("%s", messages.T("version.v6_unavailable", arch))
		}
		return fmt.Errorf("%s", messages.T("version.invalid_choice", fmt.Sprint(choice)))
	}
	choice, err := r.Chooser.Menu(messages.T("version.menu_title"), labels, messages.T("version.prompt"), accept)
	if err != nil {
		return "", err
	}
	return offered[choice-1].channel, nil
}

func (r *Resolver) fetchLatest(ctx context.Context, channel Channel) (string, error) {
	const op = "release.fetchLatest"
	url := channel.FeedURL(r.FeedBase)
	log.Info("%s", messages.T("version.fetching", url))
	body, err := r.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", errors.E(op, err)
	}
	version, err := ParseFeed(body)
	if err != nil {
		return "", errors.New(errors.KindTransient, op, "version.feed_failed", err, url)
	}
	return version, nil
}
