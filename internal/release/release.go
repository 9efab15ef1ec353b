// Package release decides which RouterOS version to install: from an
// explicit version string, a named channel, or the interactive menu.
package release

import (
	"fmt"
	"regexp"
	"strings"

	"chrinstaller/internal/errors"
)

// Family is the RouterOS major version.
type Family int

const (
	Family6 Family = 6
	Family7 Family = 7
)

// WritablePartition returns the 1-based index of the partition that holds
// the rw/ tree in a CHR image of this family.
func (f Family) WritablePartition() int {
	if f == Family6 {
		return 1
	}
	return 2
}

// versionPattern matches RouterOS release numbers such as "7.19.4",
// "6.49.15", "7.20beta2" or "7.21rc1".
var versionPattern = regexp.MustCompile(`^[67](\.[0-9]+)+(rc[0-9]+|beta[0-9]+)?$`)

// Classify derives the family from a dotted version such as "7.19.4".
func Classify(version string) (Family, error) {
	const op = "release.Classify"
	if !versionPattern.MatchString(version) {
		return 0, errors.New(errors.KindConfig, op, "version.unsupported",
			fmt.Errorf("unsupported version %q", version), version)
	}
	if strings.HasPrefix(version, "6") {
		return Family6, nil
	}
	return Family7, nil
}

// Channel names a release track with a NEWEST* feed file.
type Channel string

const (
	ChannelV7Stable   Channel = "v7-stable"
	ChannelV7Testing  Channel = "v7-testing"
	ChannelV6LongTerm Channel = "v6-long-term"
	ChannelV6Stable   Channel = "v6-stable"
)

type channelInfo struct {
	channel Channel
	feed    string
	label   string
	family  Family
}

// channels is in menu order.
var channels = []channelInfo{
	{ChannelV7Stable, "NEWESTa7.stable", "version.opt_v7_stable", Family7},
	{ChannelV7Testing, "NEWESTa7.testing", "version.opt_v7_testing", Family7},
	{ChannelV6LongTerm, "NEWEST6.long-term", "version.opt_v6_longterm", Family6},
	{ChannelV6Stable, "NEWEST6.stable", "version.opt_v6_stable", Family6},
}

func lookup(c Channel) (channelInfo, bool) {
	for _, ci := range channels {
		if ci.channel == c {
			return ci, true
		}
	}
	return channelInfo{}, false
}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	if _, ok := lookup(Channel(s)); !ok {
		return "", errors.New(errors.KindConfig, "release.ParseChannel", "version.unknown_channel",
			fmt.Errorf("unknown channel %q", s), s)
	}
	return Channel(s), nil
}

// Family returns the major version published on the channel.
func (c Channel) Family() Family {
	ci, _ := lookup(c)
	return ci.family
}

// FeedURL returns the NEWEST* file for the channel under base.
func (c Channel) FeedURL(base string) string {
	ci, _ := lookup(c)
	return strings.TrimRight(base, "/") + "/" + ci.feed
}

// Channels lists all channels in menu order.
func Channels() []Channel {
	out := make([]Channel, 0, len(channels))
	for _, ci := range channels {
		out = append(out, ci.channel)
	}
	return out
}

// ParseFeed returns the version announced by a NEWEST* file: its first
// whitespace separated token.
func ParseFeed(body []byte) (string, error) {
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty version feed")
	}
	return fields[0], nil
}
