package installer

import (
	"fmt"

	"chrinstaller/internal/autorun"
	"chrinstaller/internal/errors"
	"chrinstaller/internal/image"
	"chrinstaller/internal/probe"
	"chrinstaller/internal/release"
)

// Network is the first-boot addressing of the router.
type Network struct {
	Address string
	Gateway string
	DNS     []string
}

// Config is everything decided before the destructive write. It is
// assembled by a Builder and handed around by value once built.
type Config struct {
	Arch     probe.Arch
	Boot     probe.BootMode
	Family   release.Family
	Version  string
	ImageURL string
	Device   string
	Network  Network
	Password string
	// PasswordGenerated is set when Password was chosen at random.
	PasswordGenerated bool
	SSHKey            string
}

// Settings returns the autorun input for c.
func (c Config) Settings() autorun.Settings {
	return autorun.Settings{
		Password: c.Password,
		Address:  c.Network.Address,
		Gateway:  c.Network.Gateway,
		DNS:      append([]string(nil), c.Network.DNS...),
		SSHKey:   c.SSHKey,
	}
}

// ImageSpec returns the image coordinates for c under releaseBase.
func (c Config) ImageSpec(releaseBase string) image.Spec {
	return image.Spec{Version: c.Version, Family: c.Family, Arch: c.Arch, Boot: c.Boot, ReleaseBase: releaseBase}
}

// Builder accumulates a Config across pipeline phases.
type Builder struct {
	cfg Config
}

func (b *Builder) Environment(env *probe.Environment) *Builder {
	b.cfg.Arch = env.Arch
	b.cfg.Boot = env.Boot
	return b
}

func (b *Builder) Release(rel release.Release) *Builder {
	b.cfg.Version = rel.Version
	b.cfg.Family = rel.Family
	return b
}

func (b *Builder) ImageURL(url string) *Builder {
	b.cfg.ImageURL = url
	return b
}

func (b *Builder) Device(device string) *Builder {
	b.cfg.Device = device
	return b
}

func (b *Builder) Network(n Network) *Builder {
	b.cfg.Network = Network{Address: n.Address, Gateway: n.Gateway, DNS: append([]string(nil), n.DNS...)}
	return b
}

func (b *Builder) Credentials(password string, generated bool, sshKey string) *Builder {
	b.cfg.Password = password
	b.cfg.PasswordGenerated = generated
	b.cfg.SSHKey = sshKey
	return b
}

// Current returns a copy of the Config assembled so far.
func (b *Builder) Current() Config {
	c := b.cfg
	c.Network.DNS = append([]string(nil), b.cfg.Network.DNS...)
	return c
}

// Build checks the fields the write depends on and returns the final copy.
// Network values are not checked here: bad ones only cost the first-boot
// script, which staging reports on its own.
func (b *Builder) Build() (Config, error) {
	const op = "installer.Build"
	c := b.Current()
	switch {
	case c.Version == "" || c.Family == 0:
		return Config{}, errors.New(errors.KindConfig, op, "settings.invalid", fmt.Errorf("no release selected"), "version")
	case c.Device == "":
		return Config{}, errors.New(errors.KindConfig, op, "settings.no_device", fmt.Errorf("no target device"))
	case c.Password == "":
		return Config{}, errors.New(errors.KindConfig, op, "settings.invalid", fmt.Errorf("empty admin password"), "password")
	case c.ImageURL == "":
		return Config{}, errors.New(errors.KindConfig, op, "settings.invalid", fmt.Errorf("no image URL"), "image")
	}
	return c, nil
}
