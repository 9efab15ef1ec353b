// Package installer runs the install phases in order: probe, version,
// settings, image, first-boot staging and the disk write.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"chrinstaller/internal/autorun"
	"chrinstaller/internal/errors"
	"chrinstaller/internal/image"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/probe"
	"chrinstaller/internal/release"
	"chrinstaller/internal/staging"
	"chrinstaller/internal/util"
)

type Prober interface {
	Probe(ctx context.Context) (*probe.Environment, error)
}

type Resolver interface {
	Resolve(ctx context.Context, explicit string, arch probe.Arch) (release.Release, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, s image.Spec) (*image.Artifact, error)
}

type Stager interface {
	Stage(ctx context.Context, req staging.Request) error
}

type DiskWriter interface {
	ConfirmAndWrite(ctx context.Context, device, image string) error
}

// Asker collects free-form answers.
type Asker interface {
	Ask(label, def string, check func(string) error) (string, error)
	Secret(label string) (string, error)
}

// Options are the operator's choices from flags and the config file.
type Options struct {
	Version     string
	Unattended  bool
	Device      string
	Address     string
	Gateway     string
	DNS         []string
	Password    string
	SSHKey      string
	ReleaseBase string
}

// Pipeline wires the phases together.
type Pipeline struct {
	Prober   Prober
	Resolver Resolver
	Acquirer Acquirer
	Stager   Stager
	Writer   DiskWriter
	Asker    Asker
	Options  Options
	// Out receives the summary table, os.Stdout when nil.
	Out io.Writer
}

// passwordLength is the size of generated admin passwords.
const passwordLength = 8

// Run executes every phase. Staging failures are reported and skipped;
// any other failure stops the run.
func (p *Pipeline) Run(ctx context.Context) error {
	const op = "installer.Run"
	b := &Builder{}

	log.Step("%s", messages.T("step.probe"))
	env, err := p.Prober.Probe(ctx)
	if err != nil {
		return errors.E(op, err)
	}
	reportEnvironment(env)
	b.Environment(env)

	log.Step("%s", messages.T("step.version"))
	rel, err := p.Resolver.Resolve(ctx, p.Options.Version, env.Arch)
	if err != nil {
		return errors.E(op, err)
	}
	log.Info("%s", messages.T("version.resolved", rel.Version, int(rel.Family)))
	b.Release(rel)
	b.ImageURL(image.URL(b.Current().ImageSpec(p.Options.ReleaseBase)))

	log.Step("%s", messages.T("step.settings"))
	if err := p.collectSettings(env, b); err != nil {
		return errors.E(op, err)
	}
	cfg, err := b.Build()
	if err != nil {
		return errors.E(op, err)
	}
	if cfg.PasswordGenerated {
		log.Info("%s", messages.T("settings.password_generated", cfg.Password))
	}

	log.Step("%s", messages.T("step.acquire"))
	art, err := p.Acquirer.Acquire(ctx, cfg.ImageSpec(p.Options.ReleaseBase))
	if err != nil {
		var left *image.LeftoverError
		if errors.As(err, &left) {
			log.Warn("%s", messages.T("acquire.leftover", left.Dir))
		}
		return errors.E(op, err)
	}

	log.Step("%s", messages.T("step.stage"))
	if err := p.Stager.Stage(ctx, staging.Request{Image: art.Image, Family: cfg.Family, Settings: cfg.Settings()}); err != nil {
		warnStaging(err)
	}

	log.Step("%s", messages.T("step.write"))
	p.printSummary(cfg, art)
	if err := p.Writer.ConfirmAndWrite(ctx, cfg.Device, art.Image); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func reportEnvironment(env *probe.Environment) {
	log.Info("%s", messages.T("probe.arch", env.Arch))
	log.Info("%s", messages.T("probe.boot", env.Boot))
	if env.LegacyListing {
		log.Warn("%s", messages.T("probe.legacy_listing"))
	}
	if d := env.DefaultDisk(); d != "" {
		log.Info("%s", messages.T("probe.disk", d))
	} else {
		log.Warn("%s", messages.T("probe.no_disk"))
	}
	if env.Network.Interface != "" {
		log.Info("%s", messages.T("probe.iface", env.Network.Interface))
	} else {
		log.Warn("%s", messages.T("probe.no_route"))
	}
}

func warnStaging(err error) {
	var e *errors.Error
	if errors.As(err, &e) && e.Key != "" {
		log.Warn("%s", messages.T(e.Key, e.Args...))
	}
	log.Detail("%v", err)
	log.Warn("%s", messages.T("staging.continuing"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// collectSettings fills device, network and credentials. Flags win over
// probed values; interactive runs offer the result as the default answer.
func (p *Pipeline) collectSettings(env *probe.Environment, b *Builder) error {
	o := p.Options
	device := firstNonEmpty(o.Device, env.DefaultDisk())
	address := firstNonEmpty(o.Address, env.Network.Address)
	gateway := firstNonEmpty(o.Gateway, env.Network.Gateway)
	dns := o.DNS
	if len(dns) == 0 {
		dns = env.Network.DNS
	}
	password := o.Password

	if !o.Unattended {
		var err error
		if device, err = p.Asker.Ask(messages.T("prompt.device"), device, checkDevice); err != nil {
			return err
		}
		if address, err = p.Asker.Ask(messages.T("prompt.address"), address, autorun.ValidateAddress); err != nil {
			return err
		}
		if gateway, err = p.Asker.Ask(messages.T("prompt.gateway"), gateway, autorun.ValidateGateway); err != nil {
			return err
		}
		answer, err := p.Asker.Ask(messages.T("prompt.dns"), strings.Join(dns, ","), checkDNSList)
		if err != nil {
			return err
		}
		dns = splitList(answer)
		if password == "" {
			if password, err = p.Asker.Secret(messages.T("prompt.password")); err != nil {
				return err
			}
		}
	}

	generated := false
	if password == "" {
		pw, err := util.RandomAlphanumeric(passwordLength)
		if err != nil {
			return err
		}
		password, generated = pw, true
	}

	sshKey := o.SSHKey
	if sshKey != "" && b.Current().Family != release.Family7 {
		log.Warn("%s", messages.T("settings.ssh_key_v6"))
		sshKey = ""
	}

	b.Device(device).
		Network(Network{Address: address, Gateway: gateway, DNS: dns}).
		Credentials(password, generated, sshKey)
	return nil
}

func checkDevice(s string) error {
	if !strings.HasPrefix(s, "/dev/") {
		return fmt.Errorf("%q is not a /dev path", s)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		out = append(out, f)
	}
	return out
}

func checkDNSList(s string) error {
	servers := splitList(s)
	if len(servers) == 0 {
		return autorun.ValidateDNS("")
	}
	for _, d := range servers {
		if err := autorun.ValidateDNS(d); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}
