package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chrinstaller/internal/autorun"
	"chrinstaller/internal/config"
	"chrinstaller/internal/disk"
	"chrinstaller/internal/downloader"
	"chrinstaller/internal/errors"
	"chrinstaller/internal/extract"
	"chrinstaller/internal/image"
	"chrinstaller/internal/installer"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/pidfile"
	"chrinstaller/internal/probe"
	"chrinstaller/internal/prompt"
	"chrinstaller/internal/release"
	"chrinstaller/internal/runner"
	"chrinstaller/internal/staging"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

// Injectable seams for tests.
var (
	newRunner   = func() runner.Runner { return runner.Exec{} }
	newProber   = func(r runner.Runner) installer.Prober { return probe.New(r) }
	newPrompt   = func() *prompt.Prompter { return prompt.New(os.Stdin, os.Stdout) }
	runPipeline = func(ctx context.Context, p *installer.Pipeline) error { return p.Run(ctx) }
	getenv      = os.Getenv
)

type rootFlags struct {
	lang           string
	configPath     string
	unattended     bool
	device         string
	address        string
	gateway        string
	dns            []string
	password       string
	sshKey         string
	channel        string
	releaseBase    string
	feedBase       string
	workDir        string
	downloaders    []string
	extractors     []string
	confirmDefault bool
	verbose        bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "chrinstaller [version]",
		Short: "chrinstaller writes a MikroTik CHR image to the local disk",
		Long: `chrinstaller detects the machine, resolves a RouterOS release, downloads
the matching CHR image, stages a first-boot script with the network
settings and admin password, then writes the image to the target disk
and reboots.`,
		Args: cobra.MaximumNArgs(1),
		// SilenceErrors is used to prevent cobra from printing the error,
		// as we handle it ourselves in the Execute function.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Version = args[0]
			}
			return install(cmd.Context(), cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.lang, "lang", "", "message language (en, zh)")
	pf.StringVar(&f.configPath, "config", "", "YAML config file (env "+config.EnvConfigPath+")")
	pf.StringVar(&f.releaseBase, "release-base", "", "image mirror root")
	pf.StringVar(&f.feedBase, "feed-base", "", "release channel feed root")
	pf.StringVar(&f.channel, "channel", "", "release channel (v7-stable, v7-testing, v6-long-term, v6-stable)")
	pf.StringSliceVar(&f.downloaders, "downloader", nil, "download providers in order of preference (curl, wget, http)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "print external commands")

	fl := rootCmd.Flags()
	fl.BoolVar(&f.unattended, "unattended", false, "accept detected defaults without prompting")
	fl.StringVar(&f.device, "device", "", "target block device, e.g. /dev/sda")
	fl.StringVar(&f.address, "address", "", "router address in CIDR form")
	fl.StringVar(&f.gateway, "gateway", "", "default gateway")
	fl.StringSliceVar(&f.dns, "dns", nil, "DNS server (repeatable)")
	fl.StringVar(&f.password, "password", "", "admin password, random when empty")
	fl.StringVar(&f.sshKey, "ssh-key", "", "public key file installed for admin (RouterOS v7)")
	fl.StringVar(&f.workDir, "work-dir", "", "parent directory for downloads")
	fl.StringSliceVar(&f.extractors, "extractor", nil, "extraction providers in order of preference (unzip, gunzip, native)")
	fl.BoolVar(&f.confirmDefault, "confirm-default", false, "answer yes when the write confirmation is left empty")

	rootCmd.AddCommand(newProbeCmd(f), newURLCmd(f))
	return rootCmd
}

// loadConfig merges defaults, the config file and the flags that were set,
// and selects the message catalog.
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	const op = "cmd.loadConfig"
	lang := f.lang
	if lang == "" {
		lang = messages.Detect(getenv)
	}
	if err := messages.Select(lang); err != nil {
		return nil, errors.New(errors.KindConfig, op, "config.invalid", err, err)
	}

	path := config.ResolvePath(f.configPath, getenv)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.New(errors.KindConfig, op, "config.unreadable", err, path)
	}
	if f.lang == "" && cfg.Language != "" {
		if err := messages.Select(cfg.Language); err != nil {
			return nil, errors.New(errors.KindConfig, op, "config.invalid", err, err)
		}
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("lang", func() { cfg.Language = f.lang })
	set("unattended", func() { cfg.Unattended = f.unattended })
	set("device", func() { cfg.Device = f.device })
	set("address", func() { cfg.Network.Address = f.address })
	set("gateway", func() { cfg.Network.Gateway = f.gateway })
	set("dns", func() { cfg.Network.DNS = f.dns })
	set("password", func() { cfg.Password = f.password })
	set("ssh-key", func() { cfg.SSHKeyFile = f.sshKey })
	set("channel", func() { cfg.Channel = f.channel })
	set("release-base", func() { cfg.ReleaseBase = f.releaseBase })
	set("feed-base", func() { cfg.FeedBase = f.feedBase })
	set("work-dir", func() { cfg.WorkDir = f.workDir })
	set("downloader", func() { cfg.Downloaders = f.downloaders })
	set("extractor", func() { cfg.Extractors = f.extractors })
	set("confirm-default", func() { cfg.ConfirmDefault = f.confirmDefault })
	set("verbose", func() { cfg.Verbose = f.verbose })

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.KindConfig, op, "config.invalid", err, err)
	}
	log.Verbose = cfg.Verbose
	return cfg, nil
}

func readSSHKey(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.KindConfig, "cmd.readSSHKey", "settings.ssh_key_invalid", err, path)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := autorun.NormalizeSSHKey(line)
		if err != nil {
			return "", errors.New(errors.KindConfig, "cmd.readSSHKey", "settings.ssh_key_invalid", err, path)
		}
		return key, nil
	}
	return "", errors.New(errors.KindConfig, "cmd.readSSHKey", "settings.ssh_key_invalid", fmt.Errorf("no key found"), path)
}

// install wires the pipeline from cfg and runs it.
func install(ctx context.Context, cfg *config.Config) error {
	sshKey, err := readSSHKey(cfg.SSHKeyFile)
	if err != nil {
		return err
	}
	unlock, err := pidfile.Acquire(pidfile.Path(cfg.GetWorkRoot()))
	if err != nil {
		return err
	}
	defer unlock()
	r := newRunner()
	dl, err := downloader.NewChain(cfg.Downloaders, r)
	if err != nil {
		return err
	}
	ex, err := extract.NewChain(cfg.Extractors, r)
	if err != nil {
		return err
	}
	var channel release.Channel
	if cfg.Channel != "" {
		if channel, err = release.ParseChannel(cfg.Channel); err != nil {
			return err
		}
	}

	p := newPrompt()
	log.Title("%s", messages.T("app.title", Version))
	if !cfg.Unattended && !p.Interactive() {
		log.Warn("%s", messages.T("prompt.not_tty"))
	}
	resolver := &release.Resolver{
		Fetcher:    dl,
		Chooser:    p,
		FeedBase:   cfg.FeedBase,
		Channel:    channel,
		Unattended: cfg.Unattended,
	}
	return runPipeline(ctx, &installer.Pipeline{
		Prober:   newProber(r),
		Resolver: resolver,
		Acquirer: &image.Acquirer{Downloader: dl, Extractor: ex, WorkRoot: cfg.GetWorkRoot()},
		Stager:   staging.NewEditor(r),
		Writer:   &disk.Writer{Confirmer: p, ConfirmDefault: cfg.ConfirmDefault},
		Asker:    p,
		Options: installer.Options{
			Version:     cfg.Version,
			Unattended:  cfg.Unattended,
			Device:      cfg.Device,
			Address:     cfg.Network.Address,
			Gateway:     cfg.Network.Gateway,
			DNS:         cfg.Network.DNS,
			Password:    cfg.Password,
			SSHKey:      sshKey,
			ReleaseBase: cfg.ReleaseBase,
		},
	})
}

// report prints err the way the operator should see it: the localized
// message for its key, then the underlying cause.
func report(err error) {
	if stderrors.Is(err, prompt.ErrCancelled) || stderrors.Is(err, context.Canceled) {
		log.Warn("%s", messages.T("app.cancelled"))
		return
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Key != "" && messages.Current().Has(e.Key) {
		log.Error("%s", messages.T(e.Key, e.Args...))
		log.Detail("%v", err)
		return
	}
	log.Error("%v", err)
}

// Execute runs the CLI and exits 1 on any failure or operator abort.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		report(err)
		os.Exit(1)
	}
}
