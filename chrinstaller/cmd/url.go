package cmd

import (
	"fmt"
	"strings"

	"chrinstaller/internal/downloader"
	"chrinstaller/internal/errors"
	"chrinstaller/internal/image"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/probe"
	"chrinstaller/internal/release"

	"github.com/spf13/cobra"
)

func newURLCmd(f *rootFlags) *cobra.Command {
	var arch, boot string
	cmd := &cobra.Command{
		Use:   "url [version]",
		Short: "Print the image URL for this machine",
		Long: `Print the CHR image URL that would be downloaded. The architecture and
boot mode are detected unless --arch and --boot are given; without a
version the latest release of the channel is looked up.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "cmd.url"
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Version = args[0]
			}

			spec := image.Spec{Arch: probe.NormalizeArch(arch), Boot: probe.BootMode(boot), ReleaseBase: cfg.ReleaseBase}
			if arch == "" || boot == "" {
				env, err := newProber(newRunner()).Probe(cmd.Context())
				if err != nil {
					return errors.E(op, err)
				}
				if arch == "" {
					spec.Arch = env.Arch
				}
				if boot == "" {
					spec.Boot = env.Boot
				}
			}
			if spec.Boot != probe.BootBIOS && spec.Boot != probe.BootUEFI {
				return errors.New(errors.KindConfig, op, "config.invalid", fmt.Errorf("boot mode %q", boot), "--boot="+boot)
			}

			dl, err := downloader.NewChain(cfg.Downloaders, newRunner())
			if err != nil {
				return err
			}
			res := &release.Resolver{Fetcher: dl, FeedBase: cfg.FeedBase, Unattended: true}
			if cfg.Channel != "" {
				if res.Channel, err = release.ParseChannel(cfg.Channel); err != nil {
					return err
				}
			}
			rel, err := res.Resolve(cmd.Context(), cfg.Version, spec.Arch)
			if err != nil {
				return errors.E(op, err)
			}
			spec.Version, spec.Family = rel.Version, rel.Family
			fmt.Fprintln(cmd.OutOrStdout(), image.URL(spec))
			return nil
		},
	}
	cmd.Flags().StringVar(&arch, "arch", "", "architecture (x86_64, aarch64)")
	cmd.Flags().StringVar(&boot, "boot", "", "boot mode (bios, uefi)")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return messages.T("summary.none")
	}
	return s
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}
