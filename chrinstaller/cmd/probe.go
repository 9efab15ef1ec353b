package cmd

import (
	"fmt"
	"io"

	"chrinstaller/internal/errors"
	"chrinstaller/internal/messages"
	"chrinstaller/internal/probe"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newProbeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Show the detected machine, network and disks",
		Long:  `Show what the installer detects on this machine without changing anything.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd, f); err != nil {
				return err
			}
			env, err := newProber(newRunner()).Probe(cmd.Context())
			if err != nil {
				return errors.E("cmd.probe", err)
			}
			out := cmd.OutOrStdout()

			arch := string(env.Arch)
			if !env.Arch.Supported() {
				arch = color.RedString("%s (unsupported)", env.Arch)
			}
			fmt.Fprintln(out, messages.T("probe.arch", arch))
			fmt.Fprintln(out, messages.T("probe.boot", env.Boot))
			if env.Network.Interface != "" {
				fmt.Fprintln(out, messages.T("probe.iface", env.Network.Interface))
			} else {
				fmt.Fprintln(out, messages.T("probe.no_route"))
			}

			table := tablewriter.NewWriter(out)
			table.Header([]string{messages.T("summary.field"), messages.T("summary.value")})
			table.Append([]string{messages.T("summary.address"), orNone(env.Network.Address)})
			table.Append([]string{messages.T("summary.gateway"), orNone(env.Network.Gateway)})
			table.Append([]string{messages.T("summary.dns"), orNone(joinList(env.Network.DNS))})
			table.Render()

			if len(env.Disks) == 0 {
				color.Yellow("%s", messages.T("probe.no_disk"))
				return nil
			}
			if env.LegacyListing {
				fmt.Fprintln(out, messages.T("probe.legacy_listing"))
			}
			printDisks(out, env.Disks)
			return nil
		},
	}
}

func printDisks(out io.Writer, disks []probe.Disk) {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"DEVICE", "SIZE", "MODEL", ""})
	for i, d := range disks {
		mark := ""
		if i == 0 {
			mark = color.GreenString("default")
		}
		table.Append([]string{d.Path, d.HumanSize(), d.Model, mark})
	}
	table.Render()
}
