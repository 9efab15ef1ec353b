package installer

import (
	"fmt"
	"strings"

	"chrinstaller/internal/image"
	"chrinstaller/internal/log"
	"chrinstaller/internal/messages"

	"github.com/olekukonko/tablewriter"
)

func orNone(s string) string {
	if s == "" {
		return messages.T("summary.none")
	}
	return s
}

// summaryRows lists what is about to be written, one row per setting.
// The password is never shown here.
func summaryRows(c Config, art *image.Artifact) [][]string {
	ssh := messages.T("summary.none")
	if c.SSHKey != "" {
		if f := strings.Fields(c.SSHKey); len(f) > 0 {
			ssh = f[0]
		}
	}
	return [][]string{
		{messages.T("summary.version"), fmt.Sprintf("%s (v%d)", c.Version, int(c.Family))},
		{messages.T("summary.arch"), string(c.Arch)},
		{messages.T("summary.boot"), string(c.Boot)},
		{messages.T("summary.image"), c.ImageURL},
		{messages.T("summary.size"), art.HumanSize()},
		{messages.T("summary.device"), c.Device},
		{messages.T("summary.address"), orNone(c.Network.Address)},
		{messages.T("summary.gateway"), orNone(c.Network.Gateway)},
		{messages.T("summary.dns"), orNone(strings.Join(c.Network.DNS, ", "))},
		{messages.T("summary.ssh_key"), ssh},
	}
}

func (p *Pipeline) printSummary(c Config, art *image.Artifact) {
	log.Title("%s", messages.T("write.summary"))
	table := tablewriter.NewWriter(p.out())
	table.Header([]string{messages.T("summary.field"), messages.T("summary.value")})
	for _, row := range summaryRows(c, art) {
		table.Append(row)
	}
	table.Render()
}
