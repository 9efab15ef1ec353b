// Package autorun renders the first-boot script RouterOS runs from
// rw/autorun.scr. Every value is validated before rendering and string
// values are quoted, so no input can add or split a command line.
package autorun

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/crypto/ssh"
)

// DefaultInterface is the first ethernet port of a CHR instance.
const DefaultInterface = "ether1"

const scriptTemplate = `/user set [find name=admin] password=[[ quote .Password ]]
/ip dns set servers=[[ join .DNS "," ]]
/ip address add address=[[ .Address ]] interface=[[ .Interface ]]
/ip route add gateway=[[ .Gateway ]]
[[ if .SSHKey -]]
/user ssh-keys add user=admin key=[[ quote .SSHKey ]]
[[ end -]]
`

// Settings are the first-boot values injected into the image.
type Settings struct {
	Password string
	// Address is an IPv4 prefix such as 192.168.88.2/24.
	Address string
	Gateway string
	DNS     []string
	// SSHKey is an optional authorized_keys line for the admin user.
	SSHKey    string
	Interface string
}

// Validate rejects values that would yield a broken script.
func (s Settings) Validate() error {
	if s.Password == "" {
		return fmt.Errorf("admin password is empty")
	}
	if strings.IndexFunc(s.Password, unicode.IsControl) >= 0 {
		return fmt.Errorf("admin password contains control characters")
	}
	if err := ValidateAddress(s.Address); err != nil {
		return err
	}
	if err := ValidateGateway(s.Gateway); err != nil {
		return err
	}
	if len(s.DNS) == 0 {
		return fmt.Errorf("at least one DNS server is required")
	}
	for _, d := range s.DNS {
		if err := ValidateDNS(d); err != nil {
			return err
		}
	}
	if s.SSHKey != "" {
		if _, err := NormalizeSSHKey(s.SSHKey); err != nil {
			return err
		}
	}
	if s.Interface != "" && strings.IndexFunc(s.Interface, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
	}) >= 0 {
		return fmt.Errorf("invalid interface name %q", s.Interface)
	}
	return nil
}

// ValidateAddress accepts an IPv4 address in CIDR notation.
func ValidateAddress(s string) error {
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return fmt.Errorf("address %q is not an IPv4 CIDR such as 192.168.88.2/24", s)
	}
	return nil
}

// ValidateGateway accepts a bare IPv4 address.
func ValidateGateway(s string) error {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return fmt.Errorf("gateway %q is not an IPv4 address", s)
	}
	return nil
}

// ValidateDNS accepts an IPv4 or IPv6 address without zone.
func ValidateDNS(s string) error {
	a, err := netip.ParseAddr(s)
	if err != nil || a.Zone() != "" {
		return fmt.Errorf("DNS server %q is not an IP address", s)
	}
	return nil
}

// NormalizeSSHKey parses an authorized_keys line and returns it as
// "type base64" without options or comment.
func NormalizeSSHKey(line string) (string, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", fmt.Errorf("invalid SSH public key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key))), nil
}

// Quote renders s as a RouterOS string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}

var tmpl = template.Must(template.New("autorun").Delims("[[", "]]").Funcs(template.FuncMap{
	"quote": Quote,
	"join":  strings.Join,
}).Parse(scriptTemplate))

// Render validates s and returns the script text.
func Render(s Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.Interface == "" {
		s.Interface = DefaultInterface
	}
	if s.SSHKey != "" {
		s.SSHKey, _ = NormalizeSSHKey(s.SSHKey)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}
