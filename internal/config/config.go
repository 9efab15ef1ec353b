package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the name of the application
	AppName = "chrinstaller"
	// EnvConfigPath names the config file when --config is not given
	EnvConfigPath = "CHRINSTALLER_CONFIG"
	// DefaultReleaseBase hosts {version}/chr-{version}.img.zip artifacts
	DefaultReleaseBase = "https://download.mikrotik.com/routeros"
	// DefaultFeedBase serves the NEWEST* channel files
	DefaultFeedBase = "https://upgrade.mikrotik.com/routeros"
	// DefaultDNS is used when the live system has no resolver configured
	DefaultDNS = "8.8.8.8"
	// AutorunPath is where the router OS looks for its first-boot script,
	// relative to the root of the writable partition.
	AutorunPath = "rw/autorun.scr"
)

// Network holds the first-boot addressing handed to the router.
type Network struct {
	// Address is the router's address in CIDR form, e.g. "192.168.88.2/24".
	Address string   `yaml:"address" default:"" validate:"omitempty,hostcidr4"`
	Gateway string   `yaml:"gateway" default:"" validate:"omitempty,ipv4"`
	DNS     []string `yaml:"dns" default:"[]" validate:"dive,ip"`
}

// Config holds the installer's settings. Values come from struct defaults,
// then the optional YAML file, then command line flags.
type Config struct {
	// Language selects the message catalog. Detected from the locale when empty.
	Language string `yaml:"language" default:"" validate:"omitempty,oneof=en zh"`
	// Unattended accepts detected defaults instead of prompting.
	Unattended bool `yaml:"unattended" default:"false"`
	// Version pins a release such as "7.19.6". Channel is ignored when set.
	Version string `yaml:"version" default:""`
	Channel string `yaml:"channel" default:"" validate:"omitempty,oneof=v7-stable v7-testing v6-long-term v6-stable"`
	Device  string `yaml:"device" default:"" validate:"omitempty,startswith=/dev/"`
	// Password for the admin user. A random one is generated when empty.
	Password string `yaml:"password" default:""`
	// SSHKeyFile is an authorized_keys style public key installed for admin.
	SSHKeyFile string `yaml:"ssh_key_file" default:"" validate:"omitempty,file"`

	Network Network `yaml:"network"`

	ReleaseBase string `yaml:"release_base" default:"https://download.mikrotik.com/routeros" validate:"required,url"`
	FeedBase    string `yaml:"feed_base" default:"https://upgrade.mikrotik.com/routeros" validate:"required,url"`

	// WorkDir is the parent of the per-run directory, os.TempDir() when empty.
	WorkDir     string   `yaml:"work_dir" default:""`
	Downloaders []string `yaml:"downloaders" default:"[\"curl\",\"wget\"]" validate:"min=1,dive,oneof=curl wget http"`
	Extractors  []string `yaml:"extractors" default:"[\"unzip\",\"gunzip\"]" validate:"min=1,dive,oneof=unzip gunzip native"`

	// ConfirmDefault is the answer used when the write confirmation is left empty.
	ConfirmDefault bool `yaml:"confirm_default" default:"false"`
	Verbose        bool `yaml:"verbose" default:"false"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// cidrv4 only accepts network addresses; a router address keeps its host bits.
	if err := v.RegisterValidation("hostcidr4", isHostCIDR4); err != nil {
		panic(err)
	}
	return v
}

// isHostCIDR4 accepts an IPv4 address with a prefix length, e.g. "192.168.1.50/24".
func isHostCIDR4(fl validator.FieldLevel) bool {
	p, err := netip.ParsePrefix(fl.Field().String())
	return err == nil && p.Addr().Is4()
}

// New returns a Config populated with defaults only.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return cfg, nil
}

// Load applies defaults and then the YAML file at path, if any, and
// validates the result. An empty path yields the defaults.
var Load = func(path string) (*Config, error) {
	cfg, err := New()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath returns the config file to load: the flag value, else the
// CHRINSTALLER_CONFIG environment variable.
func ResolvePath(flagValue string, getenv func(string) string) string {
	if flagValue != "" {
		return flagValue
	}
	return getenv(EnvConfigPath)
}

// Validate checks field formats. It is called again after flags are applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// GetWorkRoot returns the directory under which per-run directories are created.
func (c *Config) GetWorkRoot() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return os.TempDir()
}
