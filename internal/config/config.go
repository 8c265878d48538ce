package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults match a stock Ubuntu cloud image bootstrap.
const (
	DefaultHostname      = "ubuntu"
	DefaultUsername      = "ubuntu"
	DefaultGroups        = "adm,audio,cdrom,dialout,dip,floppy,lxd,netdev,plugdev,sudo,video"
	DefaultExtraPackages = "haveged"
	DefaultKernelPackage = "linux-generic-hwe-24.04"

	// ZFSPackage is prepended to the install set when ZFS support is requested.
	ZFSPackage = "zfsutils-linux"
)

// Config is the immutable bootstrap configuration, built once at startup.
// Step logic receives it by value and never consults the environment again.
type Config struct {
	Hostname         string
	Domain           string
	Username         string
	Gecos            string
	Groups           []string
	LaunchpadAccount string
	ExtraPackages    []string
	KernelPackage    string

	Reboot            bool
	ZFS               bool
	ConfigureFirewall bool
	LimitSSH          bool
	CustomizeIssue    bool
	Debug             bool

	// BootDevice overrides root-disk discovery for the boot loader install.
	BootDevice string

	// IPv6WaitTimeout bounds the wait for a global IPv6 address.
	// Zero means wait forever, which matches the original behavior.
	IPv6WaitTimeout time.Duration

	LogLevel         string
	LogFormat        string
	TelemetryEnabled bool
}

func Load() (*Config, error) {
	viper.SetDefault("hostname", DefaultHostname)
	viper.SetDefault("domain", "")
	viper.SetDefault("username", DefaultUsername)
	viper.SetDefault("gecos", "")
	viper.SetDefault("groups", DefaultGroups)
	viper.SetDefault("launchpad_account", "")
	viper.SetDefault("extra_packages", DefaultExtraPackages)
	viper.SetDefault("kernel_package", DefaultKernelPackage)
	viper.SetDefault("reboot", true)
	viper.SetDefault("zfs", true)
	viper.SetDefault("configure_firewall", true)
	viper.SetDefault("limit_ssh", true)
	viper.SetDefault("customize_etc_issue", true)
	viper.SetDefault("debug", false)
	viper.SetDefault("boot_device", "")
	viper.SetDefault("ipv6_wait_timeout", time.Duration(0))
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("telemetry_enabled", false)

	viper.SetEnvPrefix("firstboot")
	// An explicitly empty variable is meaningful here: username="" means
	// skip user creation entirely.
	viper.AllowEmptyEnv(true)
	viper.AutomaticEnv()

	cfg := &Config{
		Hostname:          viper.GetString("hostname"),
		Domain:            viper.GetString("domain"),
		Username:          viper.GetString("username"),
		Gecos:             viper.GetString("gecos"),
		Groups:            splitList(viper.GetString("groups")),
		LaunchpadAccount:  viper.GetString("launchpad_account"),
		ExtraPackages:     splitList(viper.GetString("extra_packages")),
		KernelPackage:     viper.GetString("kernel_package"),
		Reboot:            viper.GetBool("reboot"),
		ZFS:               viper.GetBool("zfs"),
		ConfigureFirewall: viper.GetBool("configure_firewall"),
		LimitSSH:          viper.GetBool("limit_ssh"),
		CustomizeIssue:    viper.GetBool("customize_etc_issue"),
		Debug:             viper.GetBool("debug"),
		BootDevice:        viper.GetString("boot_device"),
		IPv6WaitTimeout:   viper.GetDuration("ipv6_wait_timeout"),
		LogLevel:          viper.GetString("log_level"),
		LogFormat:         viper.GetString("log_format"),
		TelemetryEnabled:  viper.GetBool("telemetry_enabled"),
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname must not be empty")
	}

	if c.KernelPackage == "" {
		return fmt.Errorf("kernel_package must not be empty")
	}

	if c.IPv6WaitTimeout < 0 {
		return fmt.Errorf("ipv6_wait_timeout must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	return nil
}

// FQDN returns hostname.domain, or empty when no domain is configured.
func (c *Config) FQDN() string {
	if c.Domain == "" {
		return ""
	}
	return c.Hostname + "." + c.Domain
}

// QualifiedHostname is the FQDN when a domain is set, otherwise the bare
// hostname. It is what the hosts-file mapping uses as the canonical name.
func (c *Config) QualifiedHostname() string {
	if fqdn := c.FQDN(); fqdn != "" {
		return fqdn
	}
	return c.Hostname
}

// InstallPackages is the full package set for the install step: the
// enablement kernel, the ZFS tooling when requested, then the extras.
func (c *Config) InstallPackages() []string {
	pkgs := []string{c.KernelPackage}
	if c.ZFS {
		pkgs = append(pkgs, ZFSPackage)
	}
	return append(pkgs, c.ExtraPackages...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
