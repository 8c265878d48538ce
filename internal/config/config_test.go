package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadClean(t)

	assert.Equal(t, "ubuntu", cfg.Hostname)
	assert.Empty(t, cfg.Domain)
	assert.Equal(t, "ubuntu", cfg.Username)
	assert.Empty(t, cfg.Gecos)
	assert.Contains(t, cfg.Groups, "sudo")
	assert.Contains(t, cfg.Groups, "adm")
	assert.Empty(t, cfg.LaunchpadAccount)
	assert.Equal(t, []string{"haveged"}, cfg.ExtraPackages)
	assert.Equal(t, DefaultKernelPackage, cfg.KernelPackage)
	assert.True(t, cfg.Reboot)
	assert.True(t, cfg.ZFS)
	assert.True(t, cfg.ConfigureFirewall)
	assert.True(t, cfg.LimitSSH)
	assert.True(t, cfg.CustomizeIssue)
	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.IPv6WaitTimeout, "the IPv6 wait is unbounded by default")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FIRSTBOOT_HOSTNAME", "web1")
	t.Setenv("FIRSTBOOT_DOMAIN", "example.com")
	t.Setenv("FIRSTBOOT_USERNAME", "")
	t.Setenv("FIRSTBOOT_ZFS", "false")
	t.Setenv("FIRSTBOOT_REBOOT", "false")
	t.Setenv("FIRSTBOOT_GROUPS", "adm, sudo,lxd")
	t.Setenv("FIRSTBOOT_IPV6_WAIT_TIMEOUT", "2m")

	cfg := loadClean(t)

	assert.Equal(t, "web1", cfg.Hostname)
	assert.Equal(t, "example.com", cfg.Domain)
	assert.Empty(t, cfg.Username)
	assert.False(t, cfg.ZFS)
	assert.False(t, cfg.Reboot)
	assert.Equal(t, []string{"adm", "sudo", "lxd"}, cfg.Groups)
	assert.Equal(t, 2*time.Minute, cfg.IPv6WaitTimeout)
}

func TestFQDN(t *testing.T) {
	cfg := &Config{Hostname: "web1", Domain: "example.com"}
	assert.Equal(t, "web1.example.com", cfg.FQDN())
	assert.Equal(t, "web1.example.com", cfg.QualifiedHostname())

	cfg.Domain = ""
	assert.Empty(t, cfg.FQDN())
	assert.Equal(t, "web1", cfg.QualifiedHostname())
}

func TestInstallPackages(t *testing.T) {
	cfg := &Config{
		KernelPackage: "linux-generic-hwe-24.04",
		ZFS:           true,
		ExtraPackages: []string{"htop"},
	}
	assert.Equal(t, []string{"linux-generic-hwe-24.04", ZFSPackage, "htop"}, cfg.InstallPackages())

	cfg.ZFS = false
	assert.Equal(t, []string{"linux-generic-hwe-24.04", "htop"}, cfg.InstallPackages())
}

func TestDebugForcesDebugLogLevel(t *testing.T) {
	t.Setenv("FIRSTBOOT_DEBUG", "true")

	cfg := loadClean(t)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsEmptyHostname(t *testing.T) {
	t.Setenv("FIRSTBOOT_HOSTNAME", "")
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hostname")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Setenv("FIRSTBOOT_LOG_LEVEL", "chatty")
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}
