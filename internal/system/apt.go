package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terabiome/firstboot/pkg/executor"
	"github.com/terabiome/firstboot/pkg/executor/fileops"
)

const forceIPv4Path = "/etc/apt/apt.conf.d/99force-ipv4"

// Apt drives the package manager non-interactively.
type Apt struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewApt(exec executor.Executor, logger *slog.Logger) *Apt {
	return &Apt{
		exec:   exec,
		logger: logger.With(slog.String("service", "apt")),
	}
}

// ForceIPv4 restricts apt to IPv4 transport. Some package mirrors have
// intermittent IPv6 connectivity from fresh cloud hosts.
func (a *Apt) ForceIPv4(ctx context.Context) error {
	a.logger.Info("forcing apt to IPv4")
	return fileops.WriteFile(ctx, a.exec, forceIPv4Path, "Acquire::ForceIPv4 \"true\";\n", "0644")
}

func (a *Apt) Update(ctx context.Context) error {
	a.logger.Info("refreshing package index")

	result, err := executor.RunAndCapture(ctx, a.exec, "apt-get", "-q", "update")
	if err != nil {
		return fmt.Errorf("apt-get update failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}

// DistUpgrade upgrades the distribution, keeping locally modified
// configuration files when packages ship new versions.
func (a *Apt) DistUpgrade(ctx context.Context) error {
	a.logger.Info("running distribution upgrade")

	args := a.aptGet("-o", "Dpkg::Options::=--force-confold", "dist-upgrade")
	result, err := executor.RunAndCapture(ctx, a.exec, args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("apt-get dist-upgrade failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}

func (a *Apt) Install(ctx context.Context, packages ...string) error {
	a.logger.Info("installing packages", slog.Any("packages", packages))

	args := append(a.aptGet("install"), packages...)
	result, err := executor.RunAndCapture(ctx, a.exec, args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("apt-get install failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}

// aptGet builds a non-interactive apt-get invocation. DEBIAN_FRONTEND is
// set through env(1) so it also applies on remote executors.
func (a *Apt) aptGet(args ...string) []string {
	base := []string{"env", "DEBIAN_FRONTEND=noninteractive", "apt-get", "-q", "-y"}
	return append(base, args...)
}
