package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terabiome/firstboot/pkg/executor"
)

// UFW configures the host firewall.
type UFW struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewUFW(exec executor.Executor, logger *slog.Logger) *UFW {
	return &UFW{
		exec:   exec,
		logger: logger.With(slog.String("service", "ufw")),
	}
}

// AllowSSH opens the SSH port, rate-limited when limit is set so
// brute-force attempts get throttled.
func (u *UFW) AllowSSH(ctx context.Context, limit bool) error {
	action := "allow"
	if limit {
		action = "limit"
	}

	u.logger.Info("configuring SSH firewall rule", slog.String("action", action))

	result, err := executor.RunAndCapture(ctx, u.exec, "ufw", action, "ssh")
	if err != nil {
		return fmt.Errorf("ufw %s ssh failed: %w\nstderr: %s", action, err, result.Stderr)
	}
	return nil
}

func (u *UFW) Enable(ctx context.Context) error {
	u.logger.Info("enabling firewall")

	result, err := executor.RunAndCapture(ctx, u.exec, "ufw", "--force", "enable")
	if err != nil {
		return fmt.Errorf("ufw enable failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}
