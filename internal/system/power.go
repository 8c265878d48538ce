package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terabiome/firstboot/pkg/executor"
)

// Power reboots the host into the freshly installed kernel.
type Power struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewPower(exec executor.Executor, logger *slog.Logger) *Power {
	return &Power{
		exec:   exec,
		logger: logger.With(slog.String("service", "power")),
	}
}

func (p *Power) Reboot(ctx context.Context) error {
	p.logger.Info("rebooting host")

	result, err := executor.RunAndCapture(ctx, p.exec, "shutdown", "-r", "now")
	if err != nil {
		return fmt.Errorf("reboot failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}
