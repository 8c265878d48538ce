package system

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terabiome/firstboot/pkg/executor"
)

// Grub installs the boot loader so a newly installed kernel is bootable
// without the hypervisor's own kernel selection.
type Grub struct {
	exec executor.Executor
	// device overrides discovery when non-empty.
	device string
	logger *slog.Logger
}

func NewGrub(exec executor.Executor, device string, logger *slog.Logger) *Grub {
	return &Grub{
		exec:   exec,
		device: device,
		logger: logger.With(slog.String("service", "grub")),
	}
}

func (g *Grub) Install(ctx context.Context) error {
	device := g.device
	if device == "" {
		var err error
		device, err = g.rootDisk(ctx)
		if err != nil {
			return err
		}
	}

	g.logger.Info("installing boot loader", slog.String("device", device))

	result, err := executor.RunAndCapture(ctx, g.exec, "grub-install", device)
	if err != nil {
		return fmt.Errorf("grub-install %s failed: %w\nstderr: %s", device, err, result.Stderr)
	}
	return nil
}

func (g *Grub) UpdateConfig(ctx context.Context) error {
	g.logger.Info("regenerating boot loader configuration")

	result, err := executor.RunAndCapture(ctx, g.exec, "update-grub")
	if err != nil {
		return fmt.Errorf("update-grub failed: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}

// rootDisk finds the disk holding the root filesystem.
func (g *Grub) rootDisk(ctx context.Context) (string, error) {
	result, err := executor.RunAndCapture(ctx, g.exec, "findmnt", "-n", "-o", "SOURCE", "/")
	if err != nil {
		return "", fmt.Errorf("failed to find root device: %w\nstderr: %s", err, result.Stderr)
	}

	source := strings.TrimSpace(result.Stdout)
	if source == "" {
		return "", fmt.Errorf("findmnt returned no root device")
	}

	return diskOf(source), nil
}

// diskOf strips the partition suffix from a block device path:
// /dev/vda1 -> /dev/vda, /dev/nvme0n1p2 -> /dev/nvme0n1.
func diskOf(device string) string {
	trimmed := strings.TrimRight(device, "0123456789")
	if trimmed == device {
		return device
	}

	// nvme0n1p2 and mmcblk0p1 keep their trailing digits; only the pN
	// partition suffix goes.
	if strings.HasSuffix(trimmed, "p") && strings.ContainsAny(trimmed[:len(trimmed)-1], "0123456789") {
		return trimmed[:len(trimmed)-1]
	}
	return trimmed
}
