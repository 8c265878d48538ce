// Package system wraps the host tools the bootstrap pipeline drives:
// user management, SSH key import, hostname and banner files, apt, grub,
// ufw and power control. Everything runs through an executor so the same
// implementations work locally and over SSH, and so tests can substitute
// fakes for the pipeline logic.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terabiome/firstboot/pkg/executor"
	"github.com/terabiome/firstboot/pkg/executor/fileops"
)

const sudoersDir = "/etc/sudoers.d"

// Users creates unprivileged administrative accounts.
type Users struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewUsers(exec executor.Executor, logger *slog.Logger) *Users {
	return &Users{
		exec:   exec,
		logger: logger.With(slog.String("service", "users")),
	}
}

// CreateUser adds a user with password login disabled, puts it in the
// given groups, and grants it passwordless sudo via a sudoers fragment.
func (u *Users) CreateUser(ctx context.Context, name, gecos string, groups []string) error {
	u.logger.Info("creating user",
		slog.String("user", name),
		slog.Any("groups", groups),
	)

	result, err := executor.RunAndCapture(ctx, u.exec,
		"adduser", "--disabled-password", "--gecos", gecos, name)
	if err != nil {
		return fmt.Errorf("adduser %s failed: %w\nstderr: %s", name, err, result.Stderr)
	}

	if len(groups) > 0 {
		result, err = executor.RunAndCapture(ctx, u.exec,
			"usermod", "-aG", strings.Join(groups, ","), name)
		if err != nil {
			return fmt.Errorf("usermod %s failed: %w\nstderr: %s", name, err, result.Stderr)
		}
	}

	sudoersPath := fmt.Sprintf("%s/90-%s", sudoersDir, name)
	fragment := fmt.Sprintf("%s ALL=(ALL) NOPASSWD:ALL\n", name)
	if err := fileops.WriteFile(ctx, u.exec, sudoersPath, fragment, "0440"); err != nil {
		return fmt.Errorf("failed to write sudoers fragment: %w", err)
	}

	u.logger.Info("user created", slog.String("user", name))
	return nil
}
