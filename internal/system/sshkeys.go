package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terabiome/firstboot/pkg/executor"
)

// SSHKeys imports public keys from Launchpad and locks password access
// to the superuser once key-based login is in place.
type SSHKeys struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewSSHKeys(exec executor.Executor, logger *slog.Logger) *SSHKeys {
	return &SSHKeys{
		exec:   exec,
		logger: logger.With(slog.String("service", "sshkeys")),
	}
}

// ImportKeys pulls the public keys of the given Launchpad account into the
// authorized_keys of user. For non-root users ssh-import-id runs as the
// target user so the keys land in their home directory.
func (s *SSHKeys) ImportKeys(ctx context.Context, user, account string) error {
	s.logger.Info("importing SSH keys",
		slog.String("user", user),
		slog.String("launchpad_account", account),
	)

	source := "lp:" + account

	var result *executor.Result
	var err error
	if user == "" || user == "root" {
		result, err = executor.RunAndCapture(ctx, s.exec, "ssh-import-id", source)
	} else {
		result, err = executor.RunAndCapture(ctx, s.exec, "sudo", "-u", user, "-H", "ssh-import-id", source)
	}
	if err != nil {
		return fmt.Errorf("ssh-import-id %s failed: %w\nstderr: %s", source, err, result.Stderr)
	}

	s.logger.Info("SSH keys imported", slog.String("user", user))
	return nil
}

// LockRootPassword disables direct password-based root login.
func (s *SSHKeys) LockRootPassword(ctx context.Context) error {
	result, err := executor.RunAndCapture(ctx, s.exec, "passwd", "-l", "root")
	if err != nil {
		return fmt.Errorf("failed to lock root password: %w\nstderr: %s", err, result.Stderr)
	}

	s.logger.Info("root password locked")
	return nil
}
