package system

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/terabiome/firstboot/pkg/executor"
	"github.com/terabiome/firstboot/pkg/executor/fileops"
)

const (
	hostnamePath = "/etc/hostname"
	hostsPath    = "/etc/hosts"
	issuePath    = "/etc/issue"

	// The loopback hostname mapping cloud images ship with. It has to go
	// before the external mapping is added, or the FQDN resolves to
	// loopback.
	loopbackHostAddr = "127.0.1.1"
)

// Host manages hostname, the hosts file and the login banner.
type Host struct {
	exec   executor.Executor
	logger *slog.Logger
}

func NewHost(exec executor.Executor, logger *slog.Logger) *Host {
	return &Host{
		exec:   exec,
		logger: logger.With(slog.String("service", "host")),
	}
}

// SetHostname writes the short hostname to /etc/hostname and applies it to
// the running kernel.
func (h *Host) SetHostname(ctx context.Context, short string) error {
	h.logger.Info("setting hostname", slog.String("hostname", short))

	if err := fileops.WriteFile(ctx, h.exec, hostnamePath, short+"\n", "0644"); err != nil {
		return err
	}

	result, err := executor.RunAndCapture(ctx, h.exec, "hostname", short)
	if err != nil {
		return fmt.Errorf("failed to apply hostname: %w\nstderr: %s", err, result.Stderr)
	}
	return nil
}

// UpdateHosts removes the loopback hostname mapping and appends a mapping
// of the external IPv4 address to the qualified and short names.
func (h *Host) UpdateHosts(ctx context.Context, ipv4, qualified, short string) error {
	h.logger.Info("updating hosts file",
		slog.String("ipv4", ipv4),
		slog.String("qualified", qualified),
	)

	current, err := fileops.ReadFile(ctx, h.exec, hostsPath)
	if err != nil {
		return err
	}

	return fileops.WriteFile(ctx, h.exec, hostsPath, renderHosts(current, ipv4, qualified, short), "0644")
}

// CustomizeIssue appends the external addresses to the login banner, right
// after the distribution identification line.
func (h *Host) CustomizeIssue(ctx context.Context, ipv4, ipv6 string) error {
	h.logger.Info("customizing issue banner")

	current, err := fileops.ReadFile(ctx, h.exec, issuePath)
	if err != nil {
		return err
	}

	return fileops.WriteFile(ctx, h.exec, issuePath, renderIssue(current, ipv4, ipv6), "0644")
}

func renderHosts(current, ipv4, qualified, short string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(current, "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == loopbackHostAddr {
			continue
		}
		lines = append(lines, line)
	}

	lines = append(lines, fmt.Sprintf("%s\t%s %s", ipv4, qualified, short))
	return strings.Join(lines, "\n") + "\n"
}

func renderIssue(current, ipv4, ipv6 string) string {
	lines := strings.Split(strings.TrimSuffix(current, "\n"), "\n")

	inserted := []string{lines[0], "IPv4: " + ipv4}
	if ipv6 != "" {
		inserted = append(inserted, "IPv6: "+ipv6)
	}
	inserted = append(inserted, lines[1:]...)

	return strings.Join(inserted, "\n") + "\n"
}
