package netfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/terabiome/firstboot/pkg/executor"
)

// Command derives facts by running iproute2 with JSON output through an
// executor. Used for remote bootstrap, where the local rtnetlink socket
// cannot see the target host.
type Command struct {
	exec    executor.Executor
	timeout time.Duration
	logger  *slog.Logger
}

func NewCommand(exec executor.Executor, ipv6WaitTimeout time.Duration, logger *slog.Logger) *Command {
	return &Command{
		exec:    exec,
		timeout: ipv6WaitTimeout,
		logger:  logger.With(slog.String("facts", "command")),
	}
}

type ipRoute struct {
	PrefSrc string `json:"prefsrc"`
}

type ipAddress struct {
	IfName   string `json:"ifname"`
	AddrInfo []struct {
		Local string `json:"local"`
		Scope string `json:"scope"`
	} `json:"addr_info"`
}

func (c *Command) ExternalIPv4(ctx context.Context) (string, error) {
	return c.routeSource(ctx, "-4", ProbeIPv4)
}

func (c *Command) WaitGlobalIPv6(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(pollInterval), ctx)

	return backoff.RetryNotify(func() error {
		ready, err := c.hasGlobalIPv6(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ready {
			return errNoGlobalIPv6
		}
		return nil
	}, bo, func(err error, d time.Duration) {
		c.logger.Debug("waiting for global IPv6 address",
			slog.String("retry_in", d.String()),
		)
	})
}

func (c *Command) ExternalIPv6(ctx context.Context) (string, error) {
	src, err := c.routeSource(ctx, "-6", ProbeIPv6)
	if err != nil {
		c.logger.Debug("no IPv6 route", slog.String("error", err.Error()))
		return "", nil
	}
	return src, nil
}

func (c *Command) routeSource(ctx context.Context, family, dest string) (string, error) {
	result, err := executor.RunAndCapture(ctx, c.exec, "ip", "-j", family, "route", "get", dest)
	if err != nil {
		return "", fmt.Errorf("route lookup for %s failed: %w\nstderr: %s", dest, err, result.Stderr)
	}

	var routes []ipRoute
	if err := json.Unmarshal([]byte(result.Stdout), &routes); err != nil {
		return "", fmt.Errorf("failed to parse route lookup output: %w", err)
	}

	for _, route := range routes {
		if route.PrefSrc != "" {
			return route.PrefSrc, nil
		}
	}
	return "", fmt.Errorf("no source address in route to %s", dest)
}

func (c *Command) hasGlobalIPv6(ctx context.Context) (bool, error) {
	// -tentative excludes addresses still in duplicate address detection.
	result, err := executor.RunAndCapture(ctx, c.exec,
		"ip", "-j", "-6", "addr", "show", "scope", "global", "-tentative")
	if err != nil {
		return false, fmt.Errorf("failed to list IPv6 addresses: %w\nstderr: %s", err, result.Stderr)
	}

	var links []ipAddress
	if err := json.Unmarshal([]byte(result.Stdout), &links); err != nil {
		return false, fmt.Errorf("failed to parse address list output: %w", err)
	}

	for _, link := range links {
		for _, addr := range link.AddrInfo {
			if addr.Local != "" {
				return true, nil
			}
		}
	}
	return false, nil
}

// DumpNetworkState logs the interface and routing state of the target
// host. Only called in debug mode, before the pipeline starts, so a
// stalled IPv6 wait can be diagnosed from console output.
func DumpNetworkState(ctx context.Context, exec executor.Executor, logger *slog.Logger) {
	for _, args := range [][]string{
		{"addr", "show"},
		{"route", "show"},
		{"-6", "route", "show"},
	} {
		result, err := executor.RunAndCapture(ctx, exec, "ip", args...)
		if err != nil {
			logger.Warn("failed to dump network state",
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Debug("network state",
			slog.Any("ip_args", args),
			slog.String("output", result.Stdout),
		)
	}
}
