// Package netfacts derives the externally visible addresses of the host.
// The external IPv4/IPv6 addresses are the source addresses the kernel
// picks for a route to a well-known public destination; IPv6 is only read
// after at least one non-tentative global-scope address has appeared.
package netfacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const (
	// Well-known public anycast resolvers used for the route lookup.
	ProbeIPv4 = "8.8.8.8"
	ProbeIPv6 = "2001:4860:4860::8888"

	pollInterval = 2 * time.Second
)

var errNoGlobalIPv6 = errors.New("no non-tentative global IPv6 address yet")

// Facts are the derived runtime facts, computed once before any
// destructive step runs.
type Facts struct {
	ExternalIPv4 string `json:"external_ipv4"`
	ExternalIPv6 string `json:"external_ipv6"`
	FQDN         string `json:"fqdn"`
}

// Source derives external addresses for the host being bootstrapped.
type Source interface {
	// ExternalIPv4 returns the source address for a route to a public
	// IPv4 destination.
	ExternalIPv4(ctx context.Context) (string, error)

	// WaitGlobalIPv6 blocks until a non-tentative global-scope IPv6
	// address exists on any interface. A zero timeout means wait
	// forever; the wait still honors context cancellation.
	WaitGlobalIPv6(ctx context.Context) error

	// ExternalIPv6 returns the source address for a route to a public
	// IPv6 destination, or empty when the host has no IPv6 route.
	ExternalIPv6(ctx context.Context) (string, error)
}

// Netlink derives facts from the local kernel via rtnetlink.
type Netlink struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewNetlink(ipv6WaitTimeout time.Duration, logger *slog.Logger) *Netlink {
	return &Netlink{
		timeout: ipv6WaitTimeout,
		logger:  logger.With(slog.String("facts", "netlink")),
	}
}

func (n *Netlink) ExternalIPv4(ctx context.Context) (string, error) {
	routes, err := netlink.RouteGet(net.ParseIP(ProbeIPv4))
	if err != nil {
		return "", fmt.Errorf("route lookup for %s failed: %w", ProbeIPv4, err)
	}
	for _, route := range routes {
		if route.Src != nil {
			return route.Src.String(), nil
		}
	}
	return "", fmt.Errorf("no source address in route to %s", ProbeIPv4)
}

func (n *Netlink) WaitGlobalIPv6(ctx context.Context) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(pollInterval), ctx)

	return backoff.RetryNotify(func() error {
		ready, err := hasGlobalIPv6()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ready {
			return errNoGlobalIPv6
		}
		return nil
	}, bo, func(err error, d time.Duration) {
		n.logger.Debug("waiting for global IPv6 address",
			slog.String("retry_in", d.String()),
		)
	})
}

func (n *Netlink) ExternalIPv6(ctx context.Context) (string, error) {
	routes, err := netlink.RouteGet(net.ParseIP(ProbeIPv6))
	if err != nil {
		// No IPv6 route at all; the address stays empty.
		n.logger.Debug("no IPv6 route", slog.String("error", err.Error()))
		return "", nil
	}
	for _, route := range routes {
		if route.Src != nil {
			return route.Src.String(), nil
		}
	}
	return "", nil
}

// hasGlobalIPv6 reports whether any interface carries a usable
// (non-tentative, global scope) IPv6 address.
func hasGlobalIPv6() (bool, error) {
	addrs, err := netlink.AddrList(nil, netlink.FAMILY_V6)
	if err != nil {
		return false, fmt.Errorf("failed to list IPv6 addresses: %w", err)
	}

	for _, addr := range addrs {
		if addr.Scope != unix.RT_SCOPE_UNIVERSE {
			continue
		}
		if addr.Flags&unix.IFA_F_TENTATIVE != 0 {
			continue
		}
		return true, nil
	}
	return false, nil
}
