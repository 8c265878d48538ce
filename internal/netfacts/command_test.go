package netfacts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	commands  []string
	responses map[string]string
}

func (f *fakeExec) Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, command string, args ...string) (int, error) {
	cmd := command + " " + strings.Join(args, " ")
	f.commands = append(f.commands, cmd)

	if out, ok := f.responses[cmd]; ok {
		stdout.Write([]byte(out))
		return 0, nil
	}
	return 2, fmt.Errorf("command exited with code 2")
}

func (f *fakeExec) Name() string { return "fake" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCommandExternalIPv4(t *testing.T) {
	exec := &fakeExec{
		responses: map[string]string{
			"ip -j -4 route get 8.8.8.8": `[{"dst":"8.8.8.8","gateway":"198.51.100.1","dev":"eth0","prefsrc":"203.0.113.7","flags":[]}]`,
		},
	}
	source := NewCommand(exec, 0, discardLogger())

	ipv4, err := source.ExternalIPv4(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ipv4)
}

func TestCommandExternalIPv6(t *testing.T) {
	exec := &fakeExec{
		responses: map[string]string{
			"ip -j -6 route get 2001:4860:4860::8888": `[{"dst":"2001:4860:4860::8888","gateway":"fe80::1","dev":"eth0","prefsrc":"2001:db8::7","flags":[]}]`,
		},
	}
	source := NewCommand(exec, 0, discardLogger())

	ipv6, err := source.ExternalIPv6(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::7", ipv6)
}

func TestCommandExternalIPv6EmptyWhenNoRoute(t *testing.T) {
	// No canned response, so the route lookup fails like it does on a
	// host without IPv6 connectivity.
	source := NewCommand(&fakeExec{}, 0, discardLogger())

	ipv6, err := source.ExternalIPv6(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ipv6)
}

func TestCommandWaitGlobalIPv6Ready(t *testing.T) {
	exec := &fakeExec{
		responses: map[string]string{
			"ip -j -6 addr show scope global -tentative": `[{"ifname":"eth0","addr_info":[{"local":"2001:db8::7","scope":"global"}]}]`,
		},
	}
	source := NewCommand(exec, 0, discardLogger())

	require.NoError(t, source.WaitGlobalIPv6(context.Background()))
}

func TestCommandWaitGlobalIPv6Timeout(t *testing.T) {
	exec := &fakeExec{
		responses: map[string]string{
			"ip -j -6 addr show scope global -tentative": `[]`,
		},
	}
	source := NewCommand(exec, 50*time.Millisecond, discardLogger())

	start := time.Now()
	err := source.WaitGlobalIPv6(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), pollInterval, "timeout must cut the poll short")
}

func TestCommandWaitHonorsCancellation(t *testing.T) {
	exec := &fakeExec{
		responses: map[string]string{
			"ip -j -6 addr show scope global -tentative": `[]`,
		},
	}
	// Unbounded wait, canceled externally.
	source := NewCommand(exec, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := source.WaitGlobalIPv6(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
