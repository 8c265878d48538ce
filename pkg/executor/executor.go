package executor

import (
	"context"
	"io"
)

// Executor runs a host command. stdin may be nil when the command reads no
// input. Implementations exist for the local host and for a remote host
// reached over SSH, so the same provisioning code can drive either.
type Executor interface {
	Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, command string, args ...string) (exitCode int, err error)
	Name() string
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error
}
