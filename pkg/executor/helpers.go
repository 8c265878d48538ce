package executor

import (
	"bytes"
	"context"
	"io"
)

func RunAndCapture(ctx context.Context, exec Executor, command string, args ...string) (*Result, error) {
	return RunWithInput(ctx, exec, nil, command, args...)
}

func RunWithInput(ctx context.Context, exec Executor, stdin io.Reader, command string, args ...string) (*Result, error) {
	var outBuf, errBuf bytes.Buffer

	exitCode, err := exec.Execute(ctx, stdin, &outBuf, &errBuf, command, args...)

	return &Result{
		ExitCode: exitCode,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		Error:    err,
	}, err
}
