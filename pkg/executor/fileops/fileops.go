package fileops

import (
	"context"
	"fmt"
	"strings"

	"github.com/terabiome/firstboot/pkg/executor"
)

// WriteFile writes content to path through the executor. Content is piped
// into tee so the same code path works locally and over SSH without shell
// quoting. Mode is applied afterwards with chmod.
func WriteFile(ctx context.Context, exec executor.Executor, path, content, mode string) error {
	result, err := executor.RunWithInput(ctx, exec, strings.NewReader(content), "tee", path)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w\nstderr: %s", path, err, result.Stderr)
	}

	result, err = executor.RunAndCapture(ctx, exec, "chmod", mode, path)
	if err != nil {
		return fmt.Errorf("failed to chmod %s: %w\nstderr: %s", path, err, result.Stderr)
	}
	return nil
}

func ReadFile(ctx context.Context, exec executor.Executor, path string) (string, error) {
	result, err := executor.RunAndCapture(ctx, exec, "cat", path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w\nstderr: %s", path, err, result.Stderr)
	}
	return result.Stdout, nil
}

func RemoveFile(ctx context.Context, exec executor.Executor, path string) error {
	result, err := executor.RunAndCapture(ctx, exec, "rm", "-f", path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w\nstderr: %s", path, err, result.Stderr)
	}
	return nil
}
