package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/terabiome/firstboot/internal/bootstrap"
	"github.com/terabiome/firstboot/internal/config"
	"github.com/terabiome/firstboot/internal/netfacts"
	"github.com/terabiome/firstboot/internal/platform"
	"github.com/terabiome/firstboot/internal/system"
	"github.com/terabiome/firstboot/pkg/executor"
	"github.com/terabiome/firstboot/pkg/logger"
	"github.com/terabiome/firstboot/pkg/telemetry"
)

var targetFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Usage:   "Bootstrap a remote host over SSH (user@host) instead of the local host",
	},
	&cli.StringFlag{
		Name:  "ssh-key",
		Usage: "Private key for the SSH connection",
		Value: "~/.ssh/id_ed25519",
	},
	&cli.IntFlag{
		Name:  "ssh-port",
		Usage: "SSH port of the target host",
		Value: 22,
	},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("firstboot starting",
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("telemetry_enabled", cfg.TelemetryEnabled),
		slog.Any("platform", platform.Read()),
	)

	if cfg.TelemetryEnabled {
		tel, err := telemetry.Initialize("firstboot")
		if err != nil {
			log.Error("failed to initialize telemetry", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	app := &cli.App{
		Name:                 "firstboot",
		Usage:                "One-shot bootstrap of a freshly imaged server",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Execute the full bootstrap pipeline",
				Flags: targetFlags,
				Action: func(cliCtx *cli.Context) error {
					return runBootstrap(ctx, cfg, log, cliCtx)
				},
			},
			{
				Name:  "facts",
				Usage: "Derive and print external addresses without side effects",
				Flags: targetFlags,
				Action: func(cliCtx *cli.Context) error {
					return runFacts(ctx, cfg, log, cliCtx)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildExecutor returns the executor for the selected target: the local
// shell by default, or an SSH connection when --target is given.
func buildExecutor(log *slog.Logger, cliCtx *cli.Context) (executor.Executor, func(), error) {
	target := cliCtx.String("target")
	if target == "" {
		return executor.NewLocal(log), func() {}, nil
	}

	user, host, ok := strings.Cut(target, "@")
	if !ok {
		return nil, nil, fmt.Errorf("invalid target %q, expected user@host", target)
	}

	sshExec, err := executor.NewSSH(executor.SSHConfig{
		Host:    host,
		Port:    cliCtx.Int("ssh-port"),
		User:    user,
		KeyPath: cliCtx.String("ssh-key"),
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create SSH executor: %w", err)
	}

	return sshExec, func() { sshExec.Close() }, nil
}

// buildFactSource picks the fact source matching the executor: the local
// rtnetlink socket can only describe the local host, so remote targets are
// inspected through iproute2.
func buildFactSource(cfg *config.Config, log *slog.Logger, exec executor.Executor, remote bool) netfacts.Source {
	if remote {
		return netfacts.NewCommand(exec, cfg.IPv6WaitTimeout, log)
	}
	return netfacts.NewNetlink(cfg.IPv6WaitTimeout, log)
}

func runBootstrap(ctx context.Context, cfg *config.Config, log *slog.Logger, cliCtx *cli.Context) error {
	exec, cleanup, err := buildExecutor(log, cliCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Debug {
		netfacts.DumpNetworkState(ctx, exec, log)
	}

	facts := buildFactSource(cfg, log, exec, cliCtx.String("target") != "")

	orch := bootstrap.NewOrchestrator(
		cfg,
		facts,
		system.NewUsers(exec, log),
		system.NewSSHKeys(exec, log),
		system.NewHost(exec, log),
		system.NewApt(exec, log),
		system.NewGrub(exec, cfg.BootDevice, log),
		system.NewUFW(exec, log),
		log,
	)

	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	if result.RebootRequested {
		return system.NewPower(exec, log).Reboot(ctx)
	}

	log.Info("bootstrap complete, reboot disabled")
	return nil
}

func runFacts(ctx context.Context, cfg *config.Config, log *slog.Logger, cliCtx *cli.Context) error {
	exec, cleanup, err := buildExecutor(log, cliCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Debug {
		netfacts.DumpNetworkState(ctx, exec, log)
	}

	source := buildFactSource(cfg, log, exec, cliCtx.String("target") != "")

	ipv4, err := source.ExternalIPv4(ctx)
	if err != nil {
		return fmt.Errorf("failed to derive external IPv4: %w", err)
	}

	var ipv6 string
	if err := source.WaitGlobalIPv6(ctx); err != nil {
		log.Warn("no global IPv6 address within wait bound", slog.String("error", err.Error()))
	} else if ipv6, err = source.ExternalIPv6(ctx); err != nil {
		log.Warn("failed to derive external IPv6", slog.String("error", err.Error()))
	}

	output, err := json.MarshalIndent(netfacts.Facts{
		ExternalIPv4: ipv4,
		ExternalIPv6: ipv6,
		FQDN:         cfg.FQDN(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal facts: %w", err)
	}

	fmt.Println(string(output))
	return nil
}
