// Package bootstrap runs the fixed provisioning pipeline that turns a
// freshly imaged host into a ready-to-use server. The pipeline executes
// exactly once per machine lifecycle; it makes no attempt to detect or
// reconcile prior runs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/terabiome/firstboot/internal/config"
	"github.com/terabiome/firstboot/internal/netfacts"
)

// Result is returned on a successful run. The reboot itself is left to the
// caller so the pipeline can be used as a library call without terminating
// the calling process.
type Result struct {
	RebootRequested bool
	Facts           netfacts.Facts
}

type Orchestrator struct {
	cfg      *config.Config
	facts    netfacts.Source
	users    UserManager
	keys     KeyImporter
	host     HostConfigurer
	packages PackageManager
	boot     BootLoader
	firewall FirewallManager
	logger   *slog.Logger

	stepDuration metric.Float64Histogram
}

func NewOrchestrator(
	cfg *config.Config,
	facts netfacts.Source,
	users UserManager,
	keys KeyImporter,
	host HostConfigurer,
	packages PackageManager,
	boot BootLoader,
	firewall FirewallManager,
	logger *slog.Logger,
) *Orchestrator {
	meter := otel.Meter("firstboot/bootstrap")

	stepDuration, _ := meter.Float64Histogram(
		"firstboot.step.duration",
		metric.WithDescription("Duration of bootstrap pipeline steps"),
		metric.WithUnit("s"),
	)

	return &Orchestrator{
		cfg:          cfg,
		facts:        facts,
		users:        users,
		keys:         keys,
		host:         host,
		packages:     packages,
		boot:         boot,
		firewall:     firewall,
		logger:       logger.With(slog.String("service", "bootstrap")),
		stepDuration: stepDuration,
	}
}

// Run executes the pipeline in its fixed order. Every step is fatal on
// error except SSH key import, which falls back to leaving password-based
// root login enabled.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	tracer := otel.Tracer("firstboot/bootstrap")
	ctx, span := tracer.Start(ctx, "Bootstrap")
	defer span.End()

	runID := uuid.New()
	log := o.logger.With(slog.String("run_id", runID.String()))
	span.SetAttributes(attribute.String("run.id", runID.String()))

	facts, err := o.deriveFacts(ctx, log)
	if err != nil {
		return Result{}, err
	}

	// Facts go to the console before anything destructive happens, so a
	// stalled or failed run can be diagnosed from the boot log.
	log.Info("derived facts",
		slog.String("external_ipv4", facts.ExternalIPv4),
		slog.String("external_ipv6", facts.ExternalIPv6),
		slog.String("fqdn", facts.FQDN),
	)

	if o.cfg.Username != "" {
		err := o.step(ctx, log, "create-user", func(ctx context.Context) error {
			return o.users.CreateUser(ctx, o.cfg.Username, o.cfg.Gecos, o.cfg.Groups)
		})
		if err != nil {
			return Result{}, err
		}
	} else {
		log.Info("no username configured, skipping user creation")
	}

	if err := o.importKeys(ctx, log); err != nil {
		return Result{}, err
	}

	err = o.step(ctx, log, "configure-hostname", func(ctx context.Context) error {
		if err := o.host.SetHostname(ctx, o.cfg.Hostname); err != nil {
			return err
		}
		return o.host.UpdateHosts(ctx, facts.ExternalIPv4, o.cfg.QualifiedHostname(), o.cfg.Hostname)
	})
	if err != nil {
		return Result{}, err
	}

	if o.cfg.CustomizeIssue {
		err := o.step(ctx, log, "customize-issue", func(ctx context.Context) error {
			return o.host.CustomizeIssue(ctx, facts.ExternalIPv4, facts.ExternalIPv6)
		})
		if err != nil {
			return Result{}, err
		}
	}

	err = o.step(ctx, log, "apt-force-ipv4", func(ctx context.Context) error {
		return o.packages.ForceIPv4(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	err = o.step(ctx, log, "install-boot-loader", func(ctx context.Context) error {
		if err := o.boot.Install(ctx); err != nil {
			return err
		}
		return o.boot.UpdateConfig(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	err = o.step(ctx, log, "upgrade-packages", func(ctx context.Context) error {
		if err := o.packages.Update(ctx); err != nil {
			return err
		}
		return o.packages.DistUpgrade(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	err = o.step(ctx, log, "install-packages", func(ctx context.Context) error {
		return o.packages.Install(ctx, o.cfg.InstallPackages()...)
	})
	if err != nil {
		return Result{}, err
	}

	if o.cfg.ConfigureFirewall {
		err := o.step(ctx, log, "configure-firewall", func(ctx context.Context) error {
			if err := o.firewall.AllowSSH(ctx, o.cfg.LimitSSH); err != nil {
				return err
			}
			return o.firewall.Enable(ctx)
		})
		if err != nil {
			return Result{}, err
		}
	}

	log.Info("bootstrap pipeline complete", slog.Bool("reboot_requested", o.cfg.Reboot))

	return Result{
		RebootRequested: o.cfg.Reboot,
		Facts:           facts,
	}, nil
}

// deriveFacts computes the external addresses before any step runs. The
// IPv4 address is required; IPv6 stays empty when the host has none within
// the configured wait bound.
func (o *Orchestrator) deriveFacts(ctx context.Context, log *slog.Logger) (netfacts.Facts, error) {
	ipv4, err := o.facts.ExternalIPv4(ctx)
	if err != nil {
		return netfacts.Facts{}, fmt.Errorf("failed to derive external IPv4: %w", err)
	}

	var ipv6 string
	if err := o.facts.WaitGlobalIPv6(ctx); err != nil {
		if ctx.Err() != nil {
			return netfacts.Facts{}, fmt.Errorf("IPv6 wait canceled: %w", err)
		}
		log.Warn("no global IPv6 address within wait bound, continuing without IPv6",
			slog.String("error", err.Error()),
		)
	} else {
		ipv6, err = o.facts.ExternalIPv6(ctx)
		if err != nil {
			log.Warn("failed to derive external IPv6, continuing without it",
				slog.String("error", err.Error()),
			)
		}
	}

	return netfacts.Facts{
		ExternalIPv4: ipv4,
		ExternalIPv6: ipv6,
		FQDN:         o.cfg.FQDN(),
	}, nil
}

// importKeys is the single non-fatal step: when key import fails,
// password-based root login stays enabled as the access fallback. The root
// password is only locked after a successful import.
func (o *Orchestrator) importKeys(ctx context.Context, log *slog.Logger) error {
	if o.cfg.LaunchpadAccount == "" {
		log.Info("no key import source configured, password login remains enabled")
		return nil
	}

	keyUser := o.cfg.Username
	if keyUser == "" {
		keyUser = "root"
	}

	err := o.step(ctx, log, "import-ssh-keys", func(ctx context.Context) error {
		return o.keys.ImportKeys(ctx, keyUser, o.cfg.LaunchpadAccount)
	})
	if err != nil {
		log.Warn("SSH key import failed, password login remains enabled",
			slog.String("user", keyUser),
			slog.String("error", err.Error()),
		)
		return nil
	}

	return o.step(ctx, log, "lock-root-password", func(ctx context.Context) error {
		return o.keys.LockRootPassword(ctx)
	})
}

func (o *Orchestrator) step(ctx context.Context, log *slog.Logger, name string, fn func(context.Context) error) error {
	tracer := otel.Tracer("firstboot/bootstrap")
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	log.Info("step starting", slog.String("step", name))
	start := time.Now()

	err := fn(ctx)

	o.stepDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("step", name)),
	)

	if err != nil {
		log.Error("step failed",
			slog.String("step", name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("step %s failed: %w", name, err)
	}

	log.Info("step complete", slog.String("step", name))
	return nil
}
