package bootstrap

import "context"

// Capability interfaces over the host tools the pipeline drives. The real
// implementations live in internal/system; tests substitute in-memory
// fakes so ordering and fallback logic run without root privileges.

type UserManager interface {
	CreateUser(ctx context.Context, name, gecos string, groups []string) error
}

type KeyImporter interface {
	ImportKeys(ctx context.Context, user, account string) error
	LockRootPassword(ctx context.Context) error
}

type HostConfigurer interface {
	SetHostname(ctx context.Context, short string) error
	UpdateHosts(ctx context.Context, ipv4, qualified, short string) error
	CustomizeIssue(ctx context.Context, ipv4, ipv6 string) error
}

type PackageManager interface {
	ForceIPv4(ctx context.Context) error
	Update(ctx context.Context) error
	DistUpgrade(ctx context.Context) error
	Install(ctx context.Context, packages ...string) error
}

type BootLoader interface {
	Install(ctx context.Context) error
	UpdateConfig(ctx context.Context) error
}

type FirewallManager interface {
	AllowSSH(ctx context.Context, limit bool) error
	Enable(ctx context.Context) error
}
