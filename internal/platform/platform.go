// Package platform reads the provider-injected environment describing the
// provisioning target. The values are opaque to the bootstrap pipeline and
// are only ever logged; nothing here drives control flow.
package platform

import (
	"log/slog"
	"os"
)

type Metadata struct {
	InstanceID  string
	ConsoleUser string
	MemorySize  string
	Region      string
}

func Read() Metadata {
	return Metadata{
		InstanceID:  os.Getenv("INSTANCE_ID"),
		ConsoleUser: os.Getenv("CONSOLE_USER"),
		MemorySize:  os.Getenv("MEMORY_SIZE"),
		Region:      os.Getenv("REGION"),
	}
}

func (m Metadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("instance_id", m.InstanceID),
		slog.String("console_user", m.ConsoleUser),
		slog.String("memory_size", m.MemorySize),
		slog.String("region", m.Region),
	)
}
