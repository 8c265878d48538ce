package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiskOf(t *testing.T) {
	cases := map[string]string{
		"/dev/vda1":      "/dev/vda",
		"/dev/sda2":      "/dev/sda",
		"/dev/vda":       "/dev/vda",
		"/dev/nvme0n1p2": "/dev/nvme0n1",
		"/dev/mmcblk0p1": "/dev/mmcblk0",
	}

	for device, want := range cases {
		assert.Equal(t, want, diskOf(device), "diskOf(%s)", device)
	}
}
