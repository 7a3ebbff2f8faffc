// Package netns brings up the loopback interface inside a network
// namespace. bootstrap.c does the same thing with a raw ioctl call
// (network_namespace_init, SIOCSIFFLAGS) because it must run inside the
// constructor before the Go runtime is safe to use; this package exists
// for everything that runs after that point, namely the CLI's
// standalone join/smoke-test path and tests.
package netns

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// BringUpLoopback sets the "lo" interface up in the caller's current
// network namespace. The caller is responsible for having already
// entered the target namespace (e.g. via runtime.LockOSThread plus
// setns).
func BringUpLoopback() error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("finding loopback interface: %w", err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("bringing up loopback interface: %w", err)
	}
	return nil
}
