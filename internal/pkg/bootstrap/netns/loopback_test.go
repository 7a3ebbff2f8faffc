package netns

import (
	"os"
	"testing"
)

// TestBringUpLoopback exercises the real netlink path, so it needs
// CAP_NET_ADMIN over the calling network namespace. Skipped in short mode
// and for non-root runs, same as the other privileged suites.
func TestBringUpLoopback(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}
	if os.Getuid() != 0 {
		t.Skip("bringing up an interface requires root")
	}

	if err := BringUpLoopback(); err != nil {
		t.Fatalf("BringUpLoopback failed: %s", err)
	}
}
