package starter

import (
	"sync"
	"syscall"
	"testing"

	"github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine"
)

// engine.Common's PostStartHost/CleanupHost are both no-ops, which makes
// it a convenient stand-in for exercising the trigger/ack protocol
// between notifyHook and PostStartHost/CleanupHost over a real
// socketpair, without needing a cgo-backed starterConfig.Config.

func TestNotifyHookPostStartRoundTrip(t *testing.T) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair failed: %s", err)
	}

	e := &engine.Engine{Operations: &engine.Common{}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		PostStartHost(fds[0], e)
	}()

	notifyHook(fds[1], "post-start")
	wg.Wait()
}

func TestNotifyHookCleanupRoundTrip(t *testing.T) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair failed: %s", err)
	}

	e := &engine.Engine{Operations: &engine.Common{}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		CleanupHost(fds[0], e)
	}()

	notifyHook(fds[1], "cleanup")
	wg.Wait()
}
