// Package starter implements the Go-side half of each bootstrap role: the
// C constructor in cmd/starter/c/bootstrap.c creates and enters namespaces,
// forks the four role processes and sets goexecute, then returns control to
// main.go, which calls into this package based on the role it was left in.
package starter

import (
	"context"
	"sync"

	"github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine"
	starterConfig "github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine/config/starter"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

// Stage1 parses the engine's configuration and fills in the shared
// starter config with the namespace, capability and privilege
// requirements the bootstrap constructor should honor on its next fork.
func Stage1(cfg *starterConfig.Config, e *engine.Engine) {
	sylog.Verbosef("Entering stage 1")
	if err := e.RunStage1(context.Background(), cfg); err != nil {
		sylog.Fatalf("While running stage1: %s", err)
	}
}

// RPCServer runs privileged setup (root filesystem preparation, mounts)
// from inside the container's mount namespace, on the RPC server process
// forked by the bootstrap constructor.
func RPCServer(rpcSocket int, e *engine.Engine) {
	sylog.Verbosef("Entering RPC server")
	if err := e.CreateContainer(context.Background(), rpcSocket); err != nil {
		sylog.Fatalf("While creating container: %s", err)
	}
}

// Stage2 execs (or otherwise becomes) the container's requested process,
// running inside every namespace the engine asked for.
func Stage2(masterSocket int, e *engine.Engine) {
	sylog.Verbosef("Entering stage 2")
	if err := e.StartProcess(context.Background(), masterSocket); err != nil {
		sylog.Fatalf("While starting container process: %s", err)
	}
}

// Master monitors the container process from outside its namespaces, and
// runs the host-side post-start/cleanup hooks over their sockets. The
// hooks and the monitor all run in this same master process; the notify
// fds let Master trigger each hook and wait for its result without
// forking again.
func Master(cfg *starterConfig.Config, e *engine.Engine) {
	sylog.Verbosef("Entering master")

	postStartSocket := cfg.GetPostStartSocket()
	cleanupSocket := cfg.GetCleanupSocket()

	var wg sync.WaitGroup
	if postStartSocket >= 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			PostStartHost(postStartSocket, e)
		}()
	}
	if cleanupSocket >= 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			CleanupHost(cleanupSocket, e)
		}()
	}

	if notifyFd := cfg.GetPostStartNotifyFd(); notifyFd >= 0 {
		notifyHook(notifyFd, "post-start")
	}

	containerPid := cfg.GetContainerPid()
	if err := e.MonitorContainer(context.Background(), containerPid); err != nil {
		sylog.Fatalf("While monitoring container: %s", err)
	}

	if notifyFd := cfg.GetCleanupNotifyFd(); notifyFd >= 0 {
		notifyHook(notifyFd, "cleanup")
	}

	wg.Wait()
}

// notifyHook triggers a host hook and waits for its one-byte reply ('c'
// on success, 'f' on failure), logging socket errors; the reply byte
// itself is not inspected. A failing hook runs in this same process and
// exits it through sylog.Fatalf after writing 'f'.
func notifyHook(notifyFd int, name string) {
	conn, err := engine.DialSocket(notifyFd, "unix")
	if err != nil {
		sylog.Warningf("socket communication error with %s hook: %s", name, err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{'t'}); err != nil {
		sylog.Warningf("could not trigger %s hook: %s", name, err)
		return
	}

	result := make([]byte, 1)
	if _, err := conn.Read(result); err != nil {
		sylog.Warningf("while waiting for %s hook: %s", name, err)
	}
}
