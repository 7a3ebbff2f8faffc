package starter

import (
	"context"

	"github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

//nolint:dupl
func PostStartHost(postStartSocket int, e *engine.Engine) {
	sylog.Debugf("Entering PostStartHost")
	conn, err := engine.DialSocket(postStartSocket, "unix")
	if err != nil {
		sylog.Fatalf("socket communication error: %s\n", err)
	}
	defer conn.Close()

	ctx := context.Background()

	// wait for master to signal that the container process has started
	data := make([]byte, 1)
	if _, err := conn.Read(data); err != nil {
		sylog.Fatalf("While reading from post-start socket: %s", err)
	}

	if err := e.PostStartHost(ctx); err != nil {
		if _, err := conn.Write([]byte{'f'}); err != nil {
			sylog.Fatalf("Could not write to master: %s", err)
		}
		sylog.Fatalf("While running host post start tasks: %s", err)
	}

	if _, err := conn.Write([]byte{'c'}); err != nil {
		sylog.Fatalf("Could not write to master: %s", err)
	}
	sylog.Debugf("Exiting PostStartHost")
}

//nolint:dupl
func CleanupHost(cleanupSocket int, e *engine.Engine) {
	sylog.Debugf("Entering CleanupHost")
	conn, err := engine.DialSocket(cleanupSocket, "unix")
	if err != nil {
		sylog.Fatalf("socket communication error: %s\n", err)
	}
	defer conn.Close()

	ctx := context.Background()

	// wait for master to signal that the container process has exited
	data := make([]byte, 1)
	if _, err := conn.Read(data); err != nil {
		sylog.Fatalf("While reading from cleanup socket: %s", err)
	}

	if err := e.CleanupHost(ctx); err != nil {
		if _, err := conn.Write([]byte{'f'}); err != nil {
			sylog.Fatalf("Could not write to master: %s", err)
		}
		sylog.Fatalf("While running host cleanup tasks: %s", err)
	}

	if _, err := conn.Write([]byte{'c'}); err != nil {
		sylog.Fatalf("Could not write to master: %s", err)
	}
	sylog.Debugf("Exiting CleanupHost")
}
