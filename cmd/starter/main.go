// Command starter is the privileged bootstrap entrypoint. Its C
// constructor (cmd/starter/c/bootstrap.c) runs before the Go runtime
// spins up any threads, creates and joins namespaces, forks the four
// role processes and leaves this process in one of them before main
// ever runs. main only has to read the role the constructor left behind
// and dispatch into internal/app/starter.
package main

/*
#include "c/message.c"
#include "c/setns.c"
#include "c/capability.c"
#include "c/bootstrap.c"
*/
// #cgo CFLAGS: -I.
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/lxstarter/runtime-starter/internal/app/starter"
	"github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine"
	starterConfig "github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine/config/starter"
	"github.com/lxstarter/runtime-starter/pkg/role"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "starter",
		Short:         "run or join a container",
		SilenceUsage:  true,
		SilenceErrors: true,
		// the C constructor has already forked and picked a role by the
		// time cobra parses flags, so RunE below always executes in
		// whichever process this binary exec'd into
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch()
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the starter version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	})
	root.AddCommand(newStartCommand())
	root.AddCommand(newJoinCommand())

	if err := root.Execute(); err != nil {
		sylog.Fatalf("%s", err)
	}
}

// dispatch reads the role the bootstrap constructor left this process in
// and runs the matching Go-side handler. It returns nil once that handler
// returns (for MASTER, after the monitor and host hooks are done), unless
// the engine hook itself execs or exits the process first.
func dispatch() error {
	// C.sconfig here and the config package's own C.struct_starterConfig
	// come from two separate cgo compilations of the same header; Go
	// treats them as distinct types even though their memory layout is
	// identical, so the handoff goes through unsafe.Pointer rather than a
	// direct type conversion
	cfg := starterConfig.NewConfig(starterConfig.SConfig(unsafe.Pointer(C.sconfig)))
	e := &engine.Engine{
		Operations:   &engine.Common{},
		EngineConfig: &engine.Config{},
	}

	r := role.Role(int(C.goexecute))
	sylog.Debugf("dispatching role %s", r)

	switch r {
	case role.Stage1:
		starter.Stage1(cfg, e)
	case role.RPCServer:
		starter.RPCServer(int(C.rpc_socket[1]), e)
	case role.Stage2:
		// stage2 is the child of the namespace-creating fork; the bootstrap
		// constructor already closed this process's master_socket[0] end
		starter.Stage2(int(C.master_socket[1]), e)
	case role.Master:
		starter.Master(cfg, e)
	default:
		return fmt.Errorf("unknown starter role %d", int(C.goexecute))
	}

	return nil
}
