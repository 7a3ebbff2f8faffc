// Package role mirrors the bootstrap's enum goexec (see
// cmd/starter/c/include/bootstrap.h): the role the C constructor leaves a
// process in before handing control back to the Go runtime.
package role

// Role identifies which of the four bootstrap roles the current process
// is playing, as set by the C constructor in the goexecute global before
// it returns control to main().
type Role int

const (
	// Stage1 parses configuration, resolves capabilities and namespace
	// requirements, and never itself runs inside the container.
	Stage1 Role = 1
	// Stage2 is the container process itself, running inside every
	// namespace the engine requested.
	Stage2 Role = 2
	// Master monitors the container process from outside its namespaces.
	Master Role = 3
	// RPCServer runs the engine's privileged container setup
	// (CreateContainer) from inside the container's mount namespace,
	// before stage 2 starts.
	RPCServer Role = 4
)

func (r Role) String() string {
	switch r {
	case Stage1:
		return "stage1"
	case Stage2:
		return "stage2"
	case Master:
		return "master"
	case RPCServer:
		return "rpc_server"
	default:
		return "unknown"
	}
}
