// Package engine defines the hook surface the bootstrap drives at each of
// the four process roles (stage1, stage2, master, rpc server) and a
// minimal reference implementation that exercises every hook.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	starterConfig "github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine/config/starter"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

// Operations is implemented by every concrete engine (only one ships here,
// but the interface is what lets cmd/starter dispatch without knowing the
// concrete container technology in use).
type Operations interface {
	// RunStage1 parses and validates the engine's JSON configuration and
	// populates the shared starter config with namespace, capability and
	// privilege requirements. Runs in the stage1 process.
	RunStage1(ctx context.Context, cfg *starterConfig.Config) error

	// CreateContainer prepares the container's root filesystem and mounts
	// from inside the mount namespace, before the RPC server exits and
	// stage2 execs the container process. Runs in the RPC server process.
	CreateContainer(ctx context.Context, rpcSocket int) error

	// StartProcess execs (or otherwise becomes) the container's requested
	// process. Runs in the stage2 process; a nil return with no exec means
	// the caller falls through to process exit.
	StartProcess(ctx context.Context, masterSocket int) error

	// MonitorContainer blocks until the container process exits or is
	// signaled, translating the signal into an engine-specific action.
	// Runs in the master process.
	MonitorContainer(ctx context.Context, containerPid int) error

	// PostStartHost runs on the host, outside every container namespace,
	// right after the container process has started.
	PostStartHost(ctx context.Context) error

	// CleanupHost runs on the host, outside every container namespace,
	// once the container process has exited.
	CleanupHost(ctx context.Context) error
}

// Config names an engine and holds an engine-specific JSON payload. It is
// not what cmd/starter places in the bootstrap's shared memory; that blob
// is a marshaled ContainerConfig.
type Config struct {
	EngineName string          `json:"engineName"`
	JSON       json.RawMessage `json:"json"`
}

// Engine couples an engine Config with the concrete Operations
// implementation. cmd/starter always builds it with Common; EngineName is
// not consulted at dispatch time.
type Engine struct {
	Operations
	EngineConfig *Config
}

// Common is a minimal reference Operations implementation. RunStage1
// parses ContainerConfig and records the join-only, instance and target
// UID/GID settings in the shared starter config; every other hook only
// logs (or does nothing) and returns nil.
type Common struct {
	Config ContainerConfig
}

// ContainerConfig is Common's engine-specific JSON payload, written by
// cmd/starter into the engine config environment chunks that the
// bootstrap copies into shared memory, and read from there by RunStage1.
type ContainerConfig struct {
	RootFS       string   `json:"rootfs"`
	Process      []string `json:"process"`
	Hostname     string   `json:"hostname"`
	Capabilities []string `json:"capabilities"`
	// JoinOnly requests joining an already-running instance's namespaces
	// instead of creating a new container.
	JoinOnly bool `json:"joinOnly"`
	// Instance names a daemonized instance; non-empty on both `start
	// --instance` (the master process detaches and keeps running) and
	// `join --instance` (selects which running instance to enter).
	Instance string `json:"instance"`
	// TargetUID/TargetGID select the UID/GIDs the container process
	// executes as; zero value means "keep whatever apply_privileges
	// already set from the capability/namespace configuration".
	TargetUID int   `json:"targetUID"`
	TargetGID []int `json:"targetGID"`
}

func (c *Common) RunStage1(ctx context.Context, cfg *starterConfig.Config) error {
	payload := cfg.GetJSONConfig()
	if len(payload) == 0 {
		return fmt.Errorf("no engine configuration provided")
	}
	if err := json.Unmarshal(payload, &c.Config); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	cfg.SetNamespaceJoinOnly(c.Config.JoinOnly)
	cfg.SetInstance(c.Config.Instance != "" && !c.Config.JoinOnly)
	if c.Config.TargetUID != 0 {
		if err := cfg.SetTargetUID(c.Config.TargetUID); err != nil {
			return fmt.Errorf("setting target uid: %w", err)
		}
	}
	if len(c.Config.TargetGID) > 0 {
		if err := cfg.SetTargetGID(c.Config.TargetGID); err != nil {
			return fmt.Errorf("setting target gids: %w", err)
		}
	}
	sylog.Debugf("stage1: container root filesystem %s", c.Config.RootFS)
	return nil
}

func (c *Common) CreateContainer(ctx context.Context, rpcSocket int) error {
	sylog.Debugf("rpc server: preparing root filesystem %s", c.Config.RootFS)
	return nil
}

func (c *Common) StartProcess(ctx context.Context, masterSocket int) error {
	sylog.Debugf("stage2: starting process %v", c.Config.Process)
	return nil
}

func (c *Common) MonitorContainer(ctx context.Context, containerPid int) error {
	sylog.Debugf("master: monitoring container pid %d", containerPid)
	return nil
}

func (c *Common) PostStartHost(ctx context.Context) error {
	return nil
}

func (c *Common) CleanupHost(ctx context.Context) error {
	return nil
}

// DialSocket wraps a raw file descriptor shared by the bootstrap in a
// net.Conn, used by the host-side post-start and cleanup hooks.
func DialSocket(fd int, name string) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	conn, err := net.FileConn(f)
	f.Close()
	return conn, err
}
