package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/moby/sys/userns"
	"github.com/spf13/cobra"

	"github.com/lxstarter/runtime-starter/internal/pkg/bootstrap/instance"
	"github.com/lxstarter/runtime-starter/internal/pkg/bootstrap/netns"
	"github.com/lxstarter/runtime-starter/internal/pkg/runtime/engine"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

// instanceLockDir holds one lock file per instance name, serializing
// concurrent start/join attempts against it.
const instanceLockDir = "/var/lib/starter/instances"

// maxChunkSize mirrors MAX_CHUNK_SIZE in bootstrap.h.
const maxChunkSize = 128 * 1024

// engineConfigChunkEnv and engineConfigEnv mirror the names bootstrap.c
// reads through getenv(); they must match exactly.
const (
	engineConfigChunkEnv = "ENGINE_CONFIG_CHUNK_ENV"
	engineConfigEnv      = "ENGINE_CONFIG_ENV"
)

func newStartCommand() *cobra.Command {
	var bundle string
	var engineConfigPath string
	var instanceName string
	var verbosity int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "assemble a container configuration and run the bootstrap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := engine.ContainerConfig{Instance: instanceName}
			if engineConfigPath != "" {
				data, err := os.ReadFile(engineConfigPath)
				if err != nil {
					return fmt.Errorf("reading engine config: %w", err)
				}
				if err := json.Unmarshal(data, &cfg); err != nil {
					return fmt.Errorf("parsing engine config: %w", err)
				}
				cfg.Instance = instanceName
			}
			if bundle != "" {
				cfg.RootFS = bundle
			}

			if instanceName != "" {
				lock, err := instance.AcquireStart(instanceLockDir, instanceName)
				if err != nil {
					return err
				}
				// reexecWithConfig only returns on failure; on success
				// syscall.Exec replaces the process image and the lock's
				// file descriptor, opened close-on-exec, is closed by the
				// exec, which releases the lock, so it covers only the
				// span up to the exec; release it here on failure
				defer lock.Release() //nolint:errcheck
			}

			return reexecWithConfig(cfg, verbosity)
		},
	}

	cmd.Flags().StringVar(&bundle, "bundle", "", "path to the OCI bundle's root filesystem")
	cmd.Flags().StringVar(&engineConfigPath, "engine-config", "", "path to the engine-opaque JSON configuration")
	cmd.Flags().StringVar(&instanceName, "instance", "", "start the container detached, under this instance name")
	cmd.Flags().IntVarP(&verbosity, "verbose", "v", 1, "STARTER_MESSAGELEVEL to export to the bootstrap")

	return cmd
}

func newJoinCommand() *cobra.Command {
	var instanceName string
	var checkLoopback bool
	var verbosity int

	cmd := &cobra.Command{
		Use:   "join",
		Short: "join an already-running instance instead of creating a container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceName == "" {
				return fmt.Errorf("--instance is required")
			}

			lock, err := instance.AcquireJoin(instanceLockDir, instanceName)
			if err != nil {
				return err
			}
			defer lock.Release() //nolint:errcheck

			// mirrors bootstrap.c's CLONE_NEWUSER EPERM diagnostic: whether
			// we're already inside a user namespace changes which
			// unprivileged operations the target instance's namespaces
			// will actually allow us once we join them
			if userns.RunningInUserNS() {
				sylog.Debugf("joining %s from inside a user namespace", instanceName)
			}

			if checkLoopback {
				// smoke-test path: confirms the netlink-based loopback
				// helper works in whatever namespace the caller is
				// already in, without going through the bootstrap at all
				if err := netns.BringUpLoopback(); err != nil {
					return fmt.Errorf("loopback smoke test: %w", err)
				}
			}

			cfg := engine.ContainerConfig{
				Hostname: instanceName,
				Instance: instanceName,
				JoinOnly: true,
			}
			return reexecWithConfig(cfg, verbosity)
		},
	}

	cmd.Flags().StringVar(&instanceName, "instance", "", "name of the running instance to join")
	cmd.Flags().BoolVar(&checkLoopback, "check-loopback", false, "bring up the loopback interface in the current namespace before joining, as a smoke test")
	cmd.Flags().IntVarP(&verbosity, "verbose", "v", 1, "STARTER_MESSAGELEVEL to export to the bootstrap")

	return cmd
}

// reexecWithConfig chunks the engine configuration into the environment
// variables bootstrap.c's read_engine_config expects, then re-execs this
// same binary with no arguments so the constructor it already ran once
// (to get this far) runs again from a clean process image, this time
// with the configuration in place.
//
// The constructor runs at process image load, before main ever sees
// argv, so there is no way to hand it the configuration except through
// the environment ahead of the exec that creates the new image.
func reexecWithConfig(cfg engine.ContainerConfig, verbosity int) error {
	// the blob bootstrap.c ferries through the environment becomes
	// Config.GetJSONConfig()'s return value, which Common.RunStage1
	// unmarshals straight into a ContainerConfig
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling engine config: %w", err)
	}

	chunks := chunk(string(payload), maxChunkSize)

	env := filteredEnviron()
	env = append(env, fmt.Sprintf("%s=%d", engineConfigChunkEnv, len(chunks)))
	for i, c := range chunks {
		env = append(env, fmt.Sprintf("%s%d=%s", engineConfigEnv, i+1, c))
	}
	env = append(env, fmt.Sprintf("STARTER_MESSAGELEVEL=%d", verbosity))

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	return syscall.Exec(self, []string{self}, env)
}

// filteredEnviron drops any stale engine config chunks from a previous
// invocation before a new set is computed.
func filteredEnviron() []string {
	out := make([]string, 0, len(os.Environ()))
	for _, kv := range os.Environ() {
		switch {
		case kv == engineConfigChunkEnv || hasEnvPrefix(kv, engineConfigChunkEnv+"="):
			continue
		case hasEnvPrefix(kv, engineConfigEnv):
			continue
		case hasEnvPrefix(kv, "STARTER_MESSAGELEVEL="):
			continue
		default:
			out = append(out, kv)
		}
	}
	return out
}

func hasEnvPrefix(kv, prefix string) bool {
	return len(kv) >= len(prefix) && kv[:len(prefix)] == prefix
}

func chunk(s string, size int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	for len(s) > 0 {
		n := size
		if n > len(s) {
			n = len(s)
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}
