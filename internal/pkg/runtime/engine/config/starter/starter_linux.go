package starter

/*
#include <stdbool.h>
#include <stdlib.h>
#include <string.h>
#include <sys/mman.h>
#include <sys/types.h>
#include "bootstrap.h"
*/
// #cgo CFLAGS: -I../../../../../../cmd/starter/c/include
import "C"

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unsafe"

	"github.com/ccoveille/go-safecast"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/lxstarter/runtime-starter/pkg/capset"
	"github.com/lxstarter/runtime-starter/pkg/sylog"
)

// SConfig aliases *C.struct_starterConfig (cmd/starter/c/include/bootstrap.h)
// for convenience.
type SConfig *C.struct_starterConfig

// Config wraps SConfig to manipulate the bootstrap's shared memory
// configuration. All SetXXX methods mutate the shared memory directly
// unless Release has already been called.
type Config struct {
	config SConfig
}

// NewConfig wraps an existing shared memory block, as returned by the
// bootstrap constructor, in a Config.
func NewConfig(config SConfig) *Config {
	return &Config{config: config}
}

// GetIsSUID reports whether the setuid workflow is enabled. Set by the
// bootstrap constructor at the very start of its execution.
func (c *Config) GetIsSUID() bool {
	return c.config.starter.isSuid == true //nolint:staticcheck
}

// GetContainerPid returns the container PID, set by the master process
// before stage 2 or the RPC server run.
func (c *Config) GetContainerPid() int {
	return int(c.config.container.pid)
}

// SetInstance requests that the container run detached as an instance.
func (c *Config) SetInstance(instance bool) {
	c.config.container.isInstance = C.bool(instance)
}

// SetNoNewPrivs requests PR_SET_NO_NEW_PRIVS be applied before the
// container process starts.
func (c *Config) SetNoNewPrivs(noprivs bool) {
	c.config.container.privileges.noNewPrivs = C.bool(noprivs)
}

// SetMasterPropagateMount requests MS_SHARED mount propagation between
// the master process and the container.
func (c *Config) SetMasterPropagateMount(propagate bool) {
	c.config.starter.masterPropagateMount = C.bool(propagate)
}

// SetNamespaceJoinOnly requests that the spawned process join an
// already-running container rather than create a new one.
func (c *Config) SetNamespaceJoinOnly(join bool) {
	c.config.container.namespace.joinOnly = C.bool(join)
}

// SetBringLoopbackInterface requests the loopback interface be brought
// up once the network namespace is created.
func (c *Config) SetBringLoopbackInterface(bring bool) {
	c.config.container.namespace.bringLoopbackInterface = C.bool(bring)
}

// SetMountPropagation sets the container root filesystem's mount
// propagation mode, applied during container creation.
func (c *Config) SetMountPropagation(propagation string) {
	var flags uintptr

	switch propagation {
	case "shared", "rshared":
		flags = syscall.MS_SHARED
	case "slave", "rslave":
		flags = syscall.MS_SLAVE
	case "private", "rprivate":
		flags = syscall.MS_PRIVATE
	case "unbindable", "runbindable":
		flags = syscall.MS_UNBINDABLE
	}

	if strings.HasPrefix(propagation, "r") {
		flags |= syscall.MS_REC
	}
	c.config.container.namespace.mountPropagation = C.ulong(flags)
}

// SetWorkingDirectoryFd tells the bootstrap constructor to fchdir to the
// directory pointed at by fd once stage 1 returns.
func (c *Config) SetWorkingDirectoryFd(fd int) {
	c.config.starter.workingDirectoryFd = C.int(fd)
}

// SetImageFd records the file descriptor of the image currently in use so
// later stages can recover it without re-opening the image.
func (c *Config) SetImageFd(fd int) {
	c.config.starter.imageFd = C.int(fd)
}

// GetImageFd returns the file descriptor of the image in use.
func (c *Config) GetImageFd() int {
	return int(c.config.starter.imageFd)
}

// GetPostStartSocket returns the hook end of the post-start socketpair, or
// -1 if the container was joined rather than created.
func (c *Config) GetPostStartSocket() int {
	return int(c.config.starter.postStartSocket)
}

// GetCleanupSocket returns the hook end of the cleanup socketpair, or -1
// if the container was joined rather than created.
func (c *Config) GetCleanupSocket() int {
	return int(c.config.starter.cleanupSocket)
}

// GetPostStartNotifyFd returns the master's own end of the post-start
// socketpair, used to trigger the hook and read back its result.
func (c *Config) GetPostStartNotifyFd() int {
	return int(c.config.starter.postStartNotifyFd)
}

// GetCleanupNotifyFd returns the master's own end of the cleanup
// socketpair, used to trigger the hook and read back its result.
func (c *Config) GetCleanupNotifyFd() int {
	return int(c.config.starter.cleanupNotifyFd)
}

// KeepFileDescriptor registers fd so the bootstrap's file descriptor
// cleanup pass after stage 1 keeps it open instead of closing it.
func (c *Config) KeepFileDescriptor(fd int) error {
	if c.config.starter.numfds >= C.MAX_STARTER_FDS {
		return fmt.Errorf("maximum number of kept file descriptors reached")
	}
	c.config.starter.fds[c.config.starter.numfds] = C.int(fd)
	c.config.starter.numfds++
	return nil
}

// SetNvCCLICaps requests a bounding capability set wide enough to permit
// running nvidia-container-cli inside the container.
func (c *Config) SetNvCCLICaps(enabled bool) {
	c.config.starter.nvCCLICaps = C.bool(enabled)
}

// SetHybridWorkflow requests a hybrid workflow, typically used for
// fakeroot: master stays in the host user namespace while the container
// process gets its own.
func (c *Config) SetHybridWorkflow(hybrid bool) {
	c.config.starter.hybridWorkflow = C.bool(hybrid)
}

// SetAllowSetgroups allows the setgroups syscall from within the user
// namespace.
func (c *Config) SetAllowSetgroups(allow bool) {
	c.config.container.privileges.allowSetgroups = C.bool(allow)
}

// SetNoSetgroups disables the setgroups call for the container process,
// preserving access to files depending on supplementary groups outside
// the user namespace; those groups map to nobody inside the container.
func (c *Config) SetNoSetgroups(noSetgroups bool) {
	c.config.container.privileges.noSetgroups = C.bool(noSetgroups)
}

// GetJSONConfig returns a copy of the engine's JSON configuration bytes.
func (c *Config) GetJSONConfig() []byte {
	return C.GoBytes(unsafe.Pointer(c.config.engine.config), C.int(c.config.engine.size))
}

// Write replaces the engine's JSON configuration stored in shared memory.
func (c *Config) Write(payload interface{}) error {
	jsonConf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %s", err)
	}

	size := len(jsonConf)
	c.config.engine.size = C.size_t(size)
	if c.config.engine.size >= c.config.engine.map_size {
		return fmt.Errorf("not enough space for json configuration")
	}

	engineConfig := C.CBytes(jsonConf)
	C.memcpy(unsafe.Pointer(c.config.engine.config), engineConfig, c.config.engine.size)
	C.free(engineConfig)

	return nil
}

// AddUIDMappings sets the user namespace UID mapping.
func (c *Config) AddUIDMappings(uids []specs.LinuxIDMapping) error {
	uidMap := ""
	for _, uid := range uids {
		uidMap += fmt.Sprintf("%d %d %d\n", uid.ContainerID, uid.HostID, uid.Size)
	}

	l := len(uidMap)
	if l >= C.MAX_MAP_SIZE-1 {
		return fmt.Errorf("uid map too big")
	}
	if l > 0 {
		cpath := unsafe.Pointer(C.CString(uidMap))
		C.memcpy(unsafe.Pointer(&c.config.container.privileges.uidMap[0]), cpath, C.size_t(l))
		C.free(cpath)
	}
	return nil
}

// AddGIDMappings sets the user namespace GID mapping.
func (c *Config) AddGIDMappings(gids []specs.LinuxIDMapping) error {
	gidMap := ""
	for _, gid := range gids {
		gidMap += fmt.Sprintf("%d %d %d\n", gid.ContainerID, gid.HostID, gid.Size)
	}

	l := len(gidMap)
	if l >= C.MAX_MAP_SIZE-1 {
		return fmt.Errorf("gid map too big")
	}
	if l > 0 {
		cpath := unsafe.Pointer(C.CString(gidMap))
		C.memcpy(unsafe.Pointer(&c.config.container.privileges.gidMap[0]), cpath, C.size_t(l))
		C.free(cpath)
	}
	return nil
}

func setNewIDMapPath(command string, pathPointer unsafe.Pointer) error {
	path, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("%s was not found in PATH, required with fakeroot and unprivileged installation", command)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("could not stat %s: %s", path, err)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok && st.Uid != 0 {
		return fmt.Errorf("%s must be owned by the root user to setup fakeroot ID mappings in an unprivileged installation", path)
	}

	l := len(path)
	if l >= C.MAX_PATH_SIZE-1 {
		return fmt.Errorf("%s path too long", command)
	}

	cpath := unsafe.Pointer(C.CString(path))
	C.memcpy(pathPointer, cpath, C.size_t(l))
	C.free(cpath)

	return nil
}

// SetNewUIDMapPath resolves the newuidmap binary and records its path.
func (c *Config) SetNewUIDMapPath() error {
	return setNewIDMapPath("newuidmap", unsafe.Pointer(&c.config.container.privileges.newuidmapPath[0]))
}

// SetNewGIDMapPath resolves the newgidmap binary and records its path.
func (c *Config) SetNewGIDMapPath() error {
	return setNewIDMapPath("newgidmap", unsafe.Pointer(&c.config.container.privileges.newgidmapPath[0]))
}

// SetNsFlags sets the namespace creation flags directly.
func (c *Config) SetNsFlags(flags int) {
	c.config.container.namespace.flags = C.uint(flags)
}

// SetNsFlagsFromSpec derives namespace creation flags from an OCI spec's
// namespace list, skipping any namespace that specifies a join path.
func (c *Config) SetNsFlagsFromSpec(namespaces []specs.LinuxNamespace) {
	c.config.container.namespace.flags = 0
	for _, namespace := range namespaces {
		if namespace.Path != "" {
			continue
		}
		switch namespace.Type {
		case specs.UserNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWUSER
		case specs.IPCNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWIPC
		case specs.UTSNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWUTS
		case specs.PIDNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWPID
		case specs.NetworkNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWNET
		case specs.MountNamespace:
			c.config.container.namespace.flags |= syscall.CLONE_NEWNS
		case specs.CgroupNamespace:
			c.config.container.namespace.flags |= 0x2000000
		}
	}
}

// SetNsPath records the join path for a single namespace type.
func (c *Config) SetNsPath(nstype specs.LinuxNamespaceType, path string) error {
	cpath := unsafe.Pointer(C.CString(path))
	l := len(path)
	size := C.size_t(l)

	if l > C.MAX_PATH_SIZE-1 {
		return fmt.Errorf("%s namespace path too big", nstype)
	}

	switch nstype {
	case specs.UserNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.user[0]), cpath, size)
	case specs.IPCNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.ipc[0]), cpath, size)
	case specs.UTSNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.uts[0]), cpath, size)
	case specs.PIDNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.pid[0]), cpath, size)
	case specs.NetworkNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.network[0]), cpath, size)
	case specs.MountNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.mount[0]), cpath, size)
	case specs.CgroupNamespace:
		C.memcpy(unsafe.Pointer(&c.config.container.namespace.cgroup[0]), cpath, size)
	}

	C.free(cpath)
	return nil
}

// SetNsPathFromSpec records join paths for every namespace in the OCI
// spec that specifies one.
func (c *Config) SetNsPathFromSpec(namespaces []specs.LinuxNamespace) error {
	for _, namespace := range namespaces {
		if namespace.Path != "" {
			if err := c.SetNsPath(namespace.Type, namespace.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetCapabilities sets one of the container's capability sets (permitted,
// effective, inheritable, bounding, ambient) from a list of capability
// names.
func (c *Config) SetCapabilities(ctype capset.Set, caps []string) {
	var mask C.ulonglong
	for _, v := range caps {
		if cp, ok := capset.Map[v]; ok {
			mask |= C.ulonglong(1) << C.ulonglong(cp.Value)
		} else {
			sylog.Warningf("unknown capability %s ignored", v)
		}
	}

	switch ctype {
	case capset.Permitted:
		c.config.container.privileges.capabilities.permitted = mask
	case capset.Effective:
		c.config.container.privileges.capabilities.effective = mask
	case capset.Inheritable:
		c.config.container.privileges.capabilities.inheritable = mask
	case capset.Bounding:
		c.config.container.privileges.capabilities.bounding = mask
	case capset.Ambient:
		c.config.container.privileges.capabilities.ambient = mask
	}
}

// SetTargetUID sets the UID the container process executes as.
func (c *Config) SetTargetUID(uid int) error {
	u, err := safecast.ToUint32(uid)
	if err != nil {
		return fmt.Errorf("invalid target uid %d: %w", uid, err)
	}
	c.config.container.privileges.targetUID = C.uid_t(u)
	return nil
}

// SetTargetGID sets the GIDs the container process executes as, the
// first entry becoming the main group.
func (c *Config) SetTargetGID(gids []int) error {
	n, err := safecast.ToInt32(len(gids))
	if err != nil {
		return fmt.Errorf("too many group ids: %w", err)
	}
	c.config.container.privileges.numGID = C.int(n)

	for i, gid := range gids {
		if i >= C.MAX_GID {
			sylog.Warningf("you can't specify more than %d group IDs", C.MAX_GID)
			c.config.container.privileges.numGID = C.MAX_GID
			break
		}
		c.config.container.privileges.targetGID[i] = C.gid_t(gid)
	}
	return nil
}

// Release unmaps the shared starter configuration. Any access to the
// config after Release returns will fault.
func (c *Config) Release() error {
	if C.munmap(unsafe.Pointer(c.config.engine.config), c.config.engine.map_size) != 0 {
		return fmt.Errorf("failed to release engine config memory")
	}
	if C.munmap(unsafe.Pointer(c.config), C.sizeof_struct_starterConfig) != 0 {
		return fmt.Errorf("failed to release starter memory")
	}
	return nil
}
