// Package instance serializes concurrent "start as instance" attempts
// against the same instance name. The bootstrap constructor itself only
// daemonizes the process (setsid, SIGUSR1 handshake in bootstrap.c);
// naming and locating a running instance by name is a CLI-level concern
// layered on top, exercised by `starter join --instance`.
package instance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock guards one instance name against concurrent start/join races.
type Lock struct {
	flock *flock.Flock
	path  string
}

func lockPath(dir, name string) string {
	return filepath.Join(dir, name+".lock")
}

// AcquireStart takes an exclusive lock for starting a new instance
// named name, failing if another start is already in progress.
func AcquireStart(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating instance lock directory: %w", err)
	}
	path := lockPath(dir, name)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking instance %q: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("instance %q is already starting", name)
	}
	return &Lock{flock: fl, path: path}, nil
}

// AcquireJoin takes a shared lock, allowing any number of concurrent
// joins but excluding a concurrent start of the same name.
func AcquireJoin(dir, name string) (*Lock, error) {
	path := lockPath(dir, name)
	fl := flock.New(path)

	locked, err := fl.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("locking instance %q: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("instance %q is currently starting", name)
	}
	return &Lock{flock: fl, path: path}, nil
}

// Release unlocks the lock file. The file itself is not removed.
func (l *Lock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlocking instance file %s: %w", l.path, err)
	}
	return nil
}
