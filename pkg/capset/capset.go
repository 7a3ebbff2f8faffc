// Package capset maps Linux capability names to their bit values and
// groups them into the five POSIX-draft capability sets a container
// process can carry across a bootstrap transition.
package capset

import (
	"fmt"

	"github.com/moby/sys/capability"
)

// Set identifies one of the five capability sets tracked by the bootstrap
// shared configuration.
type Set string

const (
	Permitted  Set = "permitted"
	Effective  Set = "effective"
	Inheritable Set = "inheritable"
	Bounding   Set = "bounding"
	Ambient    Set = "ambient"
)

// Capability pairs a capability name with its bit position.
type Capability struct {
	Name  string
	Value uint
}

// Map resolves a capability name (e.g. "CAP_SYS_ADMIN") to its bit position.
// It is built once from github.com/moby/sys/capability's capability list so
// new kernel capabilities are picked up without touching this package.
var Map = func() map[string]Capability {
	last := capability.LastCap()
	m := make(map[string]Capability, int(last)+1)
	for c := capability.Cap(0); c <= last; c++ {
		name := "CAP_" + c.String()
		m[name] = Capability{Name: name, Value: uint(c)}
	}
	return m
}()

// Validate checks that every capability name in caps is known to the
// running kernel's capability list.
func Validate(caps []string) error {
	for _, c := range caps {
		if _, ok := Map[c]; !ok {
			return fmt.Errorf("unknown capability %q", c)
		}
	}
	return nil
}
