package persister

import (
	"fmt"
	"slices"
	"strings"
)

// Backend identifies a storage engine a Handle can be bound to.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// known lists every backend this package can be built with.
var known = []Backend{BackendSQLite, BackendBadger, BackendBolt, BackendMemory}

// compiled holds the backends present in this build. Backend files add
// themselves from init; build tags (nosqlite, nobadger, nobolt) leave them out.
var compiled = map[Backend]bool{
	BackendMemory: true,
}

func register(b Backend) {
	compiled[b] = true
}

func (b Backend) String() string {
	return string(b)
}

// Compiled returns the backends available in this binary, sorted by name.
func Compiled() []Backend {
	out := make([]Backend, 0, len(compiled))
	for b := range compiled {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// DefaultBackend is sqlite when it is compiled in and otherwise the first
// compiled backend by name.
func DefaultBackend() Backend {
	if compiled[BackendSQLite] {
		return BackendSQLite
	}
	return Compiled()[0]
}

// IsCompiled reports whether b is available in this binary.
func IsCompiled(b Backend) bool {
	return compiled[b]
}

// ParseBackend resolves a backend name and checks it was compiled in.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(known, b) {
		return "", fmt.Errorf("unknown backend: %q", name)
	}
	if !compiled[b] {
		return "", fmt.Errorf("backend %q is not compiled into this binary", b)
	}
	return b, nil
}
