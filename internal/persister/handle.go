// Package persister binds a wallet to exactly one storage backend and exposes
// the two calls the wallet needs: load everything persisted so far, and append
// a new increment.
//
// The set of backends is fixed when the binary is built. Each backend lives in
// its own file behind a build tag (nosqlite, nobadger, nobolt); the memory
// backend is always present. A Handle never opens, retries, logs or
// reorders anything: every call goes to the bound backend and any failure
// comes back as an *Error tagged with that backend.
package persister

import (
	"github.com/neogan74/walletdb/internal/changeset"
)

// store is the contract each backend implements natively. Errors returned
// here are the backend's own; Handle tags them.
type store interface {
	load() (*changeset.ChangeSet, error)
	appendChangeSet(cs *changeset.ChangeSet) error
	close() error
}

// Handle is the persistence handle of a single wallet. It owns the backend
// resource it was built from. A Handle is not safe for concurrent use.
type Handle struct {
	backend Backend
	store   store
	convert func(error) error
}

func newHandle(b Backend, s store, convert func(error) error) *Handle {
	return &Handle{backend: b, store: s, convert: convert}
}

// Backend returns the backend the handle was constructed with.
func (h *Handle) Backend() Backend {
	return h.backend
}

// Initialize loads the full ChangeSet persisted so far. A store that was
// never written yields an empty ChangeSet.
func (h *Handle) Initialize() (*changeset.ChangeSet, error) {
	cs, err := h.store.load()
	if err != nil {
		return nil, h.convert(err)
	}
	if cs == nil {
		cs = changeset.New()
	}
	return cs, nil
}

// Persist appends cs to durable storage. Repeated calls are additive under
// the ChangeSet merge rules; nothing is deduplicated here.
func (h *Handle) Persist(cs *changeset.ChangeSet) error {
	return h.convert(h.store.appendChangeSet(cs))
}

// Close releases the backend resource.
func (h *Handle) Close() error {
	return h.convert(h.store.close())
}
