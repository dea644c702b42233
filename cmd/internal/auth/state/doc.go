// Package state holds the in-process identity state machine: the store that
// views render from, the manager that bootstraps it and follows provider
// lifecycle events, the directory loader, and the mutation service.
//
// The store is the single source of truth and has exactly three writers: the
// manager, the directory loader, and nothing else. Mutations (login, logout,
// identity creation) go through the provider and reach the store only via the
// manager's event loop.
package state
