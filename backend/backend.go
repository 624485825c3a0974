// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a queue backend
// from command-line flags.
package backend

import (
	"errors"
	"strings"

	"github.com/datalode/conveyor/memqueue"
	"github.com/datalode/conveyor/postgres"
	"github.com/datalode/conveyor/queue"
)

// Backend describes user-visible parameters for queue storage.  It
// implements the flag.Value interface, and so a typical use is
//
//	func main() {
//	    backend := backend.Backend{Implementation: "memory"}
//	    flag.Var(&backend, "backend", "impl:address of queue storage")
//	    flag.Parse()
//	    q, err := backend.Open()
//	    ...
//	}
type Backend struct {
	// Implementation holds the name of the implementation, "memory"
	// or "postgres".
	Implementation string

	// Address holds a backend-specific address, such as a database
	// connect string.
	Address string

	// Namespace optionally prefixes the backend's tables, letting
	// several deployments share one database.  Only the postgres
	// backend uses it.
	Namespace string
}

// Open creates a new queue backend.  This generally should be called
// only once: each call creates fresh in-process state, and for the
// memory implementation in particular, multiple calls create multiple
// independent queues.
func (b *Backend) Open() (queue.Backend, error) {
	switch b.Implementation {
	case "", "memory":
		return memqueue.New(), nil
	case "postgres":
		return postgres.NewWithOptions(b.Address, postgres.Options{
			Namespace: b.Namespace,
		})
	}
	return nil, errors.New("unknown queue backend " + b.Implementation)
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string of the form "implementation:address" into an
// existing backend description, where address can be any string.  It
// validates the implementation name but not the address: neither Set
// nor Open attempts a connection before the backend is used.
//
// This is part of the flag.Value interface.
func (b *Backend) Set(param string) error {
	parts := strings.SplitN(param, ":", 2)
	b.Implementation = parts[0]
	if len(parts) == 2 {
		b.Address = parts[1]
	} else {
		b.Address = ""
	}
	switch b.Implementation {
	case "memory", "postgres":
		return nil
	}
	return errors.New("unknown queue backend " + b.Implementation)
}
