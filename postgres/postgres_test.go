// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres_test

import (
	"os"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/datalode/conveyor/postgres"
	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/queue/queuetest"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic backend tests against a real PostgreSQL
// database.  Set CONVEYOR_TEST_DB to a lib/pq connection string to
// enable it; the standard libpq environment variables fill in
// anything the string omits.  The tests create and truncate their own
// tables under a test namespace.
type Suite struct {
	queuetest.Suite
}

func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	dsn := os.Getenv("CONVEYOR_TEST_DB")
	s.NewBackend = func(clk clock.Clock) (queue.Backend, error) {
		backend, err := postgres.NewWithOptions(dsn, postgres.Options{
			Clock:     clk,
			Backoff:   queuetest.TestBackoff,
			Namespace: "conveyortest",
		})
		if err != nil {
			return nil, err
		}
		// Start each test from an empty queue.
		if err = backend.Destroy(); err != nil {
			return nil, err
		}
		return backend, nil
	}
}

func TestPostgres(t *testing.T) {
	if os.Getenv("CONVEYOR_TEST_DB") == "" {
		t.Skip("set CONVEYOR_TEST_DB to run PostgreSQL backend tests")
	}
	suite.Run(t, &Suite{})
}
