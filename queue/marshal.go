// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package queue

import (
	"fmt"
)

// MarshalText returns a string representing a work item status.
func (status Status) MarshalText() ([]byte, error) {
	switch status {
	case AnyStatus:
		return []byte("any"), nil
	case Pending:
		return []byte("pending"), nil
	case InProgress:
		return []byte("in_progress"), nil
	case Completed:
		return []byte("completed"), nil
	case Failed:
		return []byte("failed"), nil
	case Skipped:
		return []byte("skipped"), nil
	default:
		return nil, fmt.Errorf("invalid status (marshal, %+v)", status)
	}
}

// UnmarshalText populates a work item status from a string.
func (status *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "any":
		*status = AnyStatus
	case "pending":
		*status = Pending
	case "in_progress":
		*status = InProgress
	case "completed":
		*status = Completed
	case "failed":
		*status = Failed
	case "skipped":
		*status = Skipped
	default:
		return fmt.Errorf("invalid status (unmarshal, %+v)", string(text))
	}
	return nil
}

// String renders the status for logs.
func (status Status) String() string {
	text, err := status.MarshalText()
	if err != nil {
		return fmt.Sprintf("Status(%d)", int(status))
	}
	return string(text)
}

// MarshalText returns a string representing a heartbeat state.
func (state HeartbeatState) MarshalText() ([]byte, error) {
	switch state {
	case WorkerActive:
		return []byte("active"), nil
	case WorkerIdle:
		return []byte("idle"), nil
	case WorkerPaused:
		return []byte("paused"), nil
	case WorkerStopping:
		return []byte("stopping"), nil
	case WorkerStopped:
		return []byte("stopped"), nil
	default:
		return nil, fmt.Errorf("invalid worker state (marshal, %+v)", state)
	}
}

// UnmarshalText populates a heartbeat state from a string.
func (state *HeartbeatState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*state = WorkerActive
	case "idle":
		*state = WorkerIdle
	case "paused":
		*state = WorkerPaused
	case "stopping":
		*state = WorkerStopping
	case "stopped":
		*state = WorkerStopped
	default:
		return fmt.Errorf("invalid worker state (unmarshal, %+v)", string(text))
	}
	return nil
}

// String renders the heartbeat state for logs.
func (state HeartbeatState) String() string {
	text, err := state.MarshalText()
	if err != nil {
		return fmt.Sprintf("HeartbeatState(%d)", int(state))
	}
	return string(text)
}

// MarshalText returns a string representing a run status.
func (status RunStatus) MarshalText() ([]byte, error) {
	switch status {
	case RunRunning:
		return []byte("running"), nil
	case RunSucceeded:
		return []byte("succeeded"), nil
	case RunFailed:
		return []byte("failed"), nil
	default:
		return nil, fmt.Errorf("invalid run status (marshal, %+v)", status)
	}
}

// UnmarshalText populates a run status from a string.
func (status *RunStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*status = RunRunning
	case "succeeded":
		*status = RunSucceeded
	case "failed":
		*status = RunFailed
	default:
		return fmt.Errorf("invalid run status (unmarshal, %+v)", string(text))
	}
	return nil
}

// String renders the run status for logs.
func (status RunStatus) String() string {
	text, err := status.MarshalText()
	if err != nil {
		return fmt.Sprintf("RunStatus(%d)", int(status))
	}
	return string(text)
}
