// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/lib/pq"
)

func stateToSQL(state queue.HeartbeatState) string {
	text, err := state.MarshalText()
	if err != nil {
		return "active"
	}
	return string(text)
}

func (c *pgBackend) UpsertHeartbeat(hb queue.Heartbeat) error {
	now := c.clock.Now()
	params := queryParams{}
	fields := fieldList{}
	fields.Add(&params, "worker_id", hb.WorkerID)
	fields.Add(&params, "hostname", hb.Hostname)
	fields.Add(&params, "pid", hb.PID)
	fields.Add(&params, "started_at", timeToNullTime(hb.StartedAt))
	fields.Add(&params, "last_heartbeat", now)
	fields.Add(&params, "items_processed", hb.ItemsProcessed)
	fields.Add(&params, "items_succeeded", hb.ItemsSucceeded)
	fields.Add(&params, "items_failed", hb.ItemsFailed)
	fields.Add(&params, "state", stateToSQL(hb.State))
	fields.Add(&params, "current_item_id", hb.CurrentItemID)

	// Single-statement upsert; every column except the key is
	// replaced, so the newest report always wins.
	query := fields.InsertStatement(c.workerHeartbeats()) +
		" ON CONFLICT (worker_id) DO UPDATE SET "
	changes := fieldList{}
	for _, fp := range fields.Fields[1:] {
		changes.AddDirect(fp.Field, "EXCLUDED."+fp.Field)
	}
	for i, change := range changes.UpdateChanges() {
		if i > 0 {
			query += ", "
		}
		query += change
	}
	return execInTx(c, query, params)
}

func (c *pgBackend) ListActive(timeout time.Duration) ([]queue.Heartbeat, error) {
	if timeout == 0 {
		timeout = queue.DefaultHeartbeatTimeout
	}
	cutoff := c.clock.Now().Add(-timeout)

	params := queryParams{}
	query := buildSelect([]string{
		"worker_id", "hostname", "pid", "started_at", "last_heartbeat",
		"items_processed", "items_succeeded", "items_failed", "state",
		"current_item_id",
	}, []string{c.workerHeartbeats()}, []string{
		"last_heartbeat >= " + params.Param(cutoff),
	}) + " ORDER BY worker_id ASC"

	var result []queue.Heartbeat
	err := queryAndScan(c, query, params, func(rows *sql.Rows) error {
		var (
			hb        queue.Heartbeat
			startedAt pq.NullTime
			stateText string
		)
		err := rows.Scan(&hb.WorkerID, &hb.Hostname, &hb.PID, &startedAt,
			&hb.LastHeartbeat, &hb.ItemsProcessed, &hb.ItemsSucceeded,
			&hb.ItemsFailed, &stateText, &hb.CurrentItemID)
		if err != nil {
			return err
		}
		hb.StartedAt = nullTimeToTime(startedAt)
		if err = hb.State.UnmarshalText([]byte(stateText)); err != nil {
			return err
		}
		result = append(result, hb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *pgBackend) RemoveWorker(workerID string) error {
	params := queryParams{}
	query := "DELETE FROM " + c.workerHeartbeats() +
		" WHERE worker_id = " + params.Param(workerID)
	return execInTx(c, query, params)
}
