// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/datalode/conveyor/queue"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"
)

func runStatusToSQL(status queue.RunStatus) string {
	text, err := status.MarshalText()
	if err != nil {
		return "running"
	}
	return string(text)
}

// marshalJSONMap renders an options/metrics map for a JSONB column,
// with nil mapping to SQL NULL.
func marshalJSONMap(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONMap(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]interface{}
	err := json.Unmarshal(raw, &m)
	return m, err
}

func (c *pgBackend) StartRun(itemID, workerID, modelIdentity string, options map[string]interface{}) (string, error) {
	optionsJSON, err := marshalJSONMap(options)
	if err != nil {
		return "", err
	}
	runID := uuid.NewV4().String()
	now := c.clock.Now()

	err = withTx(c, false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{"1"}, []string{c.workItems()},
			[]string{"id = " + params.Param(itemID)})
		var one int
		if err := tx.QueryRow(query, params...).Scan(&one); err == sql.ErrNoRows {
			return queue.ErrNoSuchItem{ID: itemID}
		} else if err != nil {
			return err
		}

		params = queryParams{}
		fields := fieldList{}
		fields.Add(&params, "id", runID)
		fields.Add(&params, "item_id", itemID)
		fields.Add(&params, "worker_id", workerID)
		fields.Add(&params, "model_identity", modelIdentity)
		fields.Add(&params, "options", optionsJSON)
		fields.Add(&params, "started_at", now)
		fields.AddDirect("status", "'running'")
		_, err := tx.Exec(fields.InsertStatement(c.runs()), params...)
		return err
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}

func (c *pgBackend) FinishRun(runID string, status queue.RunStatus, metrics map[string]interface{}, errText string) error {
	metricsJSON, err := marshalJSONMap(metrics)
	if err != nil {
		return err
	}
	now := c.clock.Now()

	return withTx(c, false, func(tx *sql.Tx) error {
		params := queryParams{}
		changes := fieldList{}
		changes.Add(&params, "status", runStatusToSQL(status))
		changes.Add(&params, "ended_at", now)
		changes.Add(&params, "metrics", metricsJSON)
		changes.Add(&params, "error", errText)
		// Guarding on 'running' makes the first finalization the
		// only one.
		query := buildUpdate(c.runs(), changes.UpdateChanges(), []string{
			"id = " + params.Param(runID),
			"status = 'running'",
		})
		result, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
		count, err := result.RowsAffected()
		if err != nil || count == 1 {
			return err
		}

		// Nothing updated: distinguish already-finished from
		// missing.
		params = queryParams{}
		query = buildSelect([]string{"1"}, []string{c.runs()},
			[]string{"id = " + params.Param(runID)})
		var one int
		if err = tx.QueryRow(query, params...).Scan(&one); err == sql.ErrNoRows {
			return queue.ErrNoSuchRun{ID: runID}
		}
		return err
	})
}

func (c *pgBackend) AttachArtifact(runID string, ref queue.ArtifactRef, artifactType, mimeType string, content []byte) error {
	now := c.clock.Now()
	return withTx(c, false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{"1"}, []string{c.runs()},
			[]string{"id = " + params.Param(runID)})
		var one int
		if err := tx.QueryRow(query, params...).Scan(&one); err == sql.ErrNoRows {
			return queue.ErrNoSuchRun{ID: runID}
		} else if err != nil {
			return err
		}

		params = queryParams{}
		fields := fieldList{}
		fields.Add(&params, "id", uuid.NewV4().String())
		fields.Add(&params, "run_id", runID)
		fields.Add(&params, "type", artifactType)
		fields.Add(&params, "lake_uri", ref.LakeURI)
		fields.Add(&params, "sha256", ref.SHA256)
		fields.Add(&params, "byte_count", ref.ByteCount)
		fields.Add(&params, "mime_type", mimeType)
		fields.Add(&params, "stored_in_sql", content != nil)
		fields.Add(&params, "mirrored_to_lake", ref.LakeURI != "")
		fields.Add(&params, "content", content)
		fields.Add(&params, "created_at", now)
		_, err := tx.Exec(fields.InsertStatement(c.artifacts()), params...)
		return err
	})
}

func (c *pgBackend) Runs(itemID string) ([]*queue.Run, error) {
	params := queryParams{}
	query := buildSelect([]string{
		"id", "item_id", "worker_id", "model_identity", "options",
		"started_at", "ended_at", "status", "metrics", "error",
	}, []string{c.runs()}, []string{
		"item_id = " + params.Param(itemID),
	}) + " ORDER BY started_at ASC, id ASC"

	var result []*queue.Run
	err := queryAndScan(c, query, params, func(rows *sql.Rows) error {
		var (
			run         queue.Run
			optionsJSON []byte
			metricsJSON []byte
			endedAt     pq.NullTime
			statusText  string
		)
		err := rows.Scan(&run.ID, &run.ItemID, &run.WorkerID,
			&run.ModelIdentity, &optionsJSON, &run.StartedAt, &endedAt,
			&statusText, &metricsJSON, &run.Error)
		if err != nil {
			return err
		}
		run.EndedAt = nullTimeToTime(endedAt)
		if err = run.Status.UnmarshalText([]byte(statusText)); err != nil {
			return err
		}
		if run.Options, err = unmarshalJSONMap(optionsJSON); err != nil {
			return err
		}
		if run.Metrics, err = unmarshalJSONMap(metricsJSON); err != nil {
			return err
		}
		result = append(result, &run)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *pgBackend) RunArtifacts(runID string) ([]*queue.Artifact, error) {
	params := queryParams{}
	query := buildSelect([]string{
		"id", "run_id", "type", "lake_uri", "sha256", "byte_count",
		"mime_type", "stored_in_sql", "mirrored_to_lake", "content",
	}, []string{c.artifacts()}, []string{
		"run_id = " + params.Param(runID),
	}) + " ORDER BY created_at ASC, id ASC"

	var result []*queue.Artifact
	err := queryAndScan(c, query, params, func(rows *sql.Rows) error {
		var artifact queue.Artifact
		err := rows.Scan(&artifact.ID, &artifact.RunID, &artifact.Type,
			&artifact.LakeURI, &artifact.SHA256, &artifact.ByteCount,
			&artifact.MIMEType, &artifact.StoredInSQL,
			&artifact.MirroredToLake, &artifact.Content)
		if err == nil {
			result = append(result, &artifact)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
