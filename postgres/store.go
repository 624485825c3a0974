// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/datalode/conveyor/queue"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"
)

// itemColumns is the full column list scanned back into a WorkItem.
// Keep scanItem() in sync with this.
const itemColumns = "id, source_system, source_name, resource_type, resource_id, " +
	"variant, request_uri, request_method, request_headers, request_body, " +
	"interrogation_key, input_json, priority, created_at, updated_at, " +
	"run_id, discovered_from, rank, status, attempt, last_error, " +
	"next_retry_at, claimed_by, claimed_at, lease_expires_at"

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func statusToSQL(status queue.Status) string {
	text, err := status.MarshalText()
	if err != nil {
		return "pending"
	}
	return string(text)
}

// scanItem reads one row of itemColumns into a WorkItem.
func scanItem(row scanner) (*queue.WorkItem, error) {
	var (
		item        queue.WorkItem
		headers     []byte
		statusText  string
		nextRetryAt pq.NullTime
		claimedAt   pq.NullTime
		leaseExpiry pq.NullTime
	)
	err := row.Scan(
		&item.ID, &item.SourceSystem, &item.SourceName, &item.ResourceType,
		&item.ResourceID, &item.Variant, &item.RequestURI, &item.RequestMethod,
		&headers, &item.RequestBody, &item.InterrogationKey, &item.InputJSON,
		&item.Priority, &item.CreatedAt, &item.UpdatedAt, &item.RunID,
		&item.DiscoveredFrom, &item.Rank, &statusText, &item.Attempt,
		&item.LastError, &nextRetryAt, &item.ClaimedBy, &claimedAt,
		&leaseExpiry,
	)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err = json.Unmarshal(headers, &item.RequestHeaders); err != nil {
			return nil, err
		}
	}
	if err = item.Status.UnmarshalText([]byte(statusText)); err != nil {
		return nil, err
	}
	item.NextRetryAt = nullTimeToTime(nextRetryAt)
	item.ClaimedAt = nullTimeToTime(claimedAt)
	item.LeaseExpiresAt = nullTimeToTime(leaseExpiry)
	return &item, nil
}

func (c *pgBackend) Enqueue(item *queue.WorkItem) (bool, error) {
	key, err := item.DedupeKey()
	if err != nil {
		return false, err
	}
	var headers []byte
	if item.RequestHeaders != nil {
		if headers, err = json.Marshal(item.RequestHeaders); err != nil {
			return false, err
		}
	}

	now := c.clock.Now()
	if item.ID == "" {
		item.ID = uuid.NewV4().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.Status = queue.Pending
	item.Attempt = 0

	params := queryParams{}
	fields := fieldList{}
	fields.Add(&params, "id", item.ID)
	fields.Add(&params, "dedupe_key", key)
	fields.Add(&params, "source_system", item.SourceSystem)
	fields.Add(&params, "source_name", item.SourceName)
	fields.Add(&params, "resource_type", item.ResourceType)
	fields.Add(&params, "resource_id", item.ResourceID)
	fields.Add(&params, "variant", string(item.Variant))
	fields.Add(&params, "request_uri", item.RequestURI)
	fields.Add(&params, "request_method", item.RequestMethod)
	fields.Add(&params, "request_headers", headers)
	fields.Add(&params, "request_body", item.RequestBody)
	fields.Add(&params, "interrogation_key", item.InterrogationKey)
	fields.Add(&params, "input_json", item.InputJSON)
	fields.Add(&params, "priority", item.Priority)
	fields.Add(&params, "created_at", item.CreatedAt)
	fields.Add(&params, "updated_at", item.UpdatedAt)
	fields.Add(&params, "run_id", item.RunID)
	fields.Add(&params, "discovered_from", item.DiscoveredFrom)
	fields.Add(&params, "rank", item.Rank)
	fields.AddDirect("status", "'pending'")

	query := fields.InsertStatement(c.workItems()) +
		" ON CONFLICT (dedupe_key) DO NOTHING"
	count, err := execRowCount(c, query, params)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// eligibleCondition matches rows claimable at "now": pending with no
// future retry time, or in progress with the lease run out.
func eligibleCondition(params *queryParams, now time.Time) string {
	nowParam := params.Param(now)
	return "((status = 'pending'" +
		" AND (next_retry_at IS NULL OR next_retry_at <= " + nowParam + "))" +
		" OR (status = 'in_progress' AND lease_expires_at <= " + nowParam + "))"
}

func (c *pgBackend) ClaimOne(workerID string, lease time.Duration, filter *queue.ClaimFilter) (*queue.WorkItem, error) {
	now := c.clock.Now()

	params := queryParams{}
	conditions := []string{eligibleCondition(&params, now)}
	if filter != nil && filter.SourceSystem != "" {
		conditions = append(conditions, "source_system = "+params.Param(filter.SourceSystem))
	}
	sub := buildSelect([]string{"id"}, []string{c.workItems()}, conditions) +
		" ORDER BY priority ASC, created_at ASC, id ASC" +
		" LIMIT 1" +
		" FOR UPDATE SKIP LOCKED"

	changes := fieldList{}
	changes.AddDirect("status", "'in_progress'")
	changes.AddDirect("attempt", "attempt + 1")
	changes.Add(&params, "claimed_by", workerID)
	changes.Add(&params, "claimed_at", now)
	changes.Add(&params, "lease_expires_at", now.Add(lease))
	changes.AddDirect("next_retry_at", "NULL")
	changes.Add(&params, "updated_at", now)

	query := buildUpdate(c.workItems(), changes.UpdateChanges(),
		[]string{"id = (" + sub + ")"}) +
		" RETURNING " + itemColumns

	var item *queue.WorkItem
	err := withTx(c, false, func(tx *sql.Tx) error {
		var err error
		item, err = scanItem(tx.QueryRow(query, params...))
		if err == sql.ErrNoRows {
			item = nil
			err = nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ownedConditions restricts an update to an item the worker still
// holds.
func ownedConditions(params *queryParams, itemID, workerID string) []string {
	return []string{
		"id = " + params.Param(itemID),
		"claimed_by = " + params.Param(workerID),
		"status = 'in_progress'",
	}
}

func (c *pgBackend) RenewLease(itemID, workerID string, lease time.Duration) (bool, error) {
	now := c.clock.Now()
	params := queryParams{}
	changes := fieldList{}
	changes.Add(&params, "lease_expires_at", now.Add(lease))
	changes.Add(&params, "updated_at", now)
	query := buildUpdate(c.workItems(), changes.UpdateChanges(),
		ownedConditions(&params, itemID, workerID))
	count, err := execRowCount(c, query, params)
	return count == 1, err
}

func (c *pgBackend) Complete(itemID, workerID string) (bool, error) {
	now := c.clock.Now()
	params := queryParams{}
	changes := fieldList{}
	changes.AddDirect("status", "'completed'")
	changes.AddDirect("last_error", "''")
	changes.AddDirect("next_retry_at", "NULL")
	changes.AddDirect("claimed_by", "''")
	changes.AddDirect("claimed_at", "NULL")
	changes.AddDirect("lease_expires_at", "NULL")
	changes.Add(&params, "updated_at", now)
	query := buildUpdate(c.workItems(), changes.UpdateChanges(),
		ownedConditions(&params, itemID, workerID))
	count, err := execRowCount(c, query, params)
	return count == 1, err
}

func (c *pgBackend) Fail(itemID, workerID, errText string, retryable bool, backoffHint time.Duration, maxRetries int) (bool, error) {
	now := c.clock.Now()
	owned := false
	err := withTx(c, false, func(tx *sql.Tx) error {
		owned = false
		params := queryParams{}
		query := buildSelect([]string{"attempt"}, []string{c.workItems()},
			ownedConditions(&params, itemID, workerID)) +
			" FOR UPDATE"
		var attempt int
		err := tx.QueryRow(query, params...).Scan(&attempt)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		owned = true

		params = queryParams{}
		changes := fieldList{}
		changes.Add(&params, "last_error", errText)
		changes.AddDirect("claimed_by", "''")
		changes.AddDirect("claimed_at", "NULL")
		changes.AddDirect("lease_expires_at", "NULL")
		changes.Add(&params, "updated_at", now)
		if retryable && attempt < maxRetries {
			delay := backoffHint
			if delay <= 0 {
				delay = c.backoff.Delay(attempt)
			}
			changes.AddDirect("status", "'pending'")
			changes.Add(&params, "next_retry_at", now.Add(delay))
		} else {
			changes.AddDirect("status", "'failed'")
			changes.AddDirect("next_retry_at", "NULL")
		}
		query = buildUpdate(c.workItems(), changes.UpdateChanges(),
			[]string{"id = " + params.Param(itemID)})
		_, err = tx.Exec(query, params...)
		return err
	})
	if err != nil {
		return false, err
	}
	return owned, nil
}

func (c *pgBackend) RecoverExpiredLeases() (int, error) {
	now := c.clock.Now()
	params := queryParams{}
	changes := fieldList{}
	changes.AddDirect("status", "'pending'")
	changes.AddDirect("claimed_by", "''")
	changes.AddDirect("claimed_at", "NULL")
	changes.AddDirect("lease_expires_at", "NULL")
	changes.Add(&params, "updated_at", now)
	query := buildUpdate(c.workItems(), changes.UpdateChanges(), []string{
		"status = 'in_progress'",
		"lease_expires_at <= " + params.Param(now),
	})
	return execRowCount(c, query, params)
}

func (c *pgBackend) Exists(dedupeKey string) (bool, error) {
	present := false
	err := withTx(c, true, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{"1"}, []string{c.workItems()},
			[]string{"dedupe_key = " + params.Param(dedupeKey)})
		var one int
		err := tx.QueryRow(query, params...).Scan(&one)
		if err == sql.ErrNoRows {
			return nil
		}
		present = err == nil
		return err
	})
	return present, err
}

func (c *pgBackend) Get(itemID string) (*queue.WorkItem, error) {
	var item *queue.WorkItem
	err := withTx(c, true, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{itemColumns}, []string{c.workItems()},
			[]string{"id = " + params.Param(itemID)})
		var err error
		item, err = scanItem(tx.QueryRow(query, params...))
		if err == sql.ErrNoRows {
			item = nil
			err = nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// filterConditions translates the classification parts of an
// ItemFilter into SQL conditions.  Status restrictions are handled
// separately by each caller.
func filterConditions(params *queryParams, filter queue.ItemFilter) []string {
	var conditions []string
	if filter.SourceSystem != "" {
		conditions = append(conditions, "source_system = "+params.Param(filter.SourceSystem))
	}
	if filter.SourceName != "" {
		conditions = append(conditions, "source_name = "+params.Param(filter.SourceName))
	}
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = "+params.Param(filter.RunID))
	}
	return conditions
}

// statusCondition translates a status list into an IN condition, or
// returns "" when any status is acceptable.
func statusCondition(params *queryParams, statuses []queue.Status) string {
	if len(statuses) == 0 {
		return ""
	}
	var values []string
	for _, status := range statuses {
		if status == queue.AnyStatus {
			return ""
		}
		values = append(values, params.Param(statusToSQL(status)))
	}
	result := "status IN ("
	for i, v := range values {
		if i > 0 {
			result += ", "
		}
		result += v
	}
	return result + ")"
}

func (c *pgBackend) Summarize(filter queue.ItemFilter) (queue.Stats, error) {
	now := c.clock.Now()
	stats := queue.Stats{}
	err := withTx(c, true, func(tx *sql.Tx) error {
		params := queryParams{}
		conditions := filterConditions(&params, filter)
		if cond := statusCondition(&params, filter.Statuses); cond != "" {
			conditions = append(conditions, cond)
		}
		query := buildSelect([]string{"status", "COUNT(*)"},
			[]string{c.workItems()}, conditions) +
			" GROUP BY status"
		rows, err := tx.Query(query, params...)
		if err != nil {
			return err
		}
		err = scanRows(rows, func() error {
			var (
				statusText string
				count      int
			)
			if err := rows.Scan(&statusText, &count); err != nil {
				return err
			}
			var status queue.Status
			if err := status.UnmarshalText([]byte(statusText)); err != nil {
				return err
			}
			switch status {
			case queue.Pending:
				stats.Pending = count
			case queue.InProgress:
				stats.InProgress = count
			case queue.Completed:
				stats.Completed = count
			case queue.Failed:
				stats.Failed = count
			case queue.Skipped:
				stats.Skipped = count
			}
			return nil
		})
		if err != nil {
			return err
		}

		params = queryParams{}
		conditions = filterConditions(&params, filter)
		conditions = append(conditions,
			"status = 'pending'",
			"next_retry_at > "+params.Param(now))
		query = buildSelect([]string{"COUNT(*)"}, []string{c.workItems()}, conditions)
		return tx.QueryRow(query, params...).Scan(&stats.Delayed)
	})
	return stats, err
}

func (c *pgBackend) List(filter queue.ItemFilter) ([]*queue.WorkItem, error) {
	params := queryParams{}
	conditions := filterConditions(&params, filter)
	if cond := statusCondition(&params, filter.Statuses); cond != "" {
		conditions = append(conditions, cond)
	}
	if filter.AfterID != "" {
		conditions = append(conditions, "id > "+params.Param(filter.AfterID))
	}
	query := buildSelect([]string{itemColumns}, []string{c.workItems()}, conditions) +
		" ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + params.Param(filter.Limit)
	}

	var result []*queue.WorkItem
	err := queryAndScan(c, query, params, func(rows *sql.Rows) error {
		item, err := scanItem(rows)
		if err == nil {
			result = append(result, item)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *pgBackend) ResetForRecrawl(filter queue.ItemFilter) (int, error) {
	now := c.clock.Now()
	params := queryParams{}
	changes := fieldList{}
	changes.AddDirect("status", "'pending'")
	changes.AddDirect("attempt", "0")
	changes.AddDirect("last_error", "''")
	changes.AddDirect("next_retry_at", "NULL")
	changes.Add(&params, "updated_at", now)
	conditions := append(filterConditions(&params, filter),
		"status = 'completed'")
	query := buildUpdate(c.workItems(), changes.UpdateChanges(), conditions)
	return execRowCount(c, query, params)
}
