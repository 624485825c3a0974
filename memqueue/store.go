package memqueue

import (
	"sort"
	"time"

	"github.com/datalode/conveyor/queue"
)

func (m *memBackend) Enqueue(item *queue.WorkItem) (bool, error) {
	key, err := item.DedupeKey()
	if err != nil {
		return false, err
	}

	m.sem.Lock()
	defer m.sem.Unlock()

	if _, present := m.byDedupe[key]; present {
		return false, nil
	}

	now := m.clk.Now()
	stored := copyItem(item)
	if stored.ID == "" {
		stored.ID = newID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	stored.Status = queue.Pending
	stored.Attempt = 0

	m.items[stored.ID] = stored
	m.byDedupe[key] = stored.ID

	item.ID = stored.ID
	item.CreatedAt = stored.CreatedAt
	item.UpdatedAt = stored.UpdatedAt
	item.Status = stored.Status
	return true, nil
}

// eligible reports whether an item can be claimed right now: pending
// with no future retry time, or in progress past its lease.
func eligible(item *queue.WorkItem, now time.Time) bool {
	switch item.Status {
	case queue.Pending:
		return !item.NextRetryAt.After(now)
	case queue.InProgress:
		return !item.LeaseExpiresAt.After(now)
	}
	return false
}

// moreUrgent orders two claimable items: priority ascending, then
// creation time, then ID.
func moreUrgent(a, b *queue.WorkItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (m *memBackend) ClaimOne(workerID string, lease time.Duration, filter *queue.ClaimFilter) (*queue.WorkItem, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	now := m.clk.Now()
	var best *queue.WorkItem
	for _, item := range m.items {
		if filter != nil && filter.SourceSystem != "" && item.SourceSystem != filter.SourceSystem {
			continue
		}
		if !eligible(item, now) {
			continue
		}
		if best == nil || moreUrgent(item, best) {
			best = item
		}
	}
	if best == nil {
		return nil, nil
	}

	best.Status = queue.InProgress
	best.Attempt++
	best.ClaimedBy = workerID
	best.ClaimedAt = now
	best.LeaseExpiresAt = now.Add(lease)
	best.NextRetryAt = time.Time{}
	best.UpdatedAt = now
	return copyItem(best), nil
}

// owned looks up an item and checks that workerID still holds it.
func (m *memBackend) owned(itemID, workerID string) *queue.WorkItem {
	item := m.items[itemID]
	if item == nil || item.Status != queue.InProgress || item.ClaimedBy != workerID {
		return nil
	}
	return item
}

func (m *memBackend) RenewLease(itemID, workerID string, lease time.Duration) (bool, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	item := m.owned(itemID, workerID)
	if item == nil {
		return false, nil
	}
	now := m.clk.Now()
	item.LeaseExpiresAt = now.Add(lease)
	item.UpdatedAt = now
	return true, nil
}

// clearClaim drops the claim fields on any transition out of
// InProgress.
func clearClaim(item *queue.WorkItem) {
	item.ClaimedBy = ""
	item.ClaimedAt = time.Time{}
	item.LeaseExpiresAt = time.Time{}
}

func (m *memBackend) Complete(itemID, workerID string) (bool, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	item := m.owned(itemID, workerID)
	if item == nil {
		return false, nil
	}
	item.Status = queue.Completed
	item.LastError = ""
	item.NextRetryAt = time.Time{}
	clearClaim(item)
	item.UpdatedAt = m.clk.Now()
	return true, nil
}

func (m *memBackend) Fail(itemID, workerID, errText string, retryable bool, backoffHint time.Duration, maxRetries int) (bool, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	item := m.owned(itemID, workerID)
	if item == nil {
		return false, nil
	}

	now := m.clk.Now()
	item.LastError = errText
	clearClaim(item)
	item.UpdatedAt = now

	if !retryable || item.Attempt >= maxRetries {
		item.Status = queue.Failed
		item.NextRetryAt = time.Time{}
		return true, nil
	}

	delay := backoffHint
	if delay <= 0 {
		delay = m.backoff.Delay(item.Attempt)
	}
	item.Status = queue.Pending
	item.NextRetryAt = now.Add(delay)
	return true, nil
}

func (m *memBackend) RecoverExpiredLeases() (int, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	now := m.clk.Now()
	count := 0
	for _, item := range m.items {
		if item.Status != queue.InProgress || item.LeaseExpiresAt.After(now) {
			continue
		}
		item.Status = queue.Pending
		clearClaim(item)
		item.UpdatedAt = now
		count++
	}
	return count, nil
}

func (m *memBackend) Exists(dedupeKey string) (bool, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	_, present := m.byDedupe[dedupeKey]
	return present, nil
}

func (m *memBackend) Get(itemID string) (*queue.WorkItem, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	item := m.items[itemID]
	if item == nil {
		return nil, nil
	}
	return copyItem(item), nil
}

func matchesFilter(item *queue.WorkItem, filter queue.ItemFilter) bool {
	if filter.SourceSystem != "" && item.SourceSystem != filter.SourceSystem {
		return false
	}
	if filter.SourceName != "" && item.SourceName != filter.SourceName {
		return false
	}
	if filter.RunID != "" && item.RunID != filter.RunID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if status == queue.AnyStatus || status == item.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memBackend) Summarize(filter queue.ItemFilter) (queue.Stats, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	now := m.clk.Now()
	stats := queue.Stats{}
	for _, item := range m.items {
		if !matchesFilter(item, filter) {
			continue
		}
		switch item.Status {
		case queue.Pending:
			stats.Pending++
			if item.NextRetryAt.After(now) {
				stats.Delayed++
			}
		case queue.InProgress:
			stats.InProgress++
		case queue.Completed:
			stats.Completed++
		case queue.Failed:
			stats.Failed++
		case queue.Skipped:
			stats.Skipped++
		}
	}
	return stats, nil
}

func (m *memBackend) List(filter queue.ItemFilter) ([]*queue.WorkItem, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	var result []*queue.WorkItem
	for _, item := range m.items {
		if !matchesFilter(item, filter) {
			continue
		}
		if filter.AfterID != "" && item.ID <= filter.AfterID {
			continue
		}
		result = append(result, copyItem(item))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *memBackend) ResetForRecrawl(filter queue.ItemFilter) (int, error) {
	m.sem.Lock()
	defer m.sem.Unlock()

	now := m.clk.Now()
	count := 0
	for _, item := range m.items {
		if item.Status != queue.Completed || !matchesFilter(item, filter) {
			continue
		}
		item.Status = queue.Pending
		item.Attempt = 0
		item.LastError = ""
		item.NextRetryAt = time.Time{}
		item.UpdatedAt = now
		count++
	}
	return count, nil
}
