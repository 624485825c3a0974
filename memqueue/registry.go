package memqueue

import (
	"sort"
	"time"

	"github.com/datalode/conveyor/queue"
)

func (m *memBackend) UpsertHeartbeat(hb queue.Heartbeat) error {
	m.sem.Lock()
	defer m.sem.Unlock()

	hb.LastHeartbeat = m.clk.Now()
	stored := hb
	m.workers[hb.WorkerID] = &stored
	return nil
}

func (m *memBackend) ListActive(timeout time.Duration) ([]queue.Heartbeat, error) {
	if timeout == 0 {
		timeout = queue.DefaultHeartbeatTimeout
	}

	m.sem.Lock()
	defer m.sem.Unlock()

	cutoff := m.clk.Now().Add(-timeout)
	var result []queue.Heartbeat
	for _, hb := range m.workers {
		if hb.LastHeartbeat.Before(cutoff) {
			continue
		}
		result = append(result, *hb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkerID < result[j].WorkerID })
	return result, nil
}

func (m *memBackend) RemoveWorker(workerID string) error {
	m.sem.Lock()
	defer m.sem.Unlock()

	delete(m.workers, workerID)
	return nil
}
